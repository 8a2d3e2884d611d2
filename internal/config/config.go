// Package config loads application configuration from the environment.  A
// .env file in the working directory is read first when present; real
// environment variables take precedence over it.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"`   // application environment (dev/test/prod)
	Port string `env:"APP_PORT" envDefault:"8080"` // HTTP port to listen on

	DBDriver   string `env:"DB_DRIVER" envDefault:"mysql"` // mysql | sqlite
	DBUser     string `env:"DB_USER"`
	DBPass     string `env:"DB_PASS"` // empty allowed
	DBHost     string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort     string `env:"DB_PORT" envDefault:"3306"`
	DBName     string `env:"DB_NAME"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"dragonrise.db"`

	JWTSecret      string `env:"JWT_SECRET,required,notEmpty"` // secret used to sign JWTs
	AccessTTLMin   int    `env:"ACCESS_TOKEN_TTL_MIN" envDefault:"15"`
	RefreshTTLDays int    `env:"REFRESH_TOKEN_TTL_DAYS" envDefault:"7"`
	BcryptCost     int    `env:"BCRYPT_COST" envDefault:"12"`

	UTCOffsetHours   int   `env:"APP_UTC_OFFSET_HOURS" envDefault:"8"` // zone peak hours are evaluated in
	MaxStepsPerEntry int64 `env:"MAX_STEPS_PER_ENTRY" envDefault:"0"`  // 0 = unlimited

	UploadDir      string `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"5242880"`

	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	AdminHouse    string `env:"ADMIN_HOUSE" envDefault:"Black"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // json | console
}

// UsesSQLite reports whether the SQLite driver is selected.
func (c Config) UsesSQLite() bool { return c.DBDriver == "sqlite" }

// Load reads the optional .env file and parses Config.  Invalid or missing
// required values stop the process with a fatal log message.
func Load() Config {
	loadDotEnv()
	cfg, err := Parse()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	return cfg
}

// Parse builds Config from the current environment and validates it.
func Parse() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	switch c.DBDriver {
	case "mysql":
		if c.DBUser == "" || c.DBName == "" {
			errs = append(errs, errors.New("DB_USER and DB_NAME are required when DB_DRIVER=mysql"))
		}
	case "sqlite":
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when DB_DRIVER=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be mysql or sqlite, got %q", c.DBDriver))
	}
	if c.UTCOffsetHours < -12 || c.UTCOffsetHours > 14 {
		errs = append(errs, fmt.Errorf("APP_UTC_OFFSET_HOURS out of range: %d", c.UTCOffsetHours))
	}
	if c.AccessTTLMin <= 0 || c.RefreshTTLDays <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost))
	}
	if c.MaxStepsPerEntry < 0 {
		errs = append(errs, errors.New("MAX_STEPS_PER_ENTRY must not be negative"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}

// loadDotEnv reads .env when present.  A missing file is not an error.
func loadDotEnv() {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}
}
