package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/Nat-hsm/DragonRise/internal/analyzer"
	"github.com/Nat-hsm/DragonRise/internal/config"
	"github.com/Nat-hsm/DragonRise/internal/database"
	"github.com/Nat-hsm/DragonRise/internal/handler"
	"github.com/Nat-hsm/DragonRise/internal/ledger"
	"github.com/Nat-hsm/DragonRise/internal/logging"
	"github.com/Nat-hsm/DragonRise/internal/middleware"
	"github.com/Nat-hsm/DragonRise/internal/peakhour"
	"github.com/Nat-hsm/DragonRise/internal/queue"
	"github.com/Nat-hsm/DragonRise/internal/repository"
	"github.com/Nat-hsm/DragonRise/internal/router"
	"github.com/Nat-hsm/DragonRise/internal/service"
	"github.com/Nat-hsm/DragonRise/internal/utils"
	"github.com/Nat-hsm/DragonRise/internal/validation"
)

func main() {
	cfg := config.Load()
	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := openDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open database")
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, dialect); err != nil {
		log.Fatal().Err(err).Msg("apply schema")
	}
	admin, err := bootstrapAdmin(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("hash admin password")
	}
	if err := database.Seed(ctx, db, dialect, admin); err != nil {
		log.Fatal().Err(err).Msg("seed database")
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Info().Msg("redis unavailable: using in-process rate limiting, response cache disabled")
	} else {
		defer rdb.Close()
	}
	rlCfg := config.LoadRateLimitConfig()
	cacheCfg := config.LoadCacheConfig()
	queueCfg := config.LoadQueueConfig()

	users := repository.NewUserRepo(db)
	houses := repository.NewHouseRepo(db)
	activities := repository.NewActivityRepo(db)
	rules := repository.NewPeakHourRepo(db)
	tokens := repository.NewTokenRepo(db)
	if n, err := tokens.PurgeExpired(ctx, time.Now()); err != nil {
		log.Warn().Err(err).Msg("purge expired refresh tokens")
	} else if n > 0 {
		log.Info().Int64("purged", n).Msg("expired refresh tokens removed")
	}

	engine := peakhour.NewEngine(cfg.UTCOffsetHours, logging.Component("peakhour"))
	led := ledger.New(repository.NewLedgerStore(db, dialect), rules, engine,
		ledger.WithLogger(logging.Component("ledger")),
		ledger.WithMaxSteps(cfg.MaxStepsPerEntry),
	)

	actH := &handler.ActivityHandler{
		Ledger:         led,
		Users:          users,
		Activities:     activities,
		Analyzer:       analyzer.New(config.LoadAnalyzerConfig()),
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	adminH := &handler.AdminHandler{Users: users, Houses: houses, Activities: activities, Rules: rules, Ledger: led}
	if inv := middleware.NewCacheInvalidator(cacheCfg, rdb); inv != nil {
		actH.Cache, adminH.Cache = inv, inv
	}
	if pub := service.NewActivityPublisher(queueCfg); pub != nil {
		actH.Publisher = pub
	}
	publicH := &handler.PublicHandler{Users: users, Houses: houses, Activities: activities, Ledger: led}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.SecureWithConfig(echomw.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
	}))
	e.Use(echomw.BodyLimit(bodyLimit(cfg.MaxUploadBytes)))
	e.Use(middleware.RequestLogger(logging.Component("http")))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterPublic(e, publicH, middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterMember(e, actH, publicH, cfg.JWTSecret, router.MemberLimits{
		Activity: middleware.NewRateLimiter(rlCfg.PerMinute(rlCfg.ActivityPerMinute, "activity"), rdb),
		Upload:   middleware.NewRateLimiter(rlCfg.PerMinute(rlCfg.UploadPerMinute, "upload"), rdb),
	})
	router.RegisterAdmin(e, adminH, cfg.JWTSecret)

	if queueCfg.Enabled {
		go func() {
			if err := queue.StartActivityConsumer(ctx, queueCfg); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("activity consumer stopped")
			}
		}()
	}

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Str("db", cfg.DBDriver).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func openDB(cfg config.Config) (*sql.DB, database.Dialect, error) {
	if cfg.UsesSQLite() {
		db, err := database.OpenSQLite(cfg.SQLitePath)
		return db, database.SQLite, err
	}
	db, err := database.OpenMySQL(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	return db, database.MySQL, err
}

// bootstrapAdmin returns the admin to seed, or nil when none is configured.
func bootstrapAdmin(cfg config.Config) (*database.Admin, error) {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil, nil
	}
	hash, err := utils.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	return &database.Admin{Username: cfg.AdminUsername, PasswordHash: hash, House: cfg.AdminHouse}, nil
}

// bodyLimit leaves room for multipart framing around the largest upload.
func bodyLimit(maxUpload int64) string {
	const mb = 1 << 20
	return strconv.FormatInt((maxUpload+mb-1)/mb+1, 10) + "M"
}
