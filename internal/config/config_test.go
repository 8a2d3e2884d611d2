package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.True(t, cfg.UsesSQLite())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 8, cfg.UTCOffsetHours)
	assert.Equal(t, int64(0), cfg.MaxStepsPerEntry)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes)
	assert.Equal(t, "Black", cfg.AdminHouse)
}

func TestParseRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "sqlite")
	_, err := Parse()
	require.Error(t, err)
}

func TestParseValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"mysql without db name": {"DB_DRIVER": "mysql", "DB_USER": "app"},
		"unknown driver":        {"DB_DRIVER": "postgres"},
		"offset out of range":   {"DB_DRIVER": "sqlite", "APP_UTC_OFFSET_HOURS": "15"},
		"negative steps cap":    {"DB_DRIVER": "sqlite", "MAX_STEPS_PER_ENTRY": "-1"},
		"admin without pass":    {"DB_DRIVER": "sqlite", "ADMIN_USERNAME": "root"},
		"weak bcrypt":           {"DB_DRIVER": "sqlite", "BCRYPT_COST": "2"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "s3cret")
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Parse()
			require.Error(t, err)
		})
	}
}

func TestParseMySQL(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_NAME", "dragonrise")
	t.Setenv("APP_UTC_OFFSET_HOURS", "-5")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.False(t, cfg.UsesSQLite())
	assert.Equal(t, -5, cfg.UTCOffsetHours)
	assert.Equal(t, "3306", cfg.DBPort)
}

func TestRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 5*time.Second, cfg.TTL)

	per := cfg.PerMinute(20, "activity")
	assert.Equal(t, 20, per.Capacity)
	assert.Equal(t, 3*time.Second, per.RefillInterval)
	assert.Equal(t, "rl:activity", per.Prefix)
	assert.Equal(t, 15*time.Second, per.TTL)
}

func TestCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	cfg := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, 30*time.Second, cfg.TTL)
}

func TestRedisAddress(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: "6380", Addr: "x:1"}.Address())
	assert.Equal(t, "x:1", RedisConfig{Addr: "x:1"}.Address())
}
