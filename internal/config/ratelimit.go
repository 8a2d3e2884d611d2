package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// RateLimitConfig drives the token-bucket middleware.  Capacity tokens are
// available in a burst and RefillTokens are added every RefillInterval.
type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"60"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS" envDefault:"1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL" envDefault:"10m"`
	KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY" envDefault:"ip_user_route"`
	Prefix         string        `env:"RATE_LIMIT_PREFIX" envDefault:"rl"`
	Debug          bool          `env:"RATE_LIMIT_DEBUG" envDefault:"false"`

	// Per-minute budgets for the write endpoints.
	ActivityPerMinute int `env:"RATE_LIMIT_ACTIVITY_PER_MIN" envDefault:"20"`
	UploadPerMinute   int `env:"RATE_LIMIT_UPLOAD_PER_MIN" envDefault:"10"`
}

func LoadRateLimitConfig() RateLimitConfig {
	def, err := env.ParseAs[RateLimitConfig]()
	if err != nil {
		def = RateLimitConfig{Enabled: false}
	}
	return def.normalized()
}

// PerMinute returns a copy of c that allows n requests per minute with a
// burst of n, under its own key prefix.
func (c RateLimitConfig) PerMinute(n int, prefix string) RateLimitConfig {
	out := c
	out.Capacity = n
	out.RefillTokens = 1
	if n > 0 {
		out.RefillInterval = time.Minute / time.Duration(n)
	}
	out.Prefix = c.Prefix + ":" + prefix
	return out.normalized()
}

func (c RateLimitConfig) normalized() RateLimitConfig {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}
