package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// AnalyzerConfig configures screenshot analysis.  With an empty APIKey the
// screenshot endpoints answer 503.
type AnalyzerConfig struct {
	APIKey  string        `env:"OPENAI_API_KEY"`
	BaseURL string        `env:"OPENAI_BASE_URL"`
	Model   string        `env:"ANALYZER_MODEL" envDefault:"gpt-4o-mini"`
	Timeout time.Duration `env:"ANALYZER_TIMEOUT" envDefault:"30s"`

	// Circuit breaker: open after BreakerFailures consecutive failures and
	// probe again after BreakerCooldown.
	BreakerFailures uint32        `env:"ANALYZER_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown time.Duration `env:"ANALYZER_BREAKER_COOLDOWN" envDefault:"1m"`
}

// Enabled reports whether an API key is configured.
func (c AnalyzerConfig) Enabled() bool { return c.APIKey != "" }

func LoadAnalyzerConfig() AnalyzerConfig {
	cfg, err := env.ParseAs[AnalyzerConfig]()
	if err != nil {
		return AnalyzerConfig{}
	}
	return cfg
}
