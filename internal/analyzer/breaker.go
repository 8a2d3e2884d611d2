package analyzer

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"github.com/Nat-hsm/DragonRise/internal/config"
	"github.com/Nat-hsm/DragonRise/internal/model"
	"github.com/Nat-hsm/DragonRise/internal/observability"
)

// Guarded wraps an Analyzer with a circuit breaker.  Backend errors count
// as failures; unreadable screenshots do not.
type Guarded struct {
	inner Analyzer
	cb    *gobreaker.CircuitBreaker[Result]
}

// NewGuarded opens the breaker after cfg.BreakerFailures consecutive
// failures and probes again after cfg.BreakerCooldown.
func NewGuarded(inner Analyzer, cfg config.AnalyzerConfig) *Guarded {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cb := gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:        "screenshot-analyzer",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("analyzer circuit breaker state change")
		},
	})
	return &Guarded{inner: inner, cb: cb}
}

// Analyze runs the inner analyzer unless the breaker is open.
func (g *Guarded) Analyze(ctx context.Context, kind model.ActivityKind, image []byte, mimeType string) (Result, error) {
	res, err := g.cb.Execute(func() (Result, error) {
		return g.inner.Analyze(ctx, kind, image, mimeType)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.RecordAnalyzerCall(string(kind), "rejected")
		return Result{}, ErrUnavailable
	case err != nil:
		observability.RecordAnalyzerCall(string(kind), "error")
		return Result{}, err
	case !res.Success:
		observability.RecordAnalyzerCall(string(kind), "unreadable")
	default:
		observability.RecordAnalyzerCall(string(kind), "success")
	}
	return res, nil
}

// Disabled always reports ErrUnavailable.  It is used when no API key is
// configured.
type Disabled struct{}

func (Disabled) Analyze(context.Context, model.ActivityKind, []byte, string) (Result, error) {
	return Result{}, ErrUnavailable
}

// New returns the configured analyzer: OpenAI behind a breaker, or
// Disabled without an API key.
func New(cfg config.AnalyzerConfig) Analyzer {
	if !cfg.Enabled() {
		return Disabled{}
	}
	return NewGuarded(NewOpenAI(cfg), cfg)
}
