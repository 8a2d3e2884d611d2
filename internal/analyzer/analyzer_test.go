package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nat-hsm/DragonRise/internal/config"
	"github.com/Nat-hsm/DragonRise/internal/model"
)

func TestParseResponse(t *testing.T) {
	cases := []struct {
		name  string
		kind  model.ActivityKind
		reply string
		want  int64
		ok    bool
		ts    bool
	}{
		{"plain", model.KindClimb, `{"flights": 12, "timestamp": "2024-03-04 09:00"}`, 12, true, true},
		{"fenced", model.KindSteps, "```json\n{\"steps\": 8456}\n```", 8456, true, false},
		{"string number", model.KindSteps, `{"steps": "10,204"}`, 10204, true, false},
		{"minutes", model.KindStand, `Sure! {"minutes": 45, "timestamp": "bad"}`, 45, true, false},
		{"null value", model.KindClimb, `{"flights": null, "error": "blurry image"}`, 0, false, false},
		{"wrong key", model.KindClimb, `{"steps": 100}`, 0, false, false},
		{"fraction", model.KindClimb, `{"flights": 2.5}`, 0, false, false},
		{"zero", model.KindStand, `{"minutes": 0}`, 0, false, false},
		{"no json", model.KindStand, `I cannot help with that.`, 0, false, false},
		{"broken json", model.KindStand, `{"minutes": }`, 0, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ParseResponse(tc.kind, tc.reply)
			assert.Equal(t, tc.ok, res.Success)
			assert.Equal(t, tc.want, res.Quantity)
			assert.Equal(t, tc.ts, res.Timestamp != nil)
			if !tc.ok {
				assert.NotEmpty(t, res.Error)
			}
		})
	}

	res := ParseResponse(model.KindClimb, `{"flights": null, "error": "blurry image"}`)
	assert.Equal(t, "blurry image", res.Error)
}

func TestPromptNamesField(t *testing.T) {
	assert.Contains(t, Prompt(model.KindClimb), `"flights"`)
	assert.Contains(t, Prompt(model.KindStand), `"minutes"`)
	assert.Contains(t, Prompt(model.KindSteps), `"steps"`)
}

type scripted struct {
	calls int
	err   error
	res   Result
}

func (s *scripted) Analyze(context.Context, model.ActivityKind, []byte, string) (Result, error) {
	s.calls++
	return s.res, s.err
}

func TestGuardedOpensAfterFailures(t *testing.T) {
	inner := &scripted{err: errors.New("upstream 500")}
	g := NewGuarded(inner, config.AnalyzerConfig{BreakerFailures: 2, BreakerCooldown: time.Hour})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := g.Analyze(ctx, model.KindSteps, []byte("img"), "image/png")
		require.EqualError(t, err, "upstream 500")
	}
	_, err := g.Analyze(ctx, model.KindSteps, []byte("img"), "image/png")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, inner.calls, "open breaker must not call through")
}

func TestGuardedUnreadableIsNotFailure(t *testing.T) {
	inner := &scripted{res: Result{Error: "blurry"}}
	g := NewGuarded(inner, config.AnalyzerConfig{BreakerFailures: 1, BreakerCooldown: time.Hour})
	for i := 0; i < 3; i++ {
		res, err := g.Analyze(context.Background(), model.KindClimb, nil, "image/png")
		require.NoError(t, err)
		assert.False(t, res.Success)
	}
	assert.Equal(t, 3, inner.calls)
}

func TestNewWithoutKeyIsDisabled(t *testing.T) {
	a := New(config.AnalyzerConfig{})
	_, err := a.Analyze(context.Background(), model.KindClimb, nil, "image/png")
	require.ErrorIs(t, err, ErrUnavailable)
}
