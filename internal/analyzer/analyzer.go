// Package analyzer extracts an activity quantity from a fitness-app
// screenshot.  Results are advisory: callers feed the quantity through the
// ledger's normal validation exactly like manual input.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/Nat-hsm/DragonRise/internal/model"
)

// ErrUnavailable is returned when analysis is disabled or the backend is
// being shed by the circuit breaker.
var ErrUnavailable = errors.New("screenshot analysis unavailable")

// Result is the outcome of one analysis.  Success is false when the model
// answered but no usable quantity could be read; Error then says why.
type Result struct {
	Success   bool       `json:"success"`
	Quantity  int64      `json:"quantity"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Analyzer reads a screenshot.  A non-nil error means the backend could
// not be reached or failed; an unreadable image is a Result with
// Success=false.
type Analyzer interface {
	Analyze(ctx context.Context, kind model.ActivityKind, image []byte, mimeType string) (Result, error)
}

// field is the JSON key the model is asked to fill for each kind.
func field(kind model.ActivityKind) string {
	switch kind {
	case model.KindClimb:
		return "flights"
	case model.KindStand:
		return "minutes"
	}
	return "steps"
}

// Prompt returns the instruction sent with the image.
func Prompt(kind model.ActivityKind) string {
	var what string
	switch kind {
	case model.KindClimb:
		what = "the number of flights of stairs (floors) climbed"
	case model.KindStand:
		what = "the number of minutes spent standing (stand time or stand minutes)"
	default:
		what = "the number of steps taken"
	}
	return fmt.Sprintf(`This is a screenshot from a fitness tracking app. Extract %s and the date and time shown for that measurement.
Respond with JSON only, in the form {"%s": <whole number>, "timestamp": "YYYY-MM-DD HH:MM"}.
If the value cannot be read, respond with {"%s": null, "error": "<short reason>"}.`, what, field(kind), field(kind))
}

// ParseResponse extracts the quantity (and optional timestamp) from the
// model's reply.  The reply may wrap the JSON object in prose or a code
// fence.
func ParseResponse(kind model.ActivityKind, reply string) Result {
	start, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return Result{Error: "no JSON object in analysis reply"}
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(reply[start:end+1]), &payload); err != nil {
		return Result{Error: "malformed JSON in analysis reply"}
	}

	key := field(kind)
	qty, ok := wholeNumber(payload[key])
	if !ok {
		msg, _ := payload["error"].(string)
		if msg == "" {
			msg = "could not read " + key + " from screenshot"
		}
		return Result{Error: msg}
	}
	if qty <= 0 {
		return Result{Error: key + " must be positive"}
	}

	res := Result{Success: true, Quantity: qty}
	if ts, ok := payload["timestamp"].(string); ok {
		if t, err := time.Parse("2006-01-02 15:04", strings.TrimSpace(ts)); err == nil {
			res.Timestamp = &t
		}
	}
	return res
}

func wholeNumber(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(n), ",", ""), 10, 64)
		return i, err == nil
	}
	return 0, false
}
