package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activitiesRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dragonrise",
		Subsystem: "ledger",
		Name:      "activities_recorded_total",
		Help:      "Activity log entries committed, by kind, source and whether a peak multiplier applied.",
	}, []string{"kind", "source", "peak"})
	pointsAwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dragonrise",
		Subsystem: "ledger",
		Name:      "points_awarded_total",
		Help:      "Points awarded by committed activity log entries.",
	}, []string{"kind"})
	ledgerFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dragonrise",
		Subsystem: "ledger",
		Name:      "failures_total",
		Help:      "Ledger operations that did not commit, by action and reason.",
	}, []string{"action", "reason"})
	lastActivityGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dragonrise",
		Subsystem: "ledger",
		Name:      "last_activity_recorded_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity committed.",
	})
	analyzerCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dragonrise",
		Subsystem: "analyzer",
		Name:      "calls_total",
		Help:      "Screenshot analysis calls, by kind and outcome.",
	}, []string{"kind", "outcome"})
	eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dragonrise",
		Subsystem: "queue",
		Name:      "events_published_total",
		Help:      "Activity events published to the broker, by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(activitiesRecorded, pointsAwarded, ledgerFailures, lastActivityGauge, analyzerCalls, eventsPublished)
}

// RecordActivity counts a committed entry.
func RecordActivity(kind, source string, points int64, peak bool) {
	p := "false"
	if peak {
		p = "true"
	}
	activitiesRecorded.WithLabelValues(kind, source, p).Inc()
	pointsAwarded.WithLabelValues(kind).Add(float64(points))
	lastActivityGauge.Set(float64(time.Now().Unix()))
}

// RecordLedgerFailure counts an operation that rolled back or was rejected.
func RecordLedgerFailure(action, reason string) {
	ledgerFailures.WithLabelValues(action, reason).Inc()
}

// RecordAnalyzerCall counts a screenshot analysis attempt.
func RecordAnalyzerCall(kind, outcome string) {
	analyzerCalls.WithLabelValues(kind, outcome).Inc()
}

// RecordEventPublished counts a broker publish attempt.
func RecordEventPublished(ok bool) {
	if ok {
		eventsPublished.WithLabelValues("ok").Inc()
		return
	}
	eventsPublished.WithLabelValues("error").Inc()
}
