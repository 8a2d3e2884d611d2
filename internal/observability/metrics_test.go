package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordActivityCountsPoints(t *testing.T) {
	before := testutil.ToFloat64(pointsAwarded.WithLabelValues("climb"))
	RecordActivity("climb", "manual", 50, false)
	RecordActivity("climb", "manual", 20, true)

	require.InDelta(t, before+70, testutil.ToFloat64(pointsAwarded.WithLabelValues("climb")), 0.001)
	require.GreaterOrEqual(t, testutil.ToFloat64(activitiesRecorded.WithLabelValues("climb", "manual", "true")), 1.0)
}

func TestRecordLedgerFailure(t *testing.T) {
	before := testutil.ToFloat64(ledgerFailures.WithLabelValues("record_climb", "validation"))
	RecordLedgerFailure("record_climb", "validation")
	require.InDelta(t, before+1, testutil.ToFloat64(ledgerFailures.WithLabelValues("record_climb", "validation")), 0.001)
}
