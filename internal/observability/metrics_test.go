package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordCommandCountsOutcome(t *testing.T) {
	before := testutil.ToFloat64(commandsTotal.WithLabelValues("merge", "applied"))
	RecordCommand("merge", "applied", 15*time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(commandsTotal.WithLabelValues("merge", "applied")))
}

func TestRecordWriteBackIgnoresZero(t *testing.T) {
	ts := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	RecordWriteBack(ts)
	RecordWriteBack(time.Time{})
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(writeBackGauge))
}

func TestRecordConflictsSkipsEmptyTypes(t *testing.T) {
	before := testutil.ToFloat64(conflictsDetected.WithLabelValues("overlap"))
	RecordConflicts(map[string]int{"overlap": 2, "gap": 0})
	require.Equal(t, before+2, testutil.ToFloat64(conflictsDetected.WithLabelValues("overlap")))
}
