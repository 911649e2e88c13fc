package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLogGaugesRecordPerWorkspaceAndLog(t *testing.T) {
	LogRawEntries.Reset()
	LogRawEntries.WithLabelValues("ws-1", "dyn:tables").Set(12)

	require.Equal(t, float64(12), testutil.ToFloat64(LogRawEntries.WithLabelValues("ws-1", "dyn:tables")))
}

func TestTimerRecordsIntoHistogram(t *testing.T) {
	timer := NewTimer()
	timer.ObserveDurationVec(ExtensionReadyDuration, "persist")

	count := testutil.CollectAndCount(ExtensionReadyDuration)
	require.Equal(t, 1, count)
}
