package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordError("data_unavailable")
	r.RecordError("data_unavailable")
	r.RecordCache("hit")
	r.RecordIngested("AAPL", 5)
	r.RecordStage("fitting", 0.002)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("data_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheTotal.WithLabelValues("hit")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.ingested.WithLabelValues("AAPL")))

	n, err := testutil.GatherAndCount(reg, "pricesight_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
