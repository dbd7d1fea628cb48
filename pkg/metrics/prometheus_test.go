package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordRun("SPY")
	r.RecordRun("SPY")
	r.RecordError("source")
	r.RecordWarning("composite")
	r.RecordExhaustion("SPY", 87.5)
	r.RecordLatency("run", 0.2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("SPY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("source")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.warningsTotal.WithLabelValues("composite")))
	assert.Equal(t, 87.5, testutil.ToFloat64(r.lastExhaustion.WithLabelValues("SPY")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}
