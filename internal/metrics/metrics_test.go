package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	pb := &dto.Metric{}
	require.NoError(t, c.Write(pb))
	return pb.GetCounter().GetValue()
}

func TestAlertsFiredTotal_LabelsByChannel(t *testing.T) {
	ua := AlertsFiredTotal.WithLabelValues("ua")
	capture := AlertsFiredTotal.WithLabelValues("capture")

	before := counterValue(t, ua)
	captureBefore := counterValue(t, capture)
	ua.Inc()
	ua.Inc()

	assert.Equal(t, before+2, counterValue(t, ua))
	assert.Equal(t, captureBefore, counterValue(t, capture), "other labels untouched")
}

func TestTicksTotal_Increments(t *testing.T) {
	before := counterValue(t, TicksTotal)
	TicksTotal.Inc()
	assert.Equal(t, before+1, counterValue(t, TicksTotal))
}

func TestFetchDailyUsage_Gauge(t *testing.T) {
	FetchDailyUsage.Set(42)

	pb := &dto.Metric{}
	require.NoError(t, FetchDailyUsage.Write(pb))
	assert.Equal(t, float64(42), pb.GetGauge().GetValue())
}
