package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/thetarby/sharedmutex"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string][]*dto.Metric {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string][]*dto.Metric)
	for _, mf := range mfs {
		out[mf.GetName()] = mf.GetMetric()
	}
	return out
}

func TestCollector(t *testing.T) {
	rwm := sharedmutex.New()
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector("test", "index", rwm))

	rwm.RLock()
	rwm.RLock()
	rwm.RUnlock()

	m := gather(t, reg)
	require.Len(t, m, 7)
	require.Equal(t, 1.0, m["test_sharedmutex_active_readers"][0].GetGauge().GetValue())
	require.Equal(t, 0.0, m["test_sharedmutex_writer_active"][0].GetGauge().GetValue())

	acquired := make(map[string]float64)
	for _, metric := range m["test_sharedmutex_acquired_total"] {
		var mode string
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == "mode" {
				mode = lp.GetValue()
			}
			if lp.GetName() == "lock" {
				require.Equal(t, "index", lp.GetValue())
			}
		}
		acquired[mode] = metric.GetCounter().GetValue()
	}
	require.Equal(t, map[string]float64{"shared": 2, "exclusive": 0}, acquired)

	rwm.RUnlock()
	rwm.Lock()
	m = gather(t, reg)
	require.Equal(t, 0.0, m["test_sharedmutex_active_readers"][0].GetGauge().GetValue())
	require.Equal(t, 1.0, m["test_sharedmutex_writer_active"][0].GetGauge().GetValue())
	rwm.Unlock()
}
