package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/nvidia-uda/uda/wire"
)

func TestObserveRequestIncrementsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveRequest(wire.PluginFile, false, false, 10*time.Millisecond)
	c.ObserveRequest(wire.PluginFile, true, true, 5*time.Millisecond)

	mf, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, f := range mf {
		found[f.GetName()] = true
	}
	require.True(t, found["uda_requests_total"])
	require.True(t, found["uda_request_failures_total"])
	require.True(t, found["uda_fingerprint_cache_hits_total"])
	require.True(t, found["uda_fingerprint_cache_misses_total"])
}

func TestSetHandleCountReportsValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.SetHandleCount(7)

	require.Equal(t, float64(7), testutil.ToFloat64(c.handles))
}
