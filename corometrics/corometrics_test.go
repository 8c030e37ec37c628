package corometrics

import (
	"testing"

	"github.com/joeycumines/go-corort"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorReportsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg, "s1")

	c.ReadyQueueDepth(4)
	c.Operations(2)
	c.TimerCount(1)
	c.BlockWorkers(3, 5)
	c.ChannelEvent("bounded", "send")
	c.ChannelEvent("bounded", "send")

	require.Equal(t, float64(4), testutil.ToFloat64(c.readyQueueDepth))
	require.Equal(t, float64(2), testutil.ToFloat64(c.operations))
	require.Equal(t, float64(1), testutil.ToFloat64(c.timerCount))
	require.Equal(t, float64(3), testutil.ToFloat64(c.blockCheckedOut))
	require.Equal(t, float64(5), testutil.ToFloat64(c.blockIdle))
	require.Equal(t, float64(2), testutil.ToFloat64(c.channelEvents.WithLabelValues("bounded", "send")))
}

func TestRecorderSatisfiesCorortMetricsContract(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg, "s2")
	rec := c.Recorder()

	require.NotPanics(t, func() {
		_, sched := corort.NewScheduler(corort.WithMetrics(rec))
		require.NotNil(t, sched)
	})
}

func TestTwoCollectorsOnSameRegistryAreDistinguishedByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "a")
	b := New(reg, "b")

	a.Operations(1)
	b.Operations(9)

	require.Equal(t, float64(1), testutil.ToFloat64(a.operations))
	require.Equal(t, float64(9), testutil.ToFloat64(b.operations))
}
