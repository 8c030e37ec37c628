// Package corometrics is a Prometheus-backed corort.MetricsRecorder,
// exposing the runtime gauges and counters a Scheduler reports (ready
// queue depth, outstanding operations, pending timers, blocking-offload
// worker counts, and channel send/recv/close events).
package corometrics

import (
	"github.com/joeycumines/go-corort"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector is a registered set of Prometheus metrics for one Scheduler.
// Construct it with [New] and pass .Recorder() to [corort.WithMetrics].
type Collector struct {
	readyQueueDepth prometheus.Gauge
	operations      prometheus.Gauge
	timerCount      prometheus.Gauge
	blockCheckedOut prometheus.Gauge
	blockIdle       prometheus.Gauge
	channelEvents   *prometheus.CounterVec
}

// New registers a Collector's metrics against reg (or the default
// registerer, if reg is nil) under a "corort_" prefix, distinguished by
// the given scheduler label (so more than one Scheduler's metrics can
// coexist on the same registry).
func New(reg prometheus.Registerer, scheduler string) *Collector {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"scheduler": scheduler}
	return &Collector{
		readyQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "corort_ready_queue_depth",
			Help:        "Number of task frames currently in the scheduler's ready queue.",
			ConstLabels: labels,
		}),
		operations: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "corort_operations",
			Help:        "Number of outstanding operations the scheduler is tracking for halt-drain purposes.",
			ConstLabels: labels,
		}),
		timerCount: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "corort_timer_count",
			Help:        "Number of pending timers.",
			ConstLabels: labels,
		}),
		blockCheckedOut: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "corort_block_workers_checked_out",
			Help:        "Number of blocking-offload workers currently running work.",
			ConstLabels: labels,
		}),
		blockIdle: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "corort_block_workers_idle",
			Help:        "Number of blocking-offload workers parked for reuse.",
			ConstLabels: labels,
		}),
		channelEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "corort_channel_events_total",
			Help:        "Channel operations, by channel kind and operation.",
			ConstLabels: labels,
		}, []string{"kind", "op"}),
	}
}

// Recorder wraps this Collector as a corort.MetricsRecorder.
func (c *Collector) Recorder() corort.MetricsRecorder { return corort.NewMetricsRecorder(c) }

func (c *Collector) ReadyQueueDepth(n int) { c.readyQueueDepth.Set(float64(n)) }
func (c *Collector) Operations(n int)      { c.operations.Set(float64(n)) }
func (c *Collector) TimerCount(n int)      { c.timerCount.Set(float64(n)) }

func (c *Collector) BlockWorkers(checkedOut, idle int) {
	c.blockCheckedOut.Set(float64(checkedOut))
	c.blockIdle.Set(float64(idle))
}

func (c *Collector) ChannelEvent(kind, op string) {
	c.channelEvents.WithLabelValues(kind, op).Inc()
}
