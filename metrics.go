package corort

// MetricsRecorder is the narrow contract a Scheduler reports runtime gauges
// and counters through. corort ships no metrics implementation of its own
// (a Scheduler built without one records nothing, via noopMetrics); see
// corort/corometrics for a Prometheus-backed implementation, SPEC_FULL.md
// §4.14.
type MetricsRecorder struct{ impl metricsImpl }

// metricsImpl is implemented by concrete recorders. It is kept unexported
// so MetricsRecorder stays a simple value type applications pass around
// (obtained via corometrics.New(...).Recorder()),
// while corort itself only ever calls through the interface.
type metricsImpl interface {
	ReadyQueueDepth(n int)
	Operations(n int)
	TimerCount(n int)
	BlockWorkers(checkedOut, idle int)
	ChannelEvent(kind, op string)
}

// NewMetricsRecorder wraps a concrete implementation (normally
// corometrics.Collector) as a MetricsRecorder.
func NewMetricsRecorder(impl metricsImpl) MetricsRecorder { return MetricsRecorder{impl: impl} }

func (m MetricsRecorder) readyQueueDepth(n int) {
	if m.impl != nil {
		m.impl.ReadyQueueDepth(n)
	}
}

func (m MetricsRecorder) operations(n int) {
	if m.impl != nil {
		m.impl.Operations(n)
	}
}

func (m MetricsRecorder) timerCount(n int) {
	if m.impl != nil {
		m.impl.TimerCount(n)
	}
}

func (m MetricsRecorder) blockWorkers(checkedOut, idle int) {
	if m.impl != nil {
		m.impl.BlockWorkers(checkedOut, idle)
	}
}

func (m MetricsRecorder) channelEvent(kind, op string) {
	if m.impl != nil {
		m.impl.ChannelEvent(kind, op)
	}
}

type noopMetrics struct{}

func (noopMetrics) ReadyQueueDepth(int)           {}
func (noopMetrics) Operations(int)                {}
func (noopMetrics) TimerCount(int)                {}
func (noopMetrics) BlockWorkers(int, int)         {}
func (noopMetrics) ChannelEvent(string, string)   {}

var _ metricsImpl = noopMetrics{}
