package corort

// config collects the scheduler options (blocking-worker reuse cap and the
// init/suspend/halt/exception hooks), plus the ambient
// Logger/MetricsRecorder/LifecycleRegistry hooks added in SPEC_FULL.md
// §4.11-§4.16. There is no log-level option: which messages are emitted is
// decided by the configured Logger. It is built via functional options (Option),
// following the same LoopOption idiom the teacher corpus uses for its
// event loop.
type config struct {
	logger               Logger
	metrics              MetricsRecorder
	registry             LifecycleRegistry
	blockWorkersReuseCap int
	onInit               []func(*Scheduler)
	onSuspend            []func(*Scheduler)
	onHalt               []func(*Scheduler)
	onException          []func(*Scheduler, error)
}

func defaultConfig() *config {
	return &config{
		logger:               noopLogger{},
		metrics:              NewMetricsRecorder(noopMetrics{}),
		blockWorkersReuseCap: 0,
	}
}

// Option configures a Scheduler at construction time (see [NewScheduler]).
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithLogger installs a structured Logger. Defaults to a no-op logger.
func WithLogger(l Logger) Option {
	return optionFunc(func(c *config) {
		if l != nil {
			c.logger = l
		}
	})
}

// WithMetrics installs a MetricsRecorder (see corort/corometrics for a
// Prometheus-backed implementation). Defaults to a no-op recorder.
func WithMetrics(m MetricsRecorder) Option {
	return optionFunc(func(c *config) { c.metrics = m })
}

// WithLifecycleRegistry installs a process-wide LifecycleRegistry (see
// corort/cororeg for one concrete implementation). corort never implements
// the registry itself -- spec.md §1 lists it among the excluded external
// collaborators -- it only calls the narrow contract if one is configured.
func WithLifecycleRegistry(r LifecycleRegistry) Option {
	return optionFunc(func(c *config) {
		c.registry = r
	})
}

// WithBlockWorkersReuseCap sets the number of idle blocking-offload workers
// (spec.md §4.6) this scheduler retains between checkouts. 0 (the default
// for schedulers constructed directly) means every worker is joined and
// discarded at check-in; the process-wide global scheduler typically
// configures this to a small positive value.
func WithBlockWorkersReuseCap(n int) Option {
	return optionFunc(func(c *config) {
		if n >= 0 {
			c.blockWorkersReuseCap = n
		}
	})
}

// WithOnInit registers a handler invoked once, on the scheduler's own
// goroutine, just before its run loop begins draining the ready queue.
func WithOnInit(fn func(*Scheduler)) Option {
	return optionFunc(func(c *config) { c.onInit = append(c.onInit, fn) })
}

// WithOnSuspend registers a handler invoked whenever the scheduler's
// Lifecycle transitions executing->suspended.
func WithOnSuspend(fn func(*Scheduler)) Option {
	return optionFunc(func(c *config) { c.onSuspend = append(c.onSuspend, fn) })
}

// WithOnHalt registers a handler invoked once the run loop has drained its
// operations counter to zero after a Lifecycle.Drop.
func WithOnHalt(fn func(*Scheduler)) Option {
	return optionFunc(func(c *config) { c.onHalt = append(c.onHalt, fn) })
}

// WithOnException registers a handler invoked when a task panics; handlers
// may consult the panic value via recover() semantics surfaced as an error
// (spec.md §7: "the scheduler stores the current exception on a
// per-scheduler slot, invokes the on_exception handlers"). If no handler is
// installed, the panic propagates out of the run loop's goroutine.
func WithOnException(fn func(*Scheduler, error)) Option {
	return optionFunc(func(c *config) { c.onException = append(c.onException, fn) })
}
