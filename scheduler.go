package corort

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"weak"
)

// getGoroutineID extracts the calling goroutine's numeric id by parsing the
// "goroutine N [...]:" header of a runtime.Stack dump -- the same technique
// the teacher corpus's event loop uses to recognise its own loop goroutine
// for fast-path dispatch.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// schedulerState is the lifecycle state machine of spec.md §3: one of
// ready, executing, suspended, halted. It is a lock-free CAS state
// machine, the same design the teacher corpus's FastState uses for its
// event loop's run/sleep/terminate transitions.
type schedulerState uint32

const (
	stateReady schedulerState = iota
	stateExecuting
	stateSuspended
	stateHalted
)

type atomicState struct{ v atomic.Uint32 }

func (s *atomicState) load() schedulerState { return schedulerState(s.v.Load()) }
func (s *atomicState) store(v schedulerState) { s.v.Store(uint32(v)) }
func (s *atomicState) cas(from, to schedulerState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

var schedulerIDCounter atomic.Uint64

// runningSchedulers maps the goroutine id currently driving each
// Scheduler's Run loop back to that Scheduler, so code with no direct
// Scheduler reference (AwaitResult) can still recognise "this goroutine is
// inside a task" and diagnose the misuse instead of deadlocking.
var runningSchedulers sync.Map // uint64 -> *Scheduler

// Scheduler is a single-goroutine cooperative executor: component G. It
// owns a ready queue and a sorted timer list, exposes
// Schedule/Join/Scope/Start/Sleep/Cancel/Block, and is driven by calling
// Run on one dedicated goroutine (spec.md §4.5, §5).
type Scheduler struct {
	id  uint64
	cfg *config

	mu        sync.Mutex // guards readyQueue, timers, operations-adjacent waking
	cond      *sync.Cond
	readyQueue *fifoQueue[*taskFrame]
	nodePool  *nodePool[*taskFrame]
	timers    timerList
	operations atomic.Int64

	state   atomicState
	running atomic.Bool

	nextTimerID atomic.Uint64
	blocking    *blockPool

	runGoroutineID atomic.Uint64 // goroutine id of the current Run call, 0 when not running

	liveMu sync.Mutex
	live   map[*taskFrame]struct{}

	exceptionMu sync.Mutex
	lastException error

	self weak.Pointer[Scheduler] // cached weak reference to itself, handed to frames as their destination
}

// NewScheduler constructs a Scheduler and the Lifecycle handle that
// controls it, matching spec.md §6's
// `Scheduler::make(config?) -> (lifecycle_handle, scheduler_handle)`.
func NewScheduler(opts ...Option) (*Lifecycle, *Scheduler) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}
	pool := newNodePool[*taskFrame]()
	s := &Scheduler{
		id:         schedulerIDCounter.Add(1),
		cfg:        cfg,
		nodePool:   pool,
		readyQueue: newFIFOQueue(pool),
	}
	s.cond = sync.NewCond(&s.mu)
	s.self = weak.Make(s)
	s.blocking = newBlockPool(s, cfg.blockWorkersReuseCap)
	lc := &Lifecycle{s: s}
	if cfg.registry != nil {
		cfg.registry.Manage(lc)
	}
	return lc, s
}

// ID returns a stable, process-unique identifier for this scheduler, used
// in diagnostics (e.g. SubmissionError).
func (s *Scheduler) ID() uint64 { return s.id }

// Submission is satisfied by Task[T] for any T, letting Schedule and Scope
// accept a heterogeneous list of tasks (Go methods cannot introduce new
// type parameters, so this interface replaces what would otherwise be a
// generic variadic parameter).
type Submission interface{ frame() *taskFrame }

func (t Task[T]) frame() *taskFrame { return t.f }

func (s *Scheduler) adopt(f *taskFrame) {
	f.owner = s.self
}

// canAccept reports whether a new submission should be accepted: always
// while not halted, and even once halted as long as operations are still
// outstanding (spec.md §4.7: in-flight trees may finish).
func (s *Scheduler) canAccept() bool {
	if s.state.load() != stateHalted {
		return true
	}
	return s.operations.Load() > 0
}

// Schedule submits tasks onto the ready queue. It fails only if the
// scheduler is permanently halted and has no outstanding operations.
func (s *Scheduler) Schedule(tasks ...Submission) bool {
	if len(tasks) == 0 {
		return s.canAccept()
	}
	s.mu.Lock()
	if !s.canAccept() {
		s.mu.Unlock()
		s.cfg.logger.Log(LevelWarn, "schedule rejected: halted", F("scheduler", s.id))
		return false
	}
	for _, t := range tasks {
		f := t.frame()
		s.adopt(f)
		s.operations.Add(1)
		s.readyQueue.pushBack(f)
		s.registerFrame(f)
	}
	s.cfg.metrics.readyQueueDepth(s.readyQueue.len())
	s.cfg.metrics.operations(int(s.operations.Load()))
	s.mu.Unlock()
	s.cond.Broadcast()
	s.cfg.logger.Log(LevelDebug, "scheduled", F("scheduler", s.id), F("count", len(tasks)))
	return true
}

// enqueueResumed re-queues a previously-parked frame. Per spec.md §4.4,
// this does NOT increment the operations counter -- the frame was already
// counted when originally submitted.
func (s *Scheduler) enqueueResumed(f *taskFrame) {
	s.mu.Lock()
	s.readyQueue.pushBack(f)
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Join installs a joiner on t's cleanup hook, schedules t, and returns the
// joiner as an Awaitable: waiting on it (via [AwaitResult] from a plain
// goroutine, or [FromAwaitable] from within another task) yields t's
// return value, or a *FrameDestroyedError if t's frame was torn down
// before completing.
func Join[T any](s *Scheduler, t Task[T]) (Awaitable, error) {
	j, install := newJoiner[T]()
	install(t.f)
	if !s.Schedule(t) {
		return nil, &SubmissionError{SchedulerID: s.id, Cause: ErrHalted}
	}
	return erase(j), nil
}

// Sleep returns a Task that completes with true after d elapses. Per
// spec.md §4.5/§5, Sleep is deliberately non-cancellable: it hides the
// timer id that Start exposes.
func (s *Scheduler) Sleep(d time.Duration) Task[bool] {
	_, t := s.Start(d)
	return t
}

// Start creates a timer for d and returns its id alongside a Task that
// completes with true on timeout or false if Cancel(id) is called first.
func (s *Scheduler) Start(d time.Duration) (uint64, Task[bool]) {
	id := s.nextTimerID.Add(1)
	c := newCore[bool](newLocker(LockSpin), nil)
	entry := &timerEntry{id: id, deadline: time.Now().Add(d), result: c}

	s.mu.Lock()
	if s.state.load() == stateHalted {
		s.mu.Unlock()
		c.finish(false, nil)
		s.cfg.logger.Log(LevelDebug, "timer cancelled: scheduler halted", F("timer", id))
		return id, FromAwaitable[bool](erase(c))
	}
	s.operations.Add(1)
	s.timers.insert(entry)
	s.cfg.metrics.timerCount(s.timers.len())
	s.mu.Unlock()
	s.cond.Broadcast()
	return id, FromAwaitable[bool](erase(c))
}

// Cancel removes the timer identified by id, if it has not already fired.
// It returns true iff a matching timer was found and removed; the timer's
// Task then yields false.
func (s *Scheduler) Cancel(id uint64) bool {
	s.mu.Lock()
	entry, ok := s.timers.cancel(id)
	if ok {
		s.cfg.metrics.timerCount(s.timers.len())
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.operations.Add(-1)
	entry.result.finish(false, nil)
	s.cfg.logger.Log(LevelDebug, "timer cancelled", F("timer", id))
	return true
}

// isSchedulerThread reports whether the calling goroutine is the one
// currently driving this scheduler's Run loop.
func (s *Scheduler) isSchedulerThread() bool {
	id := s.runGoroutineID.Load()
	return id != 0 && getGoroutineID() == id
}

// Block runs fn without stalling a cooperative worker (spec.md §4.6). If
// the caller is not inside a task (not on the scheduler's own run-loop
// goroutine) or is already executing on one of the scheduler's
// blocking-offload workers, fn runs inline on the calling goroutine and the
// returned Task is synchronously ready with its result -- offloading would
// buy nothing there, and for a worker thread it would deadlock the pool
// against itself. Otherwise fn is checked out to the offload pool (see
// blocking.go) so the run loop is never stalled. Go cannot express a
// generic method, so Block is a package-level function parameterized over
// fn's result type.
func Block[T any](s *Scheduler, fn func() (T, error)) Task[T] {
	if !s.isSchedulerThread() || s.blocking.isWorkerThread() {
		v, err := fn()
		f := &taskFrame{next: func(any, error) step { return doneStep(v, err) }}
		return Task[T]{f: f}
	}
	c := newCore[T](newLocker(LockMutex), nil)
	s.blocking.submit(func() {
		v, err := fn()
		c.finish(v, err)
	})
	return FromAwaitable[T](erase(c))
}

// Scope creates a [Scope] rooted on this scheduler, schedules the given
// submissions and adds a joiner for each of them to it, and returns the
// Scope handle itself. It does not return an awaitable: the Task that
// completes once every added awaitable (and any later added via
// [Scope.Add] on the returned handle) has completed is obtained by calling
// [Scope.Await] on that handle.
func (s *Scheduler) Scope(tasks ...Submission) (*Scope, error) {
	sc, err := NewScope(s)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		j, install := newJoiner[any]()
		install(t.frame())
		if !s.Schedule(t) {
			return nil, &SubmissionError{SchedulerID: s.id, Cause: ErrHalted}
		}
		if addErr := sc.Add(erase(j)); addErr != nil {
			return nil, addErr
		}
	}
	return sc, nil
}

// Run drives this scheduler's event loop on the calling goroutine until
// its Lifecycle is dropped and every outstanding operation has drained, or
// ctx is cancelled. It must be called on a dedicated goroutine: spec.md's
// "single-threaded cooperative executor" maps, in Go, onto "the one
// goroutine that calls Run".
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrReentrantRun
	}
	defer s.running.Store(false)
	gid := getGoroutineID()
	s.runGoroutineID.Store(gid)
	runningSchedulers.Store(gid, s)
	defer runningSchedulers.Delete(gid)
	defer s.runGoroutineID.Store(0)

	// Wake an idle loop when ctx is cancelled, so it observes ctx.Err().
	stopWake := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.mu.Unlock()
		s.cond.Broadcast()
	})
	defer stopWake()

	s.state.cas(stateReady, stateExecuting)
	for _, fn := range s.cfg.onInit {
		fn(s)
	}
	s.cfg.logger.Log(LevelInfo, "scheduler starting", F("scheduler", s.id))

	local := newFIFOQueue(s.nodePool)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.mu.Lock()
		for s.state.load() == stateSuspended {
			s.cond.Wait()
		}
		if s.state.load() == stateHalted && s.operations.Load() == 0 {
			s.mu.Unlock()
			break
		}
		local.concatBack(s.readyQueue)
		s.mu.Unlock()

		for {
			f, ok := local.popFront()
			if !ok {
				break
			}
			s.runFrame(f, local)
		}

		now := time.Now()
		s.mu.Lock()
		expired := s.timers.popExpired(now)
		s.cfg.metrics.timerCount(s.timers.len())
		nextDeadline, haveNext := s.timers.nextDeadline()
		hasReady := !s.readyQueue.empty()
		s.mu.Unlock()

		for _, e := range expired {
			s.operations.Add(-1)
			e.result.finish(true, nil)
		}
		s.cfg.metrics.operations(int(s.operations.Load()))

		if len(expired) > 0 || hasReady {
			continue
		}

		s.mu.Lock()
		// ctx is re-checked under s.mu, which the cancellation wake-up also
		// takes, so a cancel between the top-of-loop check and here is seen.
		if ctx.Err() == nil && s.state.load() == stateExecuting && s.readyQueue.empty() && s.timers.len() > 0 && haveNext {
			wait := time.Until(nextDeadline)
			if wait > 0 {
				s.waitWithTimeout(wait)
			}
		} else if ctx.Err() == nil && s.state.load() == stateExecuting && s.readyQueue.empty() {
			if s.state.load() != stateHalted {
				s.cond.Wait()
			}
		}
		s.mu.Unlock()
	}

	s.cfg.logger.Log(LevelInfo, "scheduler halted", F("scheduler", s.id))
	for _, fn := range s.cfg.onHalt {
		fn(s)
	}
	return nil
}

// waitWithTimeout waits on s.cond for at most d, assuming s.mu is held. It
// always re-acquires s.mu before returning.
func (s *Scheduler) waitWithTimeout(d time.Duration) {
	done := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		s.mu.Lock()
		s.mu.Unlock()
		s.cond.Broadcast()
	})
	go func() {
		<-done
		timer.Stop()
	}()
	s.cond.Wait()
	close(done)
}

// runFrame advances f by one step, handling panics per spec.md §7
// (captured per-frame, stored, handlers invoked, loop continues).
func (s *Scheduler) runFrame(f *taskFrame, local *fifoQueue[*taskFrame]) {
	outcome, perr := s.safeAdvance(f)
	if perr != nil {
		s.recordException(perr)
	}
	switch outcome {
	case frameDone:
		s.unregisterFrame(f)
		s.operations.Add(-1)
		s.cfg.metrics.operations(int(s.operations.Load()))
	case frameReady:
		local.pushBack(f)
	case frameParked:
		// adopted elsewhere; nothing further to do here.
	}
}

// safeAdvance recovers a panicking frame only when at least one
// OnException handler is installed. With no handler configured, spec.md
// §7's "if no handler is installed the exception propagates out of the run
// loop" applies literally: the panic is left unrecovered here, unwinds
// through runFrame and Run, and aborts the goroutine driving this
// scheduler.
func (s *Scheduler) safeAdvance(f *taskFrame) (outcome frameOutcome, panicErr error) {
	if len(s.cfg.onException) == 0 {
		return f.advance(), nil
	}
	defer func() {
		if r := recover(); r != nil {
			panicErr = panicToError(r)
			f.forceDestroy(panicErr)
			outcome = frameDone
		}
	}()
	outcome = f.advance()
	return
}

func (s *Scheduler) recordException(err error) {
	s.exceptionMu.Lock()
	s.lastException = err
	s.exceptionMu.Unlock()
	s.cfg.logger.Log(LevelError, "task panicked", F("scheduler", s.id), F("error", err.Error()))
	if len(s.cfg.onException) == 0 {
		return
	}
	for _, fn := range s.cfg.onException {
		fn(s, err)
	}
}

// reportBug records a diagnosed framework-misuse (BugError), as opposed to
// an ordinary task panic: double-await, AwaitResult called from inside a
// task, or an awaitable garbage-collected while still holding a parked
// frame. It is always routed through the Logger and any installed
// OnException handlers, the same as recordException, so a bug never
// silently vanishes.
func (s *Scheduler) reportBug(op, msg string) *BugError {
	err := &BugError{Op: op, Message: msg}
	s.exceptionMu.Lock()
	s.lastException = err
	s.exceptionMu.Unlock()
	s.cfg.logger.Log(LevelError, "bug detected", F("scheduler", s.id), F("op", op), F("message", msg))
	for _, fn := range s.cfg.onException {
		fn(s, err)
	}
	return err
}

// LastException returns the most recently recorded unhandled task panic,
// if any, so an OnException handler can consult it (spec.md §7).
func (s *Scheduler) LastException() error {
	s.exceptionMu.Lock()
	defer s.exceptionMu.Unlock()
	return s.lastException
}

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &BugError{Op: "task", Message: formatPanic(r)}
}
