package corort

import (
	"sync"
	"unsafe"
	"weak"
)

// step is the trampoline's unit of progress: either a terminal (done,
// value, err) triple, or a non-terminal (await, then) pair meaning "suspend
// on await; once it resumes, call then with its result to get the next
// step". This is the explicit state-machine representation spec.md's
// Design Notes call for in place of a compiler-lowered stackless frame.
type step struct {
	done  bool
	value any
	err   error
	await Awaitable
	then  func(value any, err error) step
}

func doneStep(value any, err error) step { return step{done: true, value: value, err: err} }

func suspendStep(await Awaitable, then func(any, error) step) step {
	return step{await: await, then: then}
}

// pendingResult is the payload an awaitable hands back to a frame it is
// resuming, stored on the frame until the scheduler next drives it.
type pendingResult struct {
	value any
	err   error
}

// frameOutcome reports what happened when the scheduler drove a taskFrame
// one step forward.
type frameOutcome int

const (
	// frameDone means the task reached completion on this step; its
	// cleanup (joiner) has already been invoked.
	frameDone frameOutcome = iota
	// frameParked means the task suspended on an awaitable that did not
	// resolve synchronously; the frame is no longer owned by the
	// scheduler's ready queue until that awaitable resumes it.
	frameParked
	// frameReady means the task suspended on an awaitable that resolved
	// synchronously (the fast path); the caller should re-queue the frame
	// to run its next step rather than looping inline, preserving FIFO
	// fairness with sibling frames in the same batch.
	frameReady
)

// taskFrame is the scheduler-visible handle to a resumable, stackless
// (in the sense of spec.md's Non-goals) computation: component E. It is
// owned, at any moment, by exactly one of: the scheduler's ready queue, an
// awaitable that has adopted it after suspension, or a local stack
// variable during resumption -- mirroring spec.md §3's Task lifecycle.
type taskFrame struct {
	mu      sync.Mutex
	next    func(value any, err error) step
	pending pendingResult
	done    bool
	cleanup func(value any, err error)
	owner   weak.Pointer[Scheduler]
}

// addr returns a stable identifier for this frame, used in diagnostics
// (e.g. FrameDestroyedError) the same way spec.md's "frame address" is
// used to correlate a joiner failure with the frame that caused it.
func (f *taskFrame) addr() uintptr { return uintptr(unsafe.Pointer(f)) }

// advance drives the frame exactly one step forward, per spec.md §4.5's
// run-loop contract: resume once, then report whether it finished, parked,
// or is ready to run again immediately.
func (f *taskFrame) advance() frameOutcome {
	f.mu.Lock()
	in := f.pending
	next := f.next
	f.mu.Unlock()
	if next == nil {
		return frameDone
	}
	st := next(in.value, in.err)
	if st.done {
		f.mu.Lock()
		f.done = true
		cleanup := f.cleanup
		f.mu.Unlock()
		if cleanup != nil {
			cleanup(st.value, st.err)
		}
		return frameDone
	}
	f.mu.Lock()
	f.next = st.then
	f.mu.Unlock()
	w := &waiter{frame: f}
	value, err, ready := st.await.trySuspend(w)
	if ready {
		f.mu.Lock()
		f.pending = pendingResult{value, err}
		f.mu.Unlock()
		return frameReady
	}
	return frameParked
}

// deliverAndReschedule is called by an awaitable's core when it resumes a
// parked frame (component D's "destination" hook, spec.md §4.4). It stores
// the payload and re-enqueues the frame on its owning scheduler, or
// force-destroys the frame if that scheduler has since been dropped.
func (f *taskFrame) deliverAndReschedule(value any, err error) {
	f.mu.Lock()
	f.pending = pendingResult{value, err}
	f.mu.Unlock()
	sched := f.owner.Value()
	if sched == nil {
		f.forceDestroy(ErrSchedulerGone)
		return
	}
	sched.enqueueResumed(f)
}

// forceDestroy finalizes a frame that will never be driven again --
// because its owning scheduler is gone, or because a Lifecycle.Drop forced
// a drain (spec.md §3: "a frame destroyed while not-done is a bug: any
// joiner completes with a destroyed-without-completing failure"). It is a
// no-op if the frame already completed normally.
func (f *taskFrame) forceDestroy(cause error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	cleanup := f.cleanup
	f.mu.Unlock()
	if cleanup != nil {
		cleanup(nil, &FrameDestroyedError{Addr: f.addr(), Cause: cause})
	}
}

func (f *taskFrame) isDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Task is a handle to a resumable computation with a typed return slot.
// Tasks are built from the combinators below ([Value], [Then],
// [FromAwaitable], [Go]) rather than written as ordinary blocking
// functions: Go has no stackless-coroutine lowering, so a Task's body is
// compiled by hand into the continuation chain the scheduler drives.
type Task[T any] struct {
	f *taskFrame
}

// Value returns a Task that completes immediately with v, performing no
// suspension. This is the "(a) executing pure tasks" case of spec.md §1.
func Value[T any](v T) Task[T] {
	f := &taskFrame{next: func(any, error) step { return doneStep(v, nil) }}
	return Task[T]{f: f}
}

// Fail returns a Task that completes immediately with err.
func Fail[T any](err error) Task[T] {
	var zero T
	f := &taskFrame{next: func(any, error) step { return doneStep(zero, err) }}
	return Task[T]{f: f}
}

// Go returns a Task that runs fn synchronously (without suspending) on
// whatever goroutine drives it to completion -- the scheduler's own
// goroutine, if submitted via [Scheduler.Schedule]/[Join].
func Go[T any](fn func() (T, error)) Task[T] {
	f := &taskFrame{}
	f.next = func(any, error) step {
		v, err := fn()
		return doneStep(v, err)
	}
	return Task[T]{f: f}
}

// FromAwaitable returns a Task that suspends once on a, then completes
// with a's result cast to T.
func FromAwaitable[T any](a Awaitable) Task[T] {
	f := &taskFrame{}
	f.next = func(any, error) step {
		return suspendStep(a, func(v any, err error) step {
			var zero T
			return doneStep(castOrZero[T](v, zero), err)
		})
	}
	return Task[T]{f: f}
}

// Then chains fn onto t: once t completes, fn is called with its result to
// produce the next Task, which is then run to completion in t's place.
// This is corort's monadic bind -- the Go-idiomatic stand-in for
// `await`-style sequencing, directly analogous to the teacher corpus's
// Promise.Then chaining, generalized with type parameters.
func Then[T, U any](t Task[T], fn func(T, error) Task[U]) Task[U] {
	f := &taskFrame{}
	cur := t.f.next
	phase := 0 // 0: running t's chain; 1: running the continuation task's chain
	var run func(in any, inErr error) step
	run = func(in any, inErr error) step {
		st := cur(in, inErr)
		if !st.done {
			prevThen := st.then
			return suspendStep(st.await, func(v any, e error) step {
				cur = prevThen
				return run(v, e)
			})
		}
		if phase == 0 {
			var zero T
			nt := fn(castOrZero[T](st.value, zero), st.err)
			phase = 1
			cur = nt.f.next
			return run(nil, nil)
		}
		return doneStep(st.value, st.err)
	}
	f.next = run
	return Task[U]{f: f}
}

// parkedThread is the per-goroutine park object a plain (non-task)
// goroutine uses to block synchronously on an Awaitable: a condition
// variable plus a settled flag, matching spec.md §3's "per-thread park
// object (a condvar+flag)".
type parkedThread struct {
	mu    sync.Mutex
	cond  *sync.Cond
	done  bool
	value any
	err   error
}

func newParkedThread() *parkedThread {
	p := &parkedThread{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *parkedThread) wait() (any, error) {
	p.mu.Lock()
	for !p.done {
		p.cond.Wait()
	}
	v, e := p.value, p.err
	p.mu.Unlock()
	return v, e
}

func (p *parkedThread) signal(value any, err error) {
	p.mu.Lock()
	p.value, p.err, p.done = value, err, true
	p.mu.Unlock()
	p.cond.Broadcast()
}
