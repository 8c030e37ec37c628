package corort

import (
	"log/slog"
	"runtime"
	"sync/atomic"
)

// fallbackLogger is used for bug diagnostics that cannot be attributed to
// any live scheduler (its destination has already been dropped, or the
// misuse happened on a waiter with no scheduler context at all). It is the
// zero-dependency slog adapter over slog.Default(); a Scheduler with no
// configured Logger uses a no-op logger instead.
var fallbackLogger = NewStdLogger(slog.Default())

// Awaitable is the type-erased suspension primitive every task suspends on
// and every plain goroutine can also wait on synchronously. Concrete
// awaitables (joiners, timers, channel parks, blocking-offload results)
// embed [core] and expose it through this interface so the scheduler's run
// loop never needs to know the awaited value's concrete type.
//
// Exactly one of {parked frame, parked goroutine, neither} holds between a
// call to trySuspend/trySuspendLocked and the corresponding resume. resume
// is called at most once per awaitable lifecycle; resuming an
// already-settled awaitable is a no-op, not an error (spec: "no-op on
// double-resume of a logically-completed awaitable").
type Awaitable interface {
	// trySuspend acquires whatever lock the awaitable uses internally,
	// checks readiness, and either returns the result immediately or parks
	// w. This is the await_policy=defer path.
	trySuspend(w *waiter) (value any, err error, ready bool)

	// trySuspendLocked is the await_policy=adopt path: the caller already
	// holds the awaitable's lock (typically because the awaitable shares a
	// lock with a channel the caller is also operating on) and retains
	// responsibility for unlocking afterward.
	trySuspendLocked(w *waiter) (value any, err error, ready bool)
}

// waiter is adopted by an Awaitable when a caller suspends on it. Exactly
// one of frame or thread is set.
type waiter struct {
	frame  *taskFrame
	thread *parkedThread
}

// deliver hands (value, err) to whichever of frame/thread this waiter
// represents, resolving the frame's destination scheduler if needed. It is
// called by the concrete awaitable's finish step, after the awaitable has
// already marked itself settled.
func (w *waiter) deliver(value any, err error) {
	if w.frame != nil {
		w.frame.deliverAndReschedule(value, err)
		return
	}
	w.thread.signal(value, err)
}

// core is the embeddable implementation shared by every concrete awaitable
// in corort (joiner, timer, channel park, blocking-offload result). It
// implements the locking and settle-once bookkeeping described in spec.md
// §4.3, parameterized over the awaited value's type; concrete awaitables
// expose it through the type-erased Awaitable interface via the thin
// erasedCore adapter (see erase below).
type core[T any] struct {
	lock      locker
	onReadyFn func() (T, error, bool) // nil means "never synchronously ready"
	waiter    *waiter
	guard     *parkGuard // non-nil while waiter is a parked frame, so GC can detect abandonment
	settled   bool
	value     T
	err       error
}

func newCore[T any](lock locker, onReady func() (T, error, bool)) *core[T] {
	return &core[T]{lock: lock, onReadyFn: onReady}
}

// parkGuard is the argument handed to a core's runtime.AddCleanup callback:
// it lets the cleanup tell "this awaitable settled normally before being
// collected" (delivered) apart from "this awaitable was still holding a
// parked frame when it became unreachable" (spec.md's "awaitable destroyed
// with a parked frame still held is a framework bug"), without the
// cleanup itself referencing the core (which would keep it alive forever).
type parkGuard struct {
	delivered atomic.Bool
	frame     *taskFrame
}

// abandonedParkCleanup runs once a core[T] holding a parked frame becomes
// unreachable without ever having delivered to it -- the Go stand-in for a
// C++ awaitable's destructor firing while still holding a suspended frame.
// It force-destroys the orphaned frame and diagnoses the misuse as a
// BugError, since otherwise the frame would simply leak forever, parked on
// an awaitable nobody can ever resume.
func abandonedParkCleanup(g *parkGuard) {
	if g.delivered.Load() || g.frame == nil || g.frame.isDone() {
		return
	}
	bugErr := &BugError{Op: "Awaitable", Message: "awaitable garbage-collected while still holding a parked frame"}
	if sched := g.frame.owner.Value(); sched != nil {
		sched.reportBug(bugErr.Op, bugErr.Message)
	} else {
		fallbackLogger.Log(LevelError, "bug detected", F("op", bugErr.Op), F("message", bugErr.Message))
	}
	g.frame.forceDestroy(bugErr)
}

// reportAwaitableBug diagnoses a misuse detected by a core itself (as
// opposed to one detected by the scheduler's run loop): it routes through
// the owning scheduler's Logger/OnException hooks when one of the waiters
// involved has a resolvable destination, or the package-level fallback
// logger otherwise. Never returns without logging -- a BugError must never
// silently vanish (spec.md §7).
func reportAwaitableBug(w *waiter, op, msg string) *BugError {
	if w.frame != nil {
		if sched := w.frame.owner.Value(); sched != nil {
			return sched.reportBug(op, msg)
		}
	}
	fallbackLogger.Log(LevelError, "bug detected", F("op", op), F("message", msg))
	return &BugError{Op: op, Message: msg}
}

// suspendLocked is the await_policy=adopt entry point: the caller already
// holds c.lock. It returns the ready result, or parks w and returns
// ready=false. Either way the caller remains responsible for unlocking.
//
// A second suspend on an awaitable that already has a parked waiter is a
// double-await (spec.md §7: "awaitable misuse ... diagnosed as a framework
// bug"): the existing waiter is left parked exactly as it was, and the new
// caller gets back a *BugError instead of silently displacing it.
func (c *core[T]) suspendLocked(w *waiter) (value T, err error, ready bool) {
	if c.settled {
		return c.value, c.err, true
	}
	if c.waiter != nil {
		return value, reportAwaitableBug(w, "Awaitable", "double-await: a second waiter suspended on an awaitable that already has one parked"), true
	}
	if c.onReadyFn != nil {
		if v, e, ok := c.onReadyFn(); ok {
			c.settled = true
			c.value, c.err = v, e
			return v, e, true
		}
	}
	c.waiter = w
	if w.frame != nil {
		g := &parkGuard{frame: w.frame}
		c.guard = g
		runtime.AddCleanup(c, abandonedParkCleanup, g)
	}
	return value, err, false
}

// suspend is the await_policy=defer entry point: it locks, delegates to
// suspendLocked, and unlocks before returning.
func (c *core[T]) suspend(w *waiter) (value T, err error, ready bool) {
	c.lock.Lock()
	value, err, ready = c.suspendLocked(w)
	c.lock.Unlock()
	return
}

// finishLocked is the resume_policy=adopt path: the caller holds c.lock and
// transfers responsibility for unlocking to finishLocked. It settles the
// awaitable and delivers the result to any parked waiter.
func (c *core[T]) finishLocked(v T, e error) {
	if c.settled {
		c.lock.Unlock()
		return
	}
	c.settled = true
	c.value, c.err = v, e
	w := c.waiter
	c.waiter = nil
	if c.guard != nil {
		c.guard.delivered.Store(true)
	}
	c.lock.Unlock()
	if w != nil {
		w.deliver(v, e)
	}
}

// finish is the resume_policy=lock path: it locks, then delegates to the
// same settle-and-deliver logic finishLocked performs, unlocking itself.
func (c *core[T]) finish(v T, e error) {
	c.lock.Lock()
	c.finishLocked(v, e)
}

// finishNoLock is the resume_policy=no_lock path: the awaitable never
// touches its lock on resume, because the caller guarantees exclusivity by
// some other means (e.g. the scheduler's own timer-list lock already
// serializes timer resumption).
func (c *core[T]) finishNoLock(v T, e error) {
	if c.settled {
		return
	}
	c.settled = true
	c.value, c.err = v, e
	w := c.waiter
	c.waiter = nil
	if c.guard != nil {
		c.guard.delivered.Store(true)
	}
	if w != nil {
		w.deliver(v, e)
	}
}

// result returns the settled value, synchronously. The caller must only
// call this after confirming readiness (via trySuspend or a completed
// wait); it does not itself block.
func (c *core[T]) result() (T, error) {
	c.lock.Lock()
	v, e := c.value, c.err
	c.lock.Unlock()
	return v, e
}

// --- type-erased adapter, so core[T] can back the Awaitable interface ---

type erasedCore[T any] struct{ c *core[T] }

func (e erasedCore[T]) trySuspend(w *waiter) (any, error, bool) {
	v, err, ready := e.c.suspend(w)
	return v, err, ready
}

func (e erasedCore[T]) trySuspendLocked(w *waiter) (any, error, bool) {
	v, err, ready := e.c.suspendLocked(w)
	return v, err, ready
}

// erase adapts a typed core into the type-erased Awaitable interface the
// scheduler's trampoline drives tasks with.
func erase[T any](c *core[T]) Awaitable { return erasedCore[T]{c} }

// AwaitResult synchronously blocks the calling goroutine until the given
// awaitable settles, and returns its result cast to T. It is safe to call
// from a plain goroutine that never runs inside a task.
//
// Calling it from within a task running on a Scheduler, for an awaitable
// that is not already synchronously ready, would re-block that scheduler's
// only goroutine forever (spec.md §3's destruction contract: "diagnose as
// a bug if the caller is inside a task"). AwaitResult recognises this by
// checking whether the calling goroutine is the one currently driving some
// Scheduler's Run loop, and reports a *BugError instead of deadlocking.
func AwaitResult[T any](a Awaitable) (T, error) {
	var zero T
	pt := newParkedThread()
	v, err, ready := a.trySuspend(&waiter{thread: pt})
	if ready {
		return castOrZero[T](v, zero), err
	}
	if v, ok := runningSchedulers.Load(getGoroutineID()); ok {
		bugErr := v.(*Scheduler).reportBug("AwaitResult", "called from inside a task on its own scheduler's goroutine; waiting here would deadlock the scheduler")
		return zero, bugErr
	}
	rv, rerr := pt.wait()
	return castOrZero[T](rv, zero), rerr
}

func castOrZero[T any](v any, zero T) T {
	if v == nil {
		return zero
	}
	return v.(T)
}
