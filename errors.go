package corort

import (
	"errors"
	"fmt"
)

// Sentinel errors. Channel-close and timer-cancel are NOT modeled as
// errors (spec.md §7: "not an error; encoded in the success/failure return
// value of the operation") -- only genuine failure kinds live here.
var (
	// ErrHalted is the Cause of the *SubmissionError that Join and
	// Scheduler.Scope return when the scheduler is permanently halted and
	// has no outstanding operations (Schedule reports the same condition by
	// returning false).
	ErrHalted = errors.New("corort: scheduler is halted")

	// ErrReentrantRun is returned by Scheduler.Run when that scheduler's
	// loop is already running, whether the second call comes from another
	// goroutine or from within a task running on that same scheduler
	// (spec.md §7: "install-inside-a-coroutine").
	ErrReentrantRun = errors.New("corort: scheduler's loop is already running")

	// ErrSchedulerGone is the cause recorded on a FrameDestroyedError when
	// a frame's destination scheduler was dropped before the frame could
	// be rescheduled (spec.md §4.4: "If S has been dropped, the frame is
	// destroyed (diagnosed)").
	ErrSchedulerGone = errors.New("corort: destination scheduler no longer exists")

	// ErrScopeAlreadyAwaited is returned by Scope.Add once Scope.Await has
	// been called; spec.md's Open Questions forbid a second Await and
	// forbid Add after Await (single-shot scope).
	ErrScopeAlreadyAwaited = errors.New("corort: scope already awaited")

	// ErrChannelClosed is the value-level result of Send on a closed
	// channel (spec.md §7: close is encoded in the return value, never
	// surfaced as a task panic).
	ErrChannelClosed = errors.New("corort: channel is closed")
)

// FrameDestroyedError reports that a task's frame was torn down before it
// ran to completion: the "destroyed-without-completing" failure of
// spec.md §3/§7. A joiner (see [Join]) that observes this carries the frame's address
// so operators can correlate it with logs from before the destruction.
type FrameDestroyedError struct {
	// Addr is the address of the destroyed frame, for diagnostics only; it
	// is not dereferenceable.
	Addr uintptr
	// Cause is why the frame was torn down (e.g. ErrSchedulerGone, or the
	// error passed to Lifecycle.Drop's forced finalization).
	Cause error
}

func (e *FrameDestroyedError) Error() string {
	return fmt.Sprintf("corort: task frame 0x%x destroyed without completing: %v", e.Addr, e.Cause)
}

func (e *FrameDestroyedError) Unwrap() error { return e.Cause }

// BugError reports a diagnosed framework misuse, distinct from an ordinary
// task panic (spec.md §7: "awaitable misuse ... diagnosed as a framework
// bug"). Three scenarios are diagnosed this way:
//
//   - double-await: a second waiter suspends on an awaitable that already
//     has one parked, abandoning the first waiter would otherwise be a
//     silent leak.
//   - AwaitResult called from inside a task, on the awaiting goroutine's
//     own scheduler, for an awaitable that is not already synchronously
//     ready: waiting here would deadlock the scheduler's only goroutine.
//   - an awaitable garbage-collected while still holding a parked frame,
//     the Go stand-in for a C++ awaitable's destructor firing mid-suspend.
//
// It is always routed through the Logger contract and, if installed,
// OnException handlers; it never silently vanishes.
type BugError struct {
	Op      string
	Message string
}

func (e *BugError) Error() string {
	return fmt.Sprintf("corort: bug in %s: %s", e.Op, e.Message)
}

// SubmissionError is the distinct failure kind spec.md §7 requires from
// Join/Scope (as opposed to the boolean Schedule returns): it carries the
// identity of the scheduler that refused the submission.
type SubmissionError struct {
	SchedulerID uint64
	Cause       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("corort: scheduler %d rejected submission: %v", e.SchedulerID, e.Cause)
}

func (e *SubmissionError) Unwrap() error { return e.Cause }

// formatPanic renders an arbitrary recover() value as a BugError message
// when it is not itself an error.
func formatPanic(r any) string {
	return fmt.Sprintf("%v", r)
}
