// Package corort provides a single-process coroutine runtime: cooperative,
// suspendable tasks driven by a single-goroutine scheduler, a uniform
// awaitable protocol shared between tasks and plain goroutines, a blocking
// offload pool for synchronous work, and a channel family (unbuffered,
// bounded, unbounded) with pluggable lock discipline.
//
// # Architecture
//
// A [Scheduler] runs on one dedicated goroutine. Application code submits
// [Task] values built from small continuations (see [Value], [Then],
// [FromAwaitable]); the scheduler drives each task to its next suspension
// point, which is represented by an [Awaitable]. An awaitable either
// reports ready immediately (the task keeps running in the same tick) or
// parks the task's frame, to be resumed later by whatever produces the
// corresponding event: a channel send/recv, a timer firing, a blocking
// callable finishing, or another task completing (see [Join]).
//
// Tasks are NOT goroutines. Go has no stackless-coroutine lowering, so
// [Task] is implemented as an explicit continuation chain (a trampoline)
// rather than a suspended stack; this keeps the runtime's scheduling unit
// cheap and avoids spawning an OS thread per task.
//
// # Usage
//
//	lc, sched := corort.NewScheduler()
//	defer lc.Drop(context.Background())
//	go sched.Run(context.Background())
//
//	joined, _ := corort.Join(sched, corort.Value(42))
//	answer, err := corort.AwaitResult[int](joined)
//
// # Thread safety
//
// [Scheduler.Schedule], [Join], [Scheduler.Scope],
// [Scheduler.Sleep]/[Scheduler.Start], [Scheduler.Cancel], and
// [Block] are all safe to call from any goroutine, including
// from within a task running on the scheduler itself. Channels and [Scope]
// are safe for concurrent use from multiple tasks and goroutines, subject
// to the lock discipline chosen at construction (see [LockKind]).
package corort
