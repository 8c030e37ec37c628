package corort

import "sync"

// Scope is component J: an unbounded channel of awaitable handles plus a
// root awaiter task that drains it, per spec.md §4.10. Add appends an
// awaitable to the scope; Await closes the channel (no further Add calls
// succeed) and returns a Task that completes once every added awaitable,
// and the channel's drain itself, have finished.
type Scope struct {
	ch *Channel[Awaitable]

	mu      sync.Mutex
	awaited bool

	done *core[struct{}]
}

// NewScope creates a Scope whose root awaiter task is immediately
// scheduled on s. Most callers should prefer [Scheduler.Scope], which
// also schedules and adds a batch of tasks in one call.
func NewScope(s *Scheduler) (*Scope, error) {
	sc := &Scope{ch: NewUnboundedChannel[Awaitable](LockMutex)}

	root := sc.buildRootTask()
	j, install := newJoiner[struct{}]()
	install(root.f)
	sc.done = j

	if !s.Schedule(root) {
		return nil, &SubmissionError{SchedulerID: s.id, Cause: ErrHalted}
	}
	return sc, nil
}

// buildRootTask returns the task that repeatedly receives an awaitable
// from the scope's channel and awaits it to completion, looping until the
// channel reports closed-and-drained.
func (sc *Scope) buildRootTask() Task[struct{}] {
	var loop func() Task[struct{}]
	loop = func() Task[struct{}] {
		return Then(sc.ch.Recv(), func(r RecvResult[Awaitable], err error) Task[struct{}] {
			if err != nil || !r.Ok {
				return Value(struct{}{})
			}
			return Then(FromAwaitable[any](r.Value), func(any, error) Task[struct{}] {
				return loop()
			})
		})
	}
	return loop()
}

// Add appends a to the scope. It fails with [ErrScopeAlreadyAwaited] once
// Await has been called -- a scope is single-shot, per spec.md's Open
// Questions resolution in DESIGN.md.
func (sc *Scope) Add(a Awaitable) error {
	sc.mu.Lock()
	if sc.awaited {
		sc.mu.Unlock()
		return ErrScopeAlreadyAwaited
	}
	sc.mu.Unlock()
	if _, err := sc.ch.TrySend(a); err != nil {
		return err
	}
	return nil
}

// Await closes the scope to further Add calls and returns a Task
// completing once every awaitable added to the scope (and the drain loop
// itself) has finished. Calling Await a second time yields a Task that
// fails immediately with [ErrScopeAlreadyAwaited].
func (sc *Scope) Await() Task[struct{}] {
	sc.mu.Lock()
	if sc.awaited {
		sc.mu.Unlock()
		return Fail[struct{}](ErrScopeAlreadyAwaited)
	}
	sc.awaited = true
	sc.mu.Unlock()
	sc.ch.Close()
	return FromAwaitable[struct{}](erase(sc.done))
}
