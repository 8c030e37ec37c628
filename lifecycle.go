package corort

import (
	"context"
	"time"
)

// LifecycleRegistry is the narrow contract corort calls into a process-wide
// lifecycle registry through -- spec.md §1 lists such a registry among the
// excluded external collaborators corort only consumes, never implements.
// See corort/cororeg for one concrete implementation.
type LifecycleRegistry interface {
	// Manage is called once, from [NewScheduler], with the new scheduler's
	// Lifecycle handle, so the registry can track it for coordinated
	// shutdown.
	Manage(*Lifecycle)

	// AwaitBeforeExit registers an awaitable the registry guarantees to
	// await before the process-wide shutdown it coordinates completes,
	// even if nothing else in the process ever awaits it directly. This
	// mirrors a fire-and-forget background task the caller never joins
	// themselves, but still wants drained cleanly rather than abandoned.
	AwaitBeforeExit(Awaitable)
}

// Lifecycle is the external control object for a Scheduler: the half of
// spec.md §3's state machine (ready/executing/suspended/halted) that is
// driven from outside the scheduler's own goroutine. Scheduler itself only
// exposes the run loop.
type Lifecycle struct {
	s *Scheduler
}

// Scheduler returns the scheduler this handle controls.
func (lc *Lifecycle) Scheduler() *Scheduler { return lc.s }

// AwaitBeforeExit forwards a to the configured LifecycleRegistry's
// AwaitBeforeExit, if one was installed via [WithLifecycleRegistry]; it is
// a no-op otherwise. This is the hook for a task that detaches itself
// (nothing in the process will ever Join it directly) but still must not
// be abandoned mid-flight when the process shuts down.
func (lc *Lifecycle) AwaitBeforeExit(a Awaitable) {
	if lc.s.cfg.registry != nil {
		lc.s.cfg.registry.AwaitBeforeExit(a)
	}
}

// Suspend transitions executing->suspended: the run loop finishes driving
// its current batch, then blocks until Resume or Drop. It is a no-op if
// the scheduler is not currently executing.
func (lc *Lifecycle) Suspend() {
	s := lc.s
	s.mu.Lock()
	suspended := s.state.cas(stateExecuting, stateSuspended)
	s.mu.Unlock()
	if !suspended {
		return
	}
	for _, fn := range s.cfg.onSuspend {
		fn(s)
	}
}

// Resume transitions suspended->executing, waking the run loop.
func (lc *Lifecycle) Resume() {
	s := lc.s
	s.mu.Lock()
	s.state.cas(stateSuspended, stateExecuting)
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Drop transitions the scheduler to halted: no further submissions are
// accepted once outstanding operations reach zero (spec.md §4.7), and the
// run loop exits once it observes halted-with-zero-operations. Drop blocks
// until that drain completes or ctx is done; if ctx is done first, every
// still-live frame is force-destroyed (spec.md §3's
// "destroyed-without-completing" path) and Drop returns ctx.Err().
func (lc *Lifecycle) Drop(ctx context.Context) error {
	s := lc.s
	s.mu.Lock()
	s.state.store(stateHalted)
	s.mu.Unlock()
	s.cond.Broadcast()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		if s.operations.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			s.forceDestroyLiveFrames(ctx.Err())
			s.cond.Broadcast()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// registerFrame tracks f as live for the duration of its execution, so a
// forced Drop can destroy frames that never got the chance to complete
// (spec.md §3). Grounded on the teacher corpus's registry.go, simplified
// from a weak-pointer ring buffer to a plain guarded map, since corort's
// registry only needs to serve one scheduler's own forced shutdown rather
// than a process-wide scavenger.
func (s *Scheduler) registerFrame(f *taskFrame) {
	s.liveMu.Lock()
	if s.live == nil {
		s.live = make(map[*taskFrame]struct{})
	}
	s.live[f] = struct{}{}
	s.liveMu.Unlock()
}

func (s *Scheduler) unregisterFrame(f *taskFrame) {
	s.liveMu.Lock()
	delete(s.live, f)
	s.liveMu.Unlock()
}

func (s *Scheduler) forceDestroyLiveFrames(cause error) {
	s.liveMu.Lock()
	frames := make([]*taskFrame, 0, len(s.live))
	for f := range s.live {
		frames = append(frames, f)
	}
	s.live = nil
	s.liveMu.Unlock()

	for _, f := range frames {
		f.forceDestroy(cause)
	}

	s.mu.Lock()
	pendingTimers := s.timers.entries
	s.timers.entries = nil
	s.mu.Unlock()
	for _, e := range pendingTimers {
		e.result.finish(false, nil)
	}

	if n := len(frames) + len(pendingTimers); n > 0 {
		s.operations.Store(0)
		s.cfg.logger.Log(LevelWarn, "forced drop destroyed outstanding work", F("scheduler", s.id), F("count", n))
	}
}
