package corort

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// driveToCompletion advances a frame with no scheduler attached, looping on
// frameReady and failing the test if it ever parks -- useful for exercising
// combinators that never suspend on anything but synchronously-ready
// awaitables.
func driveToCompletion(t *testing.T, f *taskFrame) {
	t.Helper()
	for i := 0; i < 10000; i++ {
		switch f.advance() {
		case frameDone:
			return
		case frameReady:
			continue
		case frameParked:
			t.Fatalf("frame parked unexpectedly")
		}
	}
	t.Fatalf("frame did not complete within bound")
}

func TestValueCompletesImmediately(t *testing.T) {
	task := Value(42)
	driveToCompletion(t, task.f)
	require.True(t, task.f.isDone())
}

func TestFailCompletesWithError(t *testing.T) {
	task := Fail[int](ErrHalted)
	var gotErr error
	task.f.cleanup = func(_ any, err error) { gotErr = err }
	driveToCompletion(t, task.f)
	require.ErrorIs(t, gotErr, ErrHalted)
}

func TestGoRunsSynchronously(t *testing.T) {
	ran := false
	task := Go(func() (int, error) {
		ran = true
		return 9, nil
	})
	driveToCompletion(t, task.f)
	require.True(t, ran)
}

func TestFromAwaitableSuspendsThenCompletes(t *testing.T) {
	c := newCore[int](newLocker(LockMutex), nil)
	task := FromAwaitable[int](erase(c))

	outcome := task.f.advance()
	require.Equal(t, frameParked, outcome)
	require.False(t, task.f.isDone())

	c.finish(5, nil)
	require.True(t, task.f.isDone())
}

func TestFromAwaitableSynchronouslyReady(t *testing.T) {
	c := newCore[int](newLocker(LockMutex), nil)
	c.finish(5, nil)
	task := FromAwaitable[int](erase(c))

	outcome := task.f.advance()
	require.Equal(t, frameReady, outcome)
	outcome = task.f.advance()
	require.Equal(t, frameDone, outcome)
}

func TestThenChainsOnSynchronousValues(t *testing.T) {
	task := Then(Value(2), func(v int, err error) Task[int] {
		require.NoError(t, err)
		return Value(v * 10)
	})
	var got int
	task.f.cleanup = func(v any, err error) {
		require.NoError(t, err)
		got = v.(int)
	}
	driveToCompletion(t, task.f)
	require.Equal(t, 20, got)
}

func TestThenPropagatesErrorIntoContinuation(t *testing.T) {
	sentinel := errors.New("boom")
	task := Then(Fail[int](sentinel), func(v int, err error) Task[int] {
		if err != nil {
			return Value(-1)
		}
		return Value(v)
	})
	var got int
	task.f.cleanup = func(v any, _ error) { got = v.(int) }
	driveToCompletion(t, task.f)
	require.Equal(t, -1, got)
}

func TestThenChainsThroughSuspension(t *testing.T) {
	c := newCore[int](newLocker(LockMutex), nil)
	task := Then(FromAwaitable[int](erase(c)), func(v int, err error) Task[int] {
		require.NoError(t, err)
		return Value(v + 1)
	})

	var got int
	task.f.cleanup = func(v any, _ error) { got = v.(int) }

	outcome := task.f.advance()
	require.Equal(t, frameParked, outcome)

	// Simulate resumption directly (bypassing deliverAndReschedule's
	// owning-scheduler lookup, since this frame was never adopted by a
	// Scheduler -- Scheduler-mediated resumption is covered by the
	// scheduler tests) by setting the pending result the awaitable would
	// have delivered and driving the frame forward again.
	task.f.mu.Lock()
	task.f.pending = pendingResult{value: 41, err: nil}
	task.f.mu.Unlock()
	driveToCompletion(t, task.f)
	require.Equal(t, 42, got)
}

func TestMultiStepThenChain(t *testing.T) {
	task := Then(Value(1), func(v int, _ error) Task[int] {
		return Then(Value(v+1), func(v int, _ error) Task[int] {
			return Then(Value(v+1), func(v int, _ error) Task[int] {
				return Value(v + 1)
			})
		})
	})
	var got int
	task.f.cleanup = func(v any, _ error) { got = v.(int) }
	driveToCompletion(t, task.f)
	require.Equal(t, 4, got)
}

func TestTaskFrameForceDestroyInvokesCleanupOnce(t *testing.T) {
	f := &taskFrame{next: func(any, error) step { return suspendStep(erase(newCore[int](newLocker(LockMutex), nil)), func(any, error) step { return doneStep(nil, nil) }) }}
	calls := 0
	f.cleanup = func(_ any, _ error) { calls++ }

	outcome := f.advance()
	require.Equal(t, frameParked, outcome)

	f.forceDestroy(ErrSchedulerGone)
	require.Equal(t, 1, calls)

	// Second call is a no-op.
	f.forceDestroy(ErrSchedulerGone)
	require.Equal(t, 1, calls)
}

func TestTaskFrameForceDestroyReportsFrameDestroyedError(t *testing.T) {
	f := &taskFrame{next: func(any, error) step { return suspendStep(erase(newCore[int](newLocker(LockMutex), nil)), func(any, error) step { return doneStep(nil, nil) }) }}
	var gotErr error
	f.cleanup = func(_ any, err error) { gotErr = err }
	f.advance()
	f.forceDestroy(ErrSchedulerGone)

	var fde *FrameDestroyedError
	require.ErrorAs(t, gotErr, &fde)
	require.ErrorIs(t, fde.Cause, ErrSchedulerGone)
}

func TestParkedThreadSignalWakesWaiters(t *testing.T) {
	pt := newParkedThread()
	done := make(chan struct{})
	go func() {
		v, err := pt.wait()
		require.NoError(t, err)
		require.Equal(t, "x", v)
		close(done)
	}()
	pt.signal("x", nil)
	<-done
}
