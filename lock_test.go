package corort

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLocker(t *testing.T) {
	for _, kind := range []LockKind{LockSpin, LockMutex, LockNone} {
		l := newLocker(kind)
		require.True(t, l.TryLock())
		l.Unlock()
		l.Lock()
		l.Unlock()
	}
}

func TestSpinLockMutualExclusion(t *testing.T) {
	l := &spinLock{}
	require.True(t, l.TryLock())
	require.False(t, l.TryLock())
	l.Unlock()
	require.True(t, l.TryLock())
	l.Unlock()
}

func TestSpinLockConcurrent(t *testing.T) {
	l := &spinLock{}
	counter := 0
	var wg sync.WaitGroup
	const n = 100
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Lock()
			counter++
			l.Unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, n, counter)
}

func TestBlockingLockTryLock(t *testing.T) {
	l := &blockingLock{}
	require.True(t, l.TryLock())
	require.False(t, l.TryLock())
	l.Unlock()
}

func TestNoopLockAlwaysSucceeds(t *testing.T) {
	l := noopLock{}
	require.True(t, l.TryLock())
	require.True(t, l.TryLock())
	l.Lock()
	l.Unlock()
}
