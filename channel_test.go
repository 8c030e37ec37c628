package corort

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBoundedChannelBufferingWithinCapacity(t *testing.T) {
	ch := NewBoundedChannel[int](LockMutex, 2)

	sent1, err1 := ch.TrySend(1)
	sent2, err2 := ch.TrySend(2)
	require.True(t, sent1)
	require.NoError(t, err1)
	require.True(t, sent2)
	require.NoError(t, err2)

	require.Equal(t, 2, ch.Used())
	require.Equal(t, 2, ch.Size())

	sent3, err3 := ch.TrySend(3)
	require.False(t, sent3)
	require.NoError(t, err3)

	r1, ok := ch.TryRecv()
	require.True(t, ok)
	require.Equal(t, 1, r1.Value)
	require.True(t, r1.Ok)

	r2, ok := ch.TryRecv()
	require.True(t, ok)
	require.Equal(t, 2, r2.Value)
}

func TestUnboundedChannelNeverBlocksOnSend(t *testing.T) {
	ch := NewUnboundedChannel[int](LockMutex)
	for i := 0; i < 100; i++ {
		sent, err := ch.TrySend(i)
		require.True(t, sent)
		require.NoError(t, err)
	}
	require.Equal(t, 100, ch.Used())

	for i := 0; i < 100; i++ {
		r, ok := ch.TryRecv()
		require.True(t, ok)
		require.Equal(t, i, r.Value)
	}
}

func TestChannelTryRecvOnEmptyOpenChannelFails(t *testing.T) {
	ch := NewBoundedChannel[int](LockMutex, 1)
	_, ok := ch.TryRecv()
	require.False(t, ok)
}

func TestChannelTryRecvOnClosedDrainedChannel(t *testing.T) {
	ch := NewBoundedChannel[int](LockMutex, 1)
	ch.Close()
	r, ok := ch.TryRecv()
	require.True(t, ok)
	require.False(t, r.Ok)
}

func TestChannelSendOnClosedChannelFails(t *testing.T) {
	ch := NewBoundedChannel[int](LockMutex, 1)
	ch.Close()
	sent, err := ch.TrySend(1)
	require.False(t, sent)
	require.ErrorIs(t, err, ErrChannelClosed)
}

func TestChannelCloseIsIdempotent(t *testing.T) {
	ch := NewBoundedChannel[int](LockMutex, 1)
	require.False(t, ch.Closed())
	ch.Close()
	require.True(t, ch.Closed())
	require.NotPanics(t, ch.Close)
}

func TestChannelAsyncSendRecvThroughScheduler(t *testing.T) {
	_, sched := NewScheduler()
	stop := runScheduler(t, sched)
	defer stop()

	ch := NewBoundedChannel[int](LockSpin, 1)

	sendA, err := Join(sched, Then(ch.Send(10), func(e error, _ error) Task[struct{}] {
		require.NoError(t, e)
		return Value(struct{}{})
	}))
	require.NoError(t, err)

	recvA, err := Join(sched, Then(ch.Recv(), func(r RecvResult[int], _ error) Task[int] {
		return Value(r.Value)
	}))
	require.NoError(t, err)

	_, err = AwaitResult[struct{}](sendA)
	require.NoError(t, err)
	v, err := AwaitResult[int](recvA)
	require.NoError(t, err)
	require.Equal(t, 10, v)
}

func TestChannelUnbufferedParkedSenderWokenByReceiver(t *testing.T) {
	_, sched := NewScheduler()
	stop := runScheduler(t, sched)
	defer stop()

	ch := NewUnbufferedChannel[string](LockSpin)

	sendA, err := Join(sched, ch.Send("hi"))
	require.NoError(t, err)

	// Give the send a moment to park (it must, since no receiver is
	// waiting yet and unbuffered channels never buffer).
	time.Sleep(10 * time.Millisecond)

	recvA, err := Join(sched, ch.Recv())
	require.NoError(t, err)

	r, err := AwaitResult[RecvResult[string]](recvA)
	require.NoError(t, err)
	require.True(t, r.Ok)
	require.Equal(t, "hi", r.Value)

	sendErr, err := AwaitResult[error](sendA)
	require.NoError(t, err)
	require.NoError(t, sendErr)
}

func TestChannelCloseWakesParkedReceiver(t *testing.T) {
	_, sched := NewScheduler()
	stop := runScheduler(t, sched)
	defer stop()

	ch := NewBoundedChannel[int](LockSpin, 1)
	recvA, err := Join(sched, ch.Recv())
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	ch.Close()

	r, err := AwaitResult[RecvResult[int]](recvA)
	require.NoError(t, err)
	require.False(t, r.Ok)
}

func TestChannelCloseFailsParkedSender(t *testing.T) {
	_, sched := NewScheduler()
	stop := runScheduler(t, sched)
	defer stop()

	ch := NewUnbufferedChannel[int](LockSpin)
	sendA, err := Join(sched, ch.Send(1))
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	ch.Close()

	sendErr, err := AwaitResult[error](sendA)
	require.NoError(t, err)
	require.ErrorIs(t, sendErr, ErrChannelClosed)
}

func TestChannelMetricsOptionObservesEvents(t *testing.T) {
	rec := &recordingMetrics{}
	ch := NewBoundedChannel[int](LockMutex, 1, WithChannelMetrics(NewMetricsRecorder(rec)))
	// Metrics are recorded synchronously when Send/Recv build their Task,
	// before any scheduler drives it.
	ch.Send(1)
	ch.Recv()
	require.Contains(t, rec.channelOp, "send")
	require.Contains(t, rec.channelOp, "recv")
}

func TestPromoteOneSenderOnBoundedRecv(t *testing.T) {
	_, sched := NewScheduler()
	stop := runScheduler(t, sched)
	defer stop()

	ch := NewBoundedChannel[int](LockSpin, 1)
	sent, err := ch.TrySend(1)
	require.True(t, sent)
	require.NoError(t, err)

	sendA, joinErr := Join(sched, ch.Send(2))
	require.NoError(t, joinErr)
	time.Sleep(10 * time.Millisecond)

	r, ok := ch.TryRecv()
	require.True(t, ok)
	require.Equal(t, 1, r.Value)

	sendErr, err := AwaitResult[error](sendA)
	require.NoError(t, err)
	require.NoError(t, sendErr)

	r2, ok := ch.TryRecv()
	require.True(t, ok)
	require.Equal(t, 2, r2.Value)
}
