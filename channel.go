package corort

// chanMode distinguishes the three channel shapes spec.md §4.9 describes:
// unbuffered (pure rendezvous), bounded (fixed-capacity buffer), and
// unbounded (unlimited buffer, send never parks).
type chanMode uint8

const (
	chanUnbuffered chanMode = iota
	chanBounded
	chanUnbounded
)

// RecvResult is what Channel.Recv's Task resolves to: the received value,
// or Ok=false if the channel was closed with nothing left buffered.
type RecvResult[T any] struct {
	Value T
	Ok    bool
}

type sendWaiter[T any] struct {
	value T
	core  *core[error]
}

type recvWaiter[T any] struct {
	core *core[RecvResult[T]]
}

// ChannelOption configures a Channel at construction time.
type ChannelOption interface{ applyChannel(*channelConfig) }

type channelConfig struct{ metrics MetricsRecorder }

type channelOptionFunc func(*channelConfig)

func (f channelOptionFunc) applyChannel(c *channelConfig) { f(c) }

// WithChannelMetrics attaches a MetricsRecorder that observes ChannelEvent
// calls for send/recv/close/park activity on this channel.
func WithChannelMetrics(m MetricsRecorder) ChannelOption {
	return channelOptionFunc(func(c *channelConfig) { c.metrics = m })
}

// Channel is component I: the channel family of spec.md §4.9, built over a
// pluggable lock discipline (component A) shared by both the channel's own
// structural lock and every in-flight operation's completion awaitable.
type Channel[T any] struct {
	mode     chanMode
	lockKind LockKind
	lock     locker
	metrics  MetricsRecorder

	buf           *circularBuffer[T] // mode == chanBounded
	unbounded     *fifoQueue[T]      // mode == chanUnbounded
	unboundedPool *nodePool[T]

	closed bool

	sendWaiters *fifoQueue[*sendWaiter[T]]
	sendPool    *nodePool[*sendWaiter[T]]
	recvWaiters *fifoQueue[*recvWaiter[T]]
	recvPool    *nodePool[*recvWaiter[T]]
}

func newChannel[T any](mode chanMode, kind LockKind, capacity int, opts []ChannelOption) *Channel[T] {
	cfg := channelConfig{metrics: NewMetricsRecorder(noopMetrics{})}
	for _, o := range opts {
		o.applyChannel(&cfg)
	}
	sendPool := newNodePool[*sendWaiter[T]]()
	recvPool := newNodePool[*recvWaiter[T]]()
	c := &Channel[T]{
		mode:        mode,
		lockKind:    kind,
		lock:        newLocker(kind),
		metrics:     cfg.metrics,
		sendPool:    sendPool,
		recvPool:    recvPool,
		sendWaiters: newFIFOQueue(sendPool),
		recvWaiters: newFIFOQueue(recvPool),
	}
	switch mode {
	case chanBounded:
		c.buf = newCircularBuffer[T](capacity)
	case chanUnbounded:
		c.unboundedPool = newNodePool[T]()
		c.unbounded = newFIFOQueue(c.unboundedPool)
	}
	return c
}

// NewUnbufferedChannel returns a channel with no internal buffer: Send
// parks until a matching Recv (or vice versa).
func NewUnbufferedChannel[T any](kind LockKind, opts ...ChannelOption) *Channel[T] {
	return newChannel[T](chanUnbuffered, kind, 0, opts)
}

// NewBoundedChannel returns a channel with a fixed-capacity internal
// buffer; Send parks only once the buffer is full and no receiver is
// waiting.
func NewBoundedChannel[T any](kind LockKind, capacity int, opts ...ChannelOption) *Channel[T] {
	return newChannel[T](chanBounded, kind, capacity, opts)
}

// NewUnboundedChannel returns a channel whose buffer grows without limit;
// Send never parks.
func NewUnboundedChannel[T any](kind LockKind, opts ...ChannelOption) *Channel[T] {
	return newChannel[T](chanUnbounded, kind, 0, opts)
}

func (c *Channel[T]) kindLabel() string {
	switch c.mode {
	case chanBounded:
		return "bounded"
	case chanUnbounded:
		return "unbounded"
	default:
		return "unbuffered"
	}
}

// Send returns a Task resolving to nil once value has been handed off (to
// a parked receiver, or into the buffer), or to [ErrChannelClosed] if the
// channel is already closed.
func (c *Channel[T]) Send(value T) Task[error] {
	sc := newCore[error](newLocker(c.lockKind), nil)
	c.metrics.channelEvent(c.kindLabel(), "send")

	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		sc.finish(ErrChannelClosed, nil)
		return FromAwaitable[error](erase(sc))
	}

	if rw, ok := c.recvWaiters.popFront(); ok {
		c.lock.Unlock()
		sc.finish(nil, nil)
		rw.core.finish(RecvResult[T]{Value: value, Ok: true}, nil)
		return FromAwaitable[error](erase(sc))
	}

	if c.bufferedPush(value) {
		c.lock.Unlock()
		sc.finish(nil, nil)
		return FromAwaitable[error](erase(sc))
	}

	c.sendWaiters.pushBack(&sendWaiter[T]{value: value, core: sc})
	c.lock.Unlock()
	c.metrics.channelEvent(c.kindLabel(), "send_parked")
	return FromAwaitable[error](erase(sc))
}

// bufferedPush stores value in the internal buffer if this channel has
// room for it, reporting whether it did.
func (c *Channel[T]) bufferedPush(value T) bool {
	switch c.mode {
	case chanBounded:
		if c.buf.full() {
			return false
		}
		c.buf.push(value)
		return true
	case chanUnbounded:
		c.unbounded.pushBack(value)
		return true
	default:
		return false
	}
}

// Recv returns a Task resolving to the next value, or to Ok=false once
// the channel is closed and drained.
func (c *Channel[T]) Recv() Task[RecvResult[T]] {
	rc := newCore[RecvResult[T]](newLocker(c.lockKind), nil)
	c.metrics.channelEvent(c.kindLabel(), "recv")

	c.lock.Lock()
	if v, ok := c.bufferedPop(); ok {
		c.promoteOneSenderLocked()
		c.lock.Unlock()
		rc.finish(RecvResult[T]{Value: v, Ok: true}, nil)
		return FromAwaitable[RecvResult[T]](erase(rc))
	}

	if sw, ok := c.sendWaiters.popFront(); ok {
		c.lock.Unlock()
		rc.finish(RecvResult[T]{Value: sw.value, Ok: true}, nil)
		sw.core.finish(nil, nil)
		return FromAwaitable[RecvResult[T]](erase(rc))
	}

	if c.closed {
		c.lock.Unlock()
		rc.finish(RecvResult[T]{}, nil)
		return FromAwaitable[RecvResult[T]](erase(rc))
	}

	c.recvWaiters.pushBack(&recvWaiter[T]{core: rc})
	c.lock.Unlock()
	c.metrics.channelEvent(c.kindLabel(), "recv_parked")
	return FromAwaitable[RecvResult[T]](erase(rc))
}

func (c *Channel[T]) bufferedPop() (T, bool) {
	switch c.mode {
	case chanBounded:
		if c.buf.empty() {
			var zero T
			return zero, false
		}
		return c.buf.pop(), true
	case chanUnbounded:
		return c.unbounded.popFront()
	default:
		var zero T
		return zero, false
	}
}

// promoteOneSenderLocked moves one parked sender's value into the buffer
// that just freed a slot, if this is a bounded channel with a waiting
// sender. Must be called with c.lock held.
func (c *Channel[T]) promoteOneSenderLocked() {
	if c.mode != chanBounded {
		return
	}
	sw, ok := c.sendWaiters.popFront()
	if !ok {
		return
	}
	c.buf.push(sw.value)
	sw.core.finish(nil, nil)
}

// TrySend attempts a non-parking send: it returns sent=false if the
// channel has no room and no waiting receiver, rather than suspending.
func (c *Channel[T]) TrySend(value T) (sent bool, err error) {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return false, ErrChannelClosed
	}
	if rw, ok := c.recvWaiters.popFront(); ok {
		c.lock.Unlock()
		rw.core.finish(RecvResult[T]{Value: value, Ok: true}, nil)
		return true, nil
	}
	if c.bufferedPush(value) {
		c.lock.Unlock()
		return true, nil
	}
	c.lock.Unlock()
	return false, nil
}

// TryRecv attempts a non-parking receive. ok is false only if the
// operation would have had to park (nothing buffered, no waiting sender,
// channel still open); a closed, drained channel instead reports
// ok=true, result.Ok=false.
func (c *Channel[T]) TryRecv() (result RecvResult[T], ok bool) {
	c.lock.Lock()
	if v, got := c.bufferedPop(); got {
		c.promoteOneSenderLocked()
		c.lock.Unlock()
		return RecvResult[T]{Value: v, Ok: true}, true
	}
	if sw, got := c.sendWaiters.popFront(); got {
		c.lock.Unlock()
		sw.core.finish(nil, nil)
		return RecvResult[T]{Value: sw.value, Ok: true}, true
	}
	if c.closed {
		c.lock.Unlock()
		return RecvResult[T]{}, true
	}
	c.lock.Unlock()
	return RecvResult[T]{}, false
}

// Close marks the channel closed: one-shot and irreversible (spec.md
// §4.9). Every parked receiver resolves with Ok=false; every parked
// sender resolves with [ErrChannelClosed]. Closing an already-closed
// channel is a no-op.
func (c *Channel[T]) Close() {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return
	}
	c.closed = true
	var recvs []*recvWaiter[T]
	for {
		rw, ok := c.recvWaiters.popFront()
		if !ok {
			break
		}
		recvs = append(recvs, rw)
	}
	var sends []*sendWaiter[T]
	for {
		sw, ok := c.sendWaiters.popFront()
		if !ok {
			break
		}
		sends = append(sends, sw)
	}
	c.lock.Unlock()

	c.metrics.channelEvent(c.kindLabel(), "close")
	for _, rw := range recvs {
		rw.core.finish(RecvResult[T]{}, nil)
	}
	for _, sw := range sends {
		sw.core.finish(ErrChannelClosed, nil)
	}
}

// Closed reports whether Close has been called.
func (c *Channel[T]) Closed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closed
}

// Size returns this channel's fixed capacity (0 for unbuffered and
// unbounded channels, for which the concept does not apply).
func (c *Channel[T]) Size() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.mode == chanBounded {
		return c.buf.cap
	}
	return 0
}

// Used returns the number of values currently buffered.
func (c *Channel[T]) Used() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	switch c.mode {
	case chanBounded:
		return c.buf.size()
	case chanUnbounded:
		return c.unbounded.len()
	default:
		return 0
	}
}
