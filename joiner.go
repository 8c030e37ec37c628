package corort

// newJoiner builds the awaitable that spec.md's component F ("Joiner")
// describes: an awaitable completing with a task's return value, or with
// a *FrameDestroyedError if the frame was torn down before it finished.
// install attaches the joiner to the target frame's cleanup hook; it must
// be called before the frame is first scheduled, since a frame's cleanup
// runs at most once, exactly when the frame transitions to done.
func newJoiner[T any]() (c *core[T], install func(f *taskFrame)) {
	c = newCore[T](newLocker(LockMutex), nil)
	install = func(f *taskFrame) {
		prev := f.cleanup
		f.cleanup = func(value any, err error) {
			if prev != nil {
				prev(value, err)
			}
			var zero T
			c.finish(castOrZero[T](value, zero), err)
		}
	}
	return c, install
}
