package corort

import "time"

// timerEntry is the Timer tuple from spec.md §3: a unique id, an absolute
// deadline, a one-shot result awaitable, and (implicitly) the scheduler it
// belongs to, since timerList is always owned by exactly one Scheduler.
type timerEntry struct {
	id       uint64
	deadline time.Time
	result   *core[bool] // true = timeout, false = cancel
}

// timerList keeps timers sorted by deadline ascending. Inserts are
// typically near the tail (new timers usually have later deadlines than
// most already pending), so a simple insertion scan from the tail
// suffices, per spec.md §4.5; cancellation is a linear scan by id.
type timerList struct {
	entries []*timerEntry
}

// insert adds e, keeping entries sorted ascending by deadline.
func (tl *timerList) insert(e *timerEntry) {
	i := len(tl.entries)
	for i > 0 && tl.entries[i-1].deadline.After(e.deadline) {
		i--
	}
	tl.entries = append(tl.entries, nil)
	copy(tl.entries[i+1:], tl.entries[i:])
	tl.entries[i] = e
}

// popExpired removes and returns every entry whose deadline is <= now.
func (tl *timerList) popExpired(now time.Time) []*timerEntry {
	n := 0
	for n < len(tl.entries) && !tl.entries[n].deadline.After(now) {
		n++
	}
	if n == 0 {
		return nil
	}
	expired := tl.entries[:n:n]
	tl.entries = append([]*timerEntry(nil), tl.entries[n:]...)
	return expired
}

// cancel removes the timer with the given id, if present. O(n) in the
// timer count, as spec.md §4.5 specifies.
func (tl *timerList) cancel(id uint64) (*timerEntry, bool) {
	for i, e := range tl.entries {
		if e.id == id {
			tl.entries = append(tl.entries[:i], tl.entries[i+1:]...)
			return e, true
		}
	}
	return nil, false
}

// nextDeadline reports the earliest pending deadline, if any.
func (tl *timerList) nextDeadline() (time.Time, bool) {
	if len(tl.entries) == 0 {
		return time.Time{}, false
	}
	return tl.entries[0].deadline, true
}

func (tl *timerList) len() int { return len(tl.entries) }
