package corort

import "sync"

// blockPool is component H: the blocking-offload pool of spec.md §4.6.
// Work submitted to it runs on a dedicated goroutine so it never stalls
// the scheduler's own cooperative goroutine; goroutines are reused up to
// reuseCap idle workers and discarded beyond that, mirroring "checkout an
// idle worker if one exists, otherwise spin up a new one; on check-in,
// keep it idle only while under the reuse cap".
type blockPool struct {
	s        *Scheduler
	reuseCap int

	mu         sync.Mutex
	idle       []chan func()
	checkedOut int

	workers sync.Map // goroutine id (uint64) -> struct{}, membership = "this goroutine is a blocking-offload worker"
}

func newBlockPool(s *Scheduler, reuseCap int) *blockPool {
	return &blockPool{s: s, reuseCap: reuseCap}
}

// submit runs work on a blocking-offload worker, counting it as one
// outstanding operation on s for the duration (spec.md §4.7: a Drop must
// wait for in-flight blocking work, not just ready-queue frames).
func (p *blockPool) submit(work func()) {
	p.s.operations.Add(1)
	wrapped := func() {
		defer func() {
			if r := recover(); r != nil {
				p.s.recordException(panicToError(r))
			}
			p.s.operations.Add(-1)
			p.s.cfg.metrics.operations(int(p.s.operations.Load()))
		}()
		work()
	}

	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		ch := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.checkedOut++
		idle := len(p.idle)
		p.mu.Unlock()
		p.s.cfg.metrics.blockWorkers(p.checkedOut, idle)
		ch <- wrapped
		return
	}
	p.checkedOut++
	idle := len(p.idle)
	p.mu.Unlock()
	p.s.cfg.metrics.blockWorkers(p.checkedOut, idle)
	go p.runWorker(wrapped)
}

// isWorkerThread reports whether the calling goroutine is one of this
// pool's blocking-offload workers, so Block can avoid recursively
// offloading from within already-offloaded work.
func (p *blockPool) isWorkerThread() bool {
	_, ok := p.workers.Load(getGoroutineID())
	return ok
}

// runWorker drives one blocking-offload goroutine: run the work it was
// handed, then either park as an idle, reusable worker (if under
// reuseCap) or exit.
func (p *blockPool) runWorker(first func()) {
	id := getGoroutineID()
	p.workers.Store(id, struct{}{})
	defer p.workers.Delete(id)

	work := first
	for {
		work()

		p.mu.Lock()
		p.checkedOut--
		if p.reuseCap <= 0 || len(p.idle) >= p.reuseCap {
			idle := len(p.idle)
			p.mu.Unlock()
			p.s.cfg.metrics.blockWorkers(p.checkedOut, idle)
			return
		}
		ch := make(chan func(), 1)
		p.idle = append(p.idle, ch)
		idle := len(p.idle)
		p.mu.Unlock()
		p.s.cfg.metrics.blockWorkers(p.checkedOut, idle)

		work = <-ch
	}
}
