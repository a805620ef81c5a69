package browser

import (
	"sync"
	"time"
)

// DefaultMaxWorkers caps pool size when the caller does not.
const DefaultMaxWorkers = 4

// workerLaunchDelay separates consecutive page loads on one worker slot.
// The delay is per worker, so pool throughput scales with width.
const workerLaunchDelay = 500 * time.Millisecond

// OptimalWorkers maps a batch size to a worker count. Small batches do not
// justify the tab overhead of a full pool.
func OptimalWorkers(batch, max int) int {
	if max <= 0 {
		max = DefaultMaxWorkers
	}
	switch {
	case batch <= 0:
		return 0
	case batch <= 2:
		return 1
	case batch <= 5:
		return 2
	case batch <= 10:
		return 3
	default:
		return max
	}
}

// Pool bounds concurrent tab usage with a set of worker slots. Each slot
// rate-limits its own launches; a job takes the first idle slot. Resize
// rebuilds the slots only when the optimal size actually changed, so steady
// workloads keep their pool.
type Pool struct {
	maxWorkers  int
	launchDelay time.Duration

	mu    sync.Mutex
	size  int
	slots chan int
	last  []time.Time
	wg    sync.WaitGroup
}

// NewPool creates a pool sized for batches up to maxWorkers wide.
func NewPool(maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	p := &Pool{
		maxWorkers:  maxWorkers,
		launchDelay: workerLaunchDelay,
	}
	p.rebuild(maxWorkers)
	return p
}

// Resize adjusts the pool to the optimal width for a batch. Must not be
// called while jobs are in flight.
func (p *Pool) Resize(batch int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	optimal := OptimalWorkers(batch, p.maxWorkers)
	if optimal > 0 && optimal != p.size {
		p.rebuild(optimal)
	}
	return p.size
}

func (p *Pool) rebuild(size int) {
	p.size = size
	p.slots = make(chan int, size)
	p.last = make([]time.Time, size)
	for i := 0; i < size; i++ {
		p.slots <- i
	}
}

// Submit runs job on the pool, blocking until a worker slot frees up.
func (p *Pool) Submit(job func()) {
	p.mu.Lock()
	slots := p.slots
	last := p.last
	p.mu.Unlock()

	p.wg.Add(1)
	slot := <-slots

	go func() {
		defer p.wg.Done()
		defer func() { slots <- slot }()

		// Per-worker rate limit: wait out this slot's interval since its
		// previous launch. Other slots launch independently.
		if elapsed := time.Since(last[slot]); elapsed < p.launchDelay {
			time.Sleep(p.launchDelay - elapsed)
		}
		last[slot] = time.Now()

		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (p *Pool) Wait() {
	p.wg.Wait()
}
