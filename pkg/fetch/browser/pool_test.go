package browser

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestOptimalWorkers(t *testing.T) {
	cases := []struct {
		batch, max, want int
	}{
		{0, 4, 0},
		{1, 4, 1},
		{2, 4, 1},
		{3, 4, 2},
		{5, 4, 2},
		{6, 4, 3},
		{10, 4, 3},
		{11, 4, 4},
		{100, 4, 4},
		{100, 8, 8},
		{11, 0, DefaultMaxWorkers},
	}
	for _, c := range cases {
		if got := OptimalWorkers(c.batch, c.max); got != c.want {
			t.Fatalf("OptimalWorkers(%d, %d) = %d, want %d", c.batch, c.max, got, c.want)
		}
	}
}

func TestPoolResizeOnlyWhenDifferent(t *testing.T) {
	p := NewPool(4)

	if got := p.Resize(20); got != 4 {
		t.Fatalf("want 4 workers for batch 20, got %d", got)
	}
	slots := p.slots

	// Same optimal size: the slots must survive.
	if got := p.Resize(15); got != 4 {
		t.Fatalf("want 4 workers for batch 15, got %d", got)
	}
	if p.slots != slots {
		t.Fatal("resize to the same width must not rebuild the pool")
	}

	// Different optimal size: rebuilt.
	if got := p.Resize(2); got != 1 {
		t.Fatalf("want 1 worker for batch 2, got %d", got)
	}
	if p.slots == slots {
		t.Fatal("resize to a different width must rebuild the pool")
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(4)
	p.launchDelay = 0
	p.Resize(3) // 2 workers

	var active, peak int32
	var mu sync.Mutex
	for i := 0; i < 10; i++ {
		p.Submit(func() {
			n := atomic.AddInt32(&active, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			atomic.AddInt32(&active, -1)
		})
	}
	p.Wait()

	if peak > 2 {
		t.Fatalf("pool of 2 ran %d jobs concurrently", peak)
	}
}

func TestPoolRateLimitIsPerWorker(t *testing.T) {
	p := NewPool(4)
	p.launchDelay = 200 * time.Millisecond
	p.Resize(20) // 4 workers

	// Each slot's first launch owes no delay, so one job per worker must
	// all start within a fraction of one interval. A global limiter would
	// spread them a full interval apart.
	var mu sync.Mutex
	var starts []time.Time
	for i := 0; i < 4; i++ {
		p.Submit(func() {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
		})
	}
	p.Wait()

	if len(starts) != 4 {
		t.Fatalf("got %d launches, want 4", len(starts))
	}
	earliest, latest := starts[0], starts[0]
	for _, s := range starts[1:] {
		if s.Before(earliest) {
			earliest = s
		}
		if s.After(latest) {
			latest = s
		}
	}
	if spread := latest.Sub(earliest); spread >= p.launchDelay {
		t.Fatalf("4 first launches on 4 workers spread over %v, want under %v", spread, p.launchDelay)
	}
}

func TestPoolDelaysConsecutiveLaunchesOnOneWorker(t *testing.T) {
	p := NewPool(4)
	p.launchDelay = 100 * time.Millisecond
	p.Resize(1) // 1 worker

	var starts []time.Time
	for i := 0; i < 2; i++ {
		p.Submit(func() {
			starts = append(starts, time.Now())
		})
	}
	p.Wait()

	if len(starts) != 2 {
		t.Fatalf("got %d launches, want 2", len(starts))
	}
	// Small slack: the limiter timestamps just before the job body runs.
	minGap := p.launchDelay - 20*time.Millisecond
	if gap := starts[1].Sub(starts[0]); gap < minGap {
		t.Fatalf("consecutive launches on one worker %v apart, want at least %v", gap, p.launchDelay)
	}
}
