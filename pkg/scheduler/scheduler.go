// Package scheduler drives discovery cycles on a day/night adaptive cadence.
// The timer is one-shot: the next interval is computed fresh after each
// cycle, so the schedule self-corrects across the day/night boundary instead
// of drifting on a fixed period.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Defaults mirror a polling watcher: frequent by day, sparse at night.
const (
	DefaultDayInterval   = 15 * time.Minute
	DefaultNightInterval = 120 * time.Minute
	DefaultNightStart    = 1
	DefaultNightEnd      = 8
)

// Runner is one discovery sweep plus resource teardown. The checker
// satisfies this.
type Runner interface {
	CheckActiveRegions(ctx context.Context) error
	Release()
}

// Logger abstracts logging, matching the shape of logrus.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Config selects the two intervals and the night window [NightStart,
// NightEnd) in local hours. The window may wrap midnight.
type Config struct {
	DayInterval   time.Duration
	NightInterval time.Duration
	NightStart    int
	NightEnd      int
	RunOnStart    bool
}

// Scheduler re-arms a one-shot trigger after each cycle and never runs two
// cycles at once.
type Scheduler struct {
	cfg Config
	run Runner
	log Logger
	now func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New builds a scheduler; zero config fields get defaults.
func New(cfg Config, run Runner, log Logger) *Scheduler {
	if cfg.DayInterval <= 0 {
		cfg.DayInterval = DefaultDayInterval
	}
	if cfg.NightInterval <= 0 {
		cfg.NightInterval = DefaultNightInterval
	}
	if cfg.NightStart == 0 && cfg.NightEnd == 0 {
		cfg.NightStart = DefaultNightStart
		cfg.NightEnd = DefaultNightEnd
	}
	return &Scheduler{
		cfg:  cfg,
		run:  run,
		log:  log,
		now:  time.Now,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Interval returns the cycle interval in effect at t.
func (s *Scheduler) Interval(t time.Time) time.Duration {
	if inWindow(t.Hour(), s.cfg.NightStart, s.cfg.NightEnd) {
		return s.cfg.NightInterval
	}
	return s.cfg.DayInterval
}

func inWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	// Window wraps midnight, e.g. [22, 6).
	return hour >= start || hour < end
}

// Start runs the scheduling loop until Stop is called or ctx is canceled.
// It blocks; run it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	if s.cfg.RunOnStart {
		s.cycle(ctx)
	}

	for {
		interval := s.Interval(s.now())
		s.log.Debugf("next cycle in %v", interval)
		timer := time.NewTimer(interval)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		s.cycle(ctx)
	}
}

// Stop halts the loop and waits for any in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// cycle runs one sweep. The fetchers' browser resources are released
// afterwards regardless of outcome, so idle periods hold no Chrome.
func (s *Scheduler) cycle(ctx context.Context) {
	start := s.now()
	if err := s.run.CheckActiveRegions(ctx); err != nil {
		s.log.Errorf("cycle failed: %v", err)
	}
	s.run.Release()
	s.log.Debugf("cycle took %v", s.now().Sub(start))
}
