// Package scheduler runs the scan cycle on a fixed interval or a cron
// schedule until stopped.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"taskradar/internal/metrics"
)

const (
	DefaultInterval = 30 * time.Minute
	pollInterval    = time.Second
)

// Cycle is one unit of scheduled work.
type Cycle func(ctx context.Context) error

type Scheduler struct {
	cycle    Cycle
	schedule cron.Schedule
	interval time.Duration
	spec     string
	poll     time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running bool
	gen     uint64

	loops atomic.Int32
}

type Option func(*Scheduler)

// WithSchedule replaces the computed schedule. Used by tests.
func WithSchedule(s cron.Schedule) Option {
	return func(sc *Scheduler) { sc.schedule = s }
}

func WithPollInterval(d time.Duration) Option {
	return func(sc *Scheduler) {
		if d > 0 {
			sc.poll = d
		}
	}
}

// New builds a scheduler firing every interval, or on cronSpec (standard
// five-field expression) when it is set.
func New(cycle Cycle, interval time.Duration, cronSpec string, opts ...Option) (*Scheduler, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		cycle:    cycle,
		interval: interval,
		spec:     strings.TrimSpace(cronSpec),
		poll:     pollInterval,
		now:      time.Now,
	}
	if s.spec != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		sched, err := parser.Parse(s.spec)
		if err != nil {
			return nil, fmt.Errorf("invalid scan_schedule %q: %w", s.spec, err)
		}
		s.schedule = sched
	} else {
		s.schedule = cron.Every(interval)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start launches the loop. It returns false when the scheduler is already
// running. In interval mode the first cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.gen++
	gen := s.gen
	go s.loop(ctx, gen)
	if s.spec != "" {
		log.Printf("scheduler started cron=%q", s.spec)
	} else {
		log.Printf("scheduler started interval=%s", s.interval)
	}
	return true
}

// Stop asks the loop to exit. The loop notices within one poll interval;
// a cycle already in progress finishes first.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		log.Printf("scheduler stopping")
	}
	s.running = false
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Interval returns the fixed cycle interval, or zero in cron mode.
func (s *Scheduler) Interval() time.Duration {
	if s.spec != "" {
		return 0
	}
	return s.interval
}

// Schedule describes when cycles fire, for status output.
func (s *Scheduler) Schedule() string {
	if s.spec != "" {
		return s.spec
	}
	return "every " + s.interval.String()
}

func (s *Scheduler) alive(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.gen == gen
}

func (s *Scheduler) loop(ctx context.Context, gen uint64) {
	s.loops.Add(1)
	defer s.loops.Add(-1)
	defer log.Printf("scheduler loop exited gen=%d", gen)

	if s.spec == "" {
		s.runCycle(ctx)
	}
	for {
		next := s.schedule.Next(s.now())
		if !s.waitUntil(ctx, gen, next) {
			return
		}
		s.runCycle(ctx)
	}
}

// waitUntil sleeps in poll-sized steps until next, returning false as soon
// as the loop is stopped, superseded, or ctx is done.
func (s *Scheduler) waitUntil(ctx context.Context, gen uint64, next time.Time) bool {
	for {
		if !s.alive(gen) {
			return false
		}
		remaining := next.Sub(s.now())
		if remaining <= 0 {
			return true
		}
		step := s.poll
		if remaining < step {
			step = remaining
		}
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.gen == gen {
				s.running = false
			}
			s.mu.Unlock()
			return false
		case <-time.After(step):
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.CycleFailures.Inc()
			log.Printf("scheduler cycle panic: %v", r)
		}
	}()
	if err := s.cycle(ctx); err != nil {
		metrics.CycleFailures.Inc()
		log.Printf("scheduler cycle error: %v", err)
	}
}
