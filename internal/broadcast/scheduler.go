package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrJobNotFound = errors.New("broadcast: job not found")
	ErrJobExists   = errors.New("broadcast: job already exists")
	ErrBadInterval = errors.New("broadcast: interval must be positive")
)

// Scheduler runs named jobs on fixed intervals. Intervals can be changed
// while running; the next tick is measured from the change.
type Scheduler struct {
	Logger *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

type job struct {
	id       string
	every    time.Duration
	fn       func(context.Context)
	interval chan time.Duration
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{Logger: logger, jobs: make(map[string]*job)}
}

// Add registers fn under id. Jobs added after Start begin immediately.
func (s *Scheduler) Add(id string, every time.Duration, fn func(context.Context)) error {
	if every <= 0 {
		return ErrBadInterval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs == nil {
		s.jobs = make(map[string]*job)
	}
	if _, ok := s.jobs[id]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, id)
	}
	j := &job{id: id, every: every, fn: fn, interval: make(chan time.Duration, 1)}
	s.jobs[id] = j
	if s.running {
		s.launch(j)
	}
	return nil
}

// Reschedule changes the interval of a registered job.
func (s *Scheduler) Reschedule(id string, every time.Duration) error {
	if every <= 0 {
		return ErrBadInterval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	j.every = every
	// keep only the latest pending change
	select {
	case <-j.interval:
	default:
	}
	j.interval <- every
	s.logger().Info("job rescheduled", "job", id, "every", every)
	return nil
}

func (s *Scheduler) Interval(id string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return 0, false
	}
	return j.every, true
}

// Start launches every registered job. It is a no-op when already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	for _, j := range s.jobs {
		s.launch(j)
	}
	s.logger().Info("scheduler started", "jobs", len(s.jobs))
}

// Stop cancels all jobs and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger().Info("scheduler stopped")
}

// launch must be called with s.mu held.
func (s *Scheduler) launch(j *job) {
	ctx, every := s.ctx, j.every
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-j.interval:
				t.Reset(d)
			case <-t.C:
				s.run(ctx, j)
			}
		}
	}()
}

func (s *Scheduler) run(ctx context.Context, j *job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger().Error("job panicked", "job", j.id, "panic", r)
		}
	}()
	j.fn(ctx)
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
