// Package scheduler runs one job repeatedly on a schedule.
//
// Runs never overlap: the next fire time is computed from the moment the
// previous run finished.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	logx "releasebot/pkg/logx"
)

// Job is one scheduled run. Returned errors are recorded and logged; they do
// not stop the scheduler.
type Job func(ctx context.Context) error

type Config struct {
	Spec         string
	InitialDelay time.Duration
}

type Scheduler struct {
	spec  Spec
	delay time.Duration
	job   Job
	log   logx.Logger
	now   func() time.Time

	mu      sync.Mutex
	runs    uint64
	fails   uint64
	running bool
	lastRun time.Time
	lastDur time.Duration
	lastErr error
	next    time.Time
}

func New(cfg Config, job Job, log logx.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("scheduler: nil job")
	}
	spec, err := Parse(cfg.Spec)
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	return &Scheduler{spec: spec, delay: cfg.InitialDelay, job: job, log: log, now: time.Now}, nil
}

func (s *Scheduler) Spec() Spec { return s.spec }

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.setNext(s.now().Add(s.delay))
	s.log.Info("scheduler started",
		logx.String("schedule", s.spec.String()),
		logx.Duration("initial_delay", s.delay),
	)

	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}

		s.runOnce(ctx)
		if ctx.Err() != nil {
			continue
		}

		now := s.now()
		next := s.spec.Next(now)
		s.setNext(next)
		wait := next.Sub(now)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	start := s.now()
	err := s.safeRun(ctx)
	dur := s.now().Sub(start)

	s.mu.Lock()
	s.running = false
	s.runs++
	s.lastRun = start
	s.lastDur = dur
	s.lastErr = err
	if err != nil {
		s.fails++
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("scheduled job failed", logx.Duration("took", dur), logx.Err(err))
	} else {
		s.log.Debug("scheduled job done", logx.Duration("took", dur))
	}
}

func (s *Scheduler) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.job(ctx)
}

func (s *Scheduler) setNext(t time.Time) {
	s.mu.Lock()
	s.next = t
	s.mu.Unlock()
}

// Snapshot is a point-in-time view of the scheduler.
type Snapshot struct {
	Schedule string
	Runs     uint64
	Failures uint64
	Running  bool
	LastRun  time.Time
	LastTook time.Duration
	LastErr  error
	Next     time.Time
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Schedule: s.spec.String(),
		Runs:     s.runs,
		Failures: s.fails,
		Running:  s.running,
		LastRun:  s.lastRun,
		LastTook: s.lastDur,
		LastErr:  s.lastErr,
		Next:     s.next,
	}
}
