// Package scheduler owns the cron scheduler that triggers the hourly
// extraction pass and the optional capacity recount.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a scheduled unit of work. The context is cancelled on Stop.
type Job func(ctx context.Context) error

// Scheduler runs registered jobs on cron schedules in a fixed time zone.
// A job whose previous run is still executing is skipped, so each job has
// at most one running instance.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
	started bool
}

// New creates a stopped Scheduler evaluating schedules in loc.
func New(loc *time.Location, log *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "scheduler")
	cl := cronLogger{logger: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Register adds a named job on a standard five-field cron spec.
func (s *Scheduler) Register(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}

	log := s.logger.With("job", name)
	id, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		log.Info("job started")
		if err := job(s.ctx); err != nil {
			log.Error("job failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
			return
		}
		log.Info("job finished", "duration_ms", time.Since(start).Milliseconds())
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %q: %w", spec, name, err)
	}
	s.entries[name] = id
	return nil
}

// Next returns the next activation time of the named job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(id).Next
	return next, !next.IsZero()
}

// Jobs returns the registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// Start begins running jobs in the background. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.entries))
}

// Stop cancels running jobs and waits for them to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()

	s.cancel()
	if !started {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
