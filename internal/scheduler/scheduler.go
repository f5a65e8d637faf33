// Package scheduler fires the daily materialization run at a fixed
// wall-clock time in the evaluation timezone.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/chantastic/oomph/internal/calendar"
	"github.com/chantastic/oomph/internal/chore"
	"github.com/chantastic/oomph/internal/clock"
	"github.com/chantastic/oomph/internal/model"
)

type Materializer interface {
	MaterializeDay(ctx context.Context, day calendar.Date) (*chore.Report, error)
	Orphans(startMs, endMs int64) ([]*chore.MissingReferenceError, error)
	Location() *time.Location
}

// RunHistory tells the scheduler whether a day already ran, so restarts do
// not repeat it.
type RunHistory interface {
	LastSuccessful(day, scope string) (*model.Run, error)
}

type Config struct {
	Hour, Minute int
	// Retries bounds the retries after a failed attempt; zero means a
	// single attempt.
	Retries   uint64
	RetryBase time.Duration
	// Interval is how often the scheduler checks the time. Defaults to a
	// minute.
	Interval time.Duration
}

// Scheduler runs MaterializeDay once per calendar day, at or after the
// configured time. A run that missed its slot (process down at the time)
// happens on the first check after startup.
type Scheduler struct {
	mu      sync.RWMutex
	svc     Materializer
	history RunHistory
	clock   clock.Clock
	cfg     Config
	logger  *slog.Logger

	lastDay calendar.Date
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a scheduler. history may be nil.
func New(svc Materializer, history RunHistory, clk clock.Clock, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		svc:     svc,
		history: history,
		clock:   clk,
		cfg:     cfg,
		logger:  logger.With("component", "scheduler"),
	}
}

// Start checks immediately, then on every interval until ctx is done or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	ticker := s.clock.NewTicker(s.cfg.Interval)
	s.mu.Unlock()

	s.logger.Info("scheduler started",
		"at", fmt.Sprintf("%02d:%02d", s.cfg.Hour, s.cfg.Minute),
		"timezone", s.svc.Location().String(),
	)

	go func() {
		defer close(s.done)
		defer ticker.Stop()

		s.check(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.check(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-progress run to return.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) check(ctx context.Context) {
	if _, err := s.RunDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduled materialization failed", "error", err)
	}
}

// RunDue materializes today if the scheduled time has passed and today has
// not run yet. It returns a nil report when there was nothing to do.
func (s *Scheduler) RunDue(ctx context.Context) (*chore.Report, error) {
	loc := s.svc.Location()
	now := s.clock.Now().In(loc)
	today := calendar.In(now, loc)

	s.mu.RLock()
	done := s.lastDay == today
	s.mu.RUnlock()
	if done {
		return nil, nil
	}

	slot := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.Hour, s.cfg.Minute, 0, 0, loc)
	if now.Before(slot) {
		return nil, nil
	}

	if s.history != nil {
		last, err := s.history.LastSuccessful(today.String(), chore.ScopeAll)
		if err != nil {
			return nil, fmt.Errorf("check run history: %w", err)
		}
		if last != nil {
			s.logger.Debug("day already materialized", "day", today.String(), "run_id", last.RunID)
			s.markDone(today)
			return nil, nil
		}
	}

	report, err := s.runWithRetry(ctx, today)
	if err != nil {
		return report, err
	}
	s.markDone(today)

	if failed := report.Err(); failed != nil {
		s.logger.Error("materialization finished with failures",
			"day", today.String(), "run_id", report.RunID, "error", failed)
	}
	s.auditOrphans(today, loc)
	return report, nil
}

// runWithRetry retries store failures and runs with per-assignee failures.
// Retrying is safe because materialization is idempotent. When retries run
// out on per-assignee failures, the last report is returned without error.
func (s *Scheduler) runWithRetry(ctx context.Context, day calendar.Date) (*chore.Report, error) {
	backoff := retry.WithMaxRetries(s.cfg.Retries, retry.NewExponential(s.cfg.RetryBase))

	var (
		report  *chore.Report
		attempt int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		r, err := s.svc.MaterializeDay(ctx, day)
		if err != nil {
			s.logger.Warn("materialization attempt failed", "day", day.String(), "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		report = r
		if failed := r.Err(); failed != nil && uint64(attempt) <= s.cfg.Retries {
			s.logger.Warn("materialization attempt had failures", "day", day.String(), "attempt", attempt, "failures", r.Failures())
			return retry.RetryableError(failed)
		}
		return nil
	})
	if report != nil && report.Err() != nil {
		return report, nil
	}
	return report, err
}

func (s *Scheduler) auditOrphans(day calendar.Date, loc *time.Location) {
	// Yesterday's completions are still settling when the run fires.
	start, _ := day.AddDays(-1).Bounds(loc)
	_, end := day.Bounds(loc)
	orphans, err := s.svc.Orphans(start, end)
	if err != nil {
		s.logger.Warn("orphan audit failed", "error", err)
		return
	}
	for _, o := range orphans {
		s.logger.Warn("completion references missing instance", "entity", o.Entity, "instance_id", o.ID)
	}
}

func (s *Scheduler) markDone(day calendar.Date) {
	s.mu.Lock()
	s.lastDay = day
	s.mu.Unlock()
}
