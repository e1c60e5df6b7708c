package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"postpilot/apps/backend/features/job"
	"postpilot/apps/backend/internal/clock"
	"postpilot/apps/backend/internal/middleware"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRetrying  Outcome = "retrying"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

type JobResult struct {
	ID      string  `json:"id"`
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
}

type CycleSummary struct {
	Processed int         `json:"processed_count"`
	Reclaimed int         `json:"reclaimed_count"`
	Results   []JobResult `json:"results"`
}

type PollerConfig struct {
	BatchSize         int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	JobTimeout        time.Duration
	StaleRunningAfter time.Duration
}

// Resolver maps a job type to its handler; Dispatcher is the production
// implementation.
type Resolver interface {
	Resolve(t job.Type) (HandlerFunc, error)
}

// Poller drives the job lifecycle: claim due jobs, dispatch, execute, record
// the outcome. Multiple poller processes may run against the same store; the
// conditional transitions in the repository are the only coordination.
type Poller struct {
	repo       job.Repository
	dispatcher Resolver
	clk        clock.Clock
	cfg        PollerConfig
}

func NewPoller(repo job.Repository, dispatcher Resolver, clk clock.Clock, cfg PollerConfig) *Poller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 5 * time.Minute
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 24 * time.Hour
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	return &Poller{repo: repo, dispatcher: dispatcher, clk: clk, cfg: cfg}
}

// Run executes one cycle per tick until the context is cancelled.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("poller started", "interval", interval, "batch_size", p.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			slog.Info("poller stopped")
			return
		case <-ticker.C:
			cctx := middleware.WithCorrelationID(ctx, uuid.New().String())
			if _, err := p.RunCycle(cctx); err != nil {
				slog.ErrorContext(cctx, "poll cycle aborted", "error", err)
			}
		}
	}
}

// RunCycle processes one bounded batch. Per-job failures never propagate;
// only store-level faults abort the cycle, leaving unprocessed jobs for the
// next one.
func (p *Poller) RunCycle(ctx context.Context) (*CycleSummary, error) {
	now := p.clk.Now()
	summary := &CycleSummary{}

	if p.cfg.StaleRunningAfter > 0 {
		reclaimed, err := p.repo.ReclaimStale(ctx, now, now.Add(-p.cfg.StaleRunningAfter))
		if err != nil {
			return nil, fmt.Errorf("reclaim stale jobs: %w", err)
		}
		if reclaimed > 0 {
			slog.WarnContext(ctx, "reclaimed stale running jobs", "count", reclaimed)
		}
		summary.Reclaimed = reclaimed
	}

	due, err := p.repo.FetchDue(ctx, now, p.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch due jobs: %w", err)
	}

	for i := range due {
		res, err := p.process(ctx, &due[i])
		if err != nil {
			return nil, err
		}
		summary.Results = append(summary.Results, res)
		if res.Outcome != OutcomeSkipped {
			summary.Processed++
		}
	}

	if len(due) > 0 {
		slog.InfoContext(ctx, "poll cycle finished", "due", len(due), "processed", summary.Processed)
	}
	return summary, nil
}

func (p *Poller) process(ctx context.Context, j *job.Job) (JobResult, error) {
	attempts, err := p.repo.MarkRunning(ctx, j.ID, p.clk.Now())
	if errors.Is(err, job.ErrConflict) {
		// Claimed by a concurrent cycle; normal, not an error.
		return JobResult{ID: j.ID, Outcome: OutcomeSkipped}, nil
	}
	if err != nil {
		// Anything but a lost race is the store misbehaving; abort the cycle
		// and let the next one retry from a clean fetch.
		return JobResult{}, fmt.Errorf("claim job %s: %w", j.ID, err)
	}

	handler, err := p.dispatcher.Resolve(j.Type)
	if err != nil {
		// Unknown type is a configuration error; retrying cannot fix it.
		slog.ErrorContext(ctx, "unknown job type", "job_id", j.ID, "job_type", j.Type)
		return p.failPermanently(ctx, j.ID, err.Error()), nil
	}

	execErr := p.execute(ctx, handler, j)
	now := p.clk.Now()

	if execErr == nil {
		if err := p.repo.MarkCompleted(ctx, j.ID, now); err != nil {
			slog.ErrorContext(ctx, "mark completed failed", "job_id", j.ID, "error", err)
			return JobResult{ID: j.ID, Outcome: OutcomeCompleted, Error: err.Error()}, nil
		}
		return JobResult{ID: j.ID, Outcome: OutcomeCompleted}, nil
	}

	if attempts >= j.MaxAttempts {
		slog.ErrorContext(ctx, "job failed permanently", "job_id", j.ID, "job_type", j.Type,
			"attempts", attempts, "error", execErr)
		return p.failPermanently(ctx, j.ID, execErr.Error()), nil
	}

	delay := p.backoff(attempts)
	next := now.Add(delay)
	slog.WarnContext(ctx, "job failed, retrying", "job_id", j.ID, "job_type", j.Type,
		"attempts", attempts, "next_attempt", next, "error", execErr)
	if err := p.repo.Reschedule(ctx, j.ID, now, next, execErr.Error()); err != nil {
		slog.ErrorContext(ctx, "reschedule failed", "job_id", j.ID, "error", err)
		return JobResult{ID: j.ID, Outcome: OutcomeRetrying, Error: err.Error()}, nil
	}
	return JobResult{ID: j.ID, Outcome: OutcomeRetrying, Error: execErr.Error()}, nil
}

// execute runs the handler under the per-job timeout, converting panics and
// deadline hits into ordinary failures so a job can never wedge in running.
func (p *Poller) execute(ctx context.Context, handler HandlerFunc, j *job.Job) (err error) {
	hctx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "handler panic", "job_id", j.ID, "job_type", j.Type, "panic", r)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	err = handler(hctx, j)
	if err != nil && errors.Is(hctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("timeout after %s: %w", p.cfg.JobTimeout, err)
	}
	return err
}

// backoff doubles the base delay per attempt, capped at RetryMaxDelay. The
// cap also guards the doubling against overflowing into a negative duration
// for jobs enqueued with a very large max_attempts.
func (p *Poller) backoff(attempts int) time.Duration {
	delay := p.cfg.RetryBaseDelay
	for i := 1; i < attempts; i++ {
		delay <<= 1
		if delay <= 0 || delay >= p.cfg.RetryMaxDelay {
			return p.cfg.RetryMaxDelay
		}
	}
	if delay > p.cfg.RetryMaxDelay {
		return p.cfg.RetryMaxDelay
	}
	return delay
}

func (p *Poller) failPermanently(ctx context.Context, id, reason string) JobResult {
	if err := p.repo.MarkFailed(ctx, id, p.clk.Now(), reason); err != nil {
		slog.ErrorContext(ctx, "mark failed errored", "job_id", id, "error", err)
		return JobResult{ID: id, Outcome: OutcomeFailed, Error: err.Error()}
	}
	return JobResult{ID: id, Outcome: OutcomeFailed, Error: reason}
}
