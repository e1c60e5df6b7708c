package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"postpilot/apps/backend/internal/clock"
)

// EnqueueRequest is what producers (content flows, billing webhook, handlers
// chaining follow-up work) supply; everything else is defaulted here.
type EnqueueRequest struct {
	Type          Type            `json:"job_type"`
	Data          json.RawMessage `json:"job_data"`
	ContentItemID string          `json:"content_item_id"`
	ScheduledFor  *time.Time      `json:"scheduled_for"`
	MaxAttempts   int             `json:"max_attempts"`
}

type Service struct {
	repo               Repository
	clk                clock.Clock
	defaultMaxAttempts int
	logger             *slog.Logger
}

func NewService(repo Repository, clk clock.Clock, defaultMaxAttempts int, logger *slog.Logger) *Service {
	return &Service{
		repo:               repo,
		clk:                clk,
		defaultMaxAttempts: defaultMaxAttempts,
		logger:             logger,
	}
}

func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*Job, error) {
	if !ValidType(req.Type) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, req.Type)
	}

	scheduledFor := s.clk.Now()
	if req.ScheduledFor != nil {
		scheduledFor = *req.ScheduledFor
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.defaultMaxAttempts
	}
	data := req.Data
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}

	j := &Job{
		ID:            uuid.New().String(),
		Type:          req.Type,
		Status:        StatusPending,
		ScheduledFor:  scheduledFor,
		Attempts:      0,
		MaxAttempts:   maxAttempts,
		Data:          data,
		ContentItemID: req.ContentItemID,
	}

	if err := s.repo.Save(ctx, j); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "job enqueued", "job_id", j.ID, "job_type", j.Type, "scheduled_for", j.ScheduledFor)
	return j, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

func (s *Service) CountByStatus(ctx context.Context) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx)
}

// Retry enqueues a fresh job copying a terminal job's type and payload.
// Terminal records themselves are never resurrected.
func (s *Service) Retry(ctx context.Context, id string) (*Job, error) {
	old, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !old.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotRetryable, old.ID, old.Status)
	}

	return s.Enqueue(ctx, EnqueueRequest{
		Type:          old.Type,
		Data:          old.Data,
		ContentItemID: old.ContentItemID,
		MaxAttempts:   old.MaxAttempts,
	})
}
