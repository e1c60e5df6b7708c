package job

import (
	"encoding/json"
	"errors"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Type string

const (
	TypePublishArticle    Type = "publish_article"
	TypePublishGMB        Type = "publish_gmb"
	TypeSendEmail         Type = "send_email"
	TypeGenerateContent   Type = "generate_content"
	TypeProcessEmbeddings Type = "process_embeddings"
	TypeReconcileBilling  Type = "reconcile_billing"
)

// Types lists every known job type, for validation on enqueue.
var Types = []Type{
	TypePublishArticle,
	TypePublishGMB,
	TypeSendEmail,
	TypeGenerateContent,
	TypeProcessEmbeddings,
	TypeReconcileBilling,
}

var (
	// ErrConflict is returned when a state transition's precondition does not
	// hold, e.g. claiming a job another poller already claimed. Not a fault:
	// callers skip the job and move on.
	ErrConflict = errors.New("job state conflict")

	// ErrNotFound is returned when a job id does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrUnknownType is returned for a job_type outside the closed enumeration.
	ErrUnknownType = errors.New("unknown job type")

	// ErrNotRetryable is returned when retrying a job that is not terminal.
	ErrNotRetryable = errors.New("job is not in a terminal state")
)

// Job is one durable unit of deferred work. Terminal jobs are never revisited;
// running the same work again means enqueueing a new record.
type Job struct {
	ID            string          `json:"id"`
	Type          Type            `json:"job_type"`
	Status        Status          `json:"status"`
	ScheduledFor  time.Time       `json:"scheduled_for"`
	Attempts      int             `json:"attempts"`
	MaxAttempts   int             `json:"max_attempts"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Data          json.RawMessage `json:"job_data"`
	ContentItemID string          `json:"content_item_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// ValidType reports whether t belongs to the closed enumeration.
func ValidType(t Type) bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}
