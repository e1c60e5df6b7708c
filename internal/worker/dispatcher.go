package worker

import (
	"context"
	"fmt"

	"postpilot/apps/backend/features/job"
)

// HandlerFunc performs one job's side effect. A nil return is success; a
// non-nil return is a business failure the poller retries with backoff.
// Panics are reserved for genuinely unexpected faults and are recovered by
// the poller.
type HandlerFunc func(ctx context.Context, j *job.Job) error

// Dispatcher maps a job's declared type to its handler. Pure mapping, no side
// effects.
type Dispatcher struct {
	handlers *Handlers
}

func NewDispatcher(h *Handlers) *Dispatcher {
	return &Dispatcher{handlers: h}
}

// Resolve fails with job.ErrUnknownType for types outside the enumeration;
// the poller treats that as permanent, since retrying cannot fix it.
func (d *Dispatcher) Resolve(t job.Type) (HandlerFunc, error) {
	switch t {
	case job.TypePublishArticle:
		return d.handlers.PublishArticle, nil
	case job.TypePublishGMB:
		return d.handlers.PublishGMB, nil
	case job.TypeSendEmail:
		return d.handlers.SendEmail, nil
	case job.TypeGenerateContent:
		return d.handlers.GenerateContent, nil
	case job.TypeProcessEmbeddings:
		return d.handlers.ProcessEmbeddings, nil
	case job.TypeReconcileBilling:
		return d.handlers.ReconcileBilling, nil
	default:
		return nil, fmt.Errorf("%w: %q", job.ErrUnknownType, t)
	}
}
