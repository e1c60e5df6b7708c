package billing

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"postpilot/apps/backend/features/job"
	"postpilot/apps/backend/internal/middleware"
)

// Enqueuer is the slice of job.Service the webhook needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, req job.EnqueueRequest) (*job.Job, error)
}

// Handler turns billing provider webhooks into reconcile jobs. The provider
// retries webhooks itself, so the only job of this endpoint is durable
// hand-off: once the job row exists we return 200.
type Handler struct {
	jobs Enqueuer
}

func NewHandler(jobs Enqueuer) *Handler {
	return &Handler{jobs: jobs}
}

type event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// relevantEvents are the provider event types that require reconciliation of
// tenant subscription state.
var relevantEvents = map[string]bool{
	"checkout.session.completed":    true,
	"invoice.paid":                  true,
	"invoice.payment_failed":        true,
	"customer.subscription.updated": true,
	"customer.subscription.deleted": true,
}

func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var ev event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "invalid event body", http.StatusBadRequest)
		return
	}
	if ev.Type == "" {
		h.writeError(ctx, w, "BAD_REQUEST", "event type required", http.StatusBadRequest)
		return
	}

	if !relevantEvents[ev.Type] {
		slog.InfoContext(ctx, "ignoring billing event", "event_type", ev.Type)
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	j, err := h.jobs.Enqueue(ctx, job.EnqueueRequest{
		Type: job.TypeReconcileBilling,
		Data: body,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to enqueue reconcile job", "event_type", ev.Type, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	slog.InfoContext(ctx, "billing event accepted", "event_type", ev.Type, "job_id", j.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"job_id": j.ID}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
