package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"postpilot/apps/backend/features/job"
	"postpilot/apps/backend/internal/middleware"
)

type JobCounter interface {
	CountByStatus(ctx context.Context) (map[job.Status]int, error)
}

// Handler exposes queue health for the dashboard's job-logs view. Permanently
// failed jobs surface here rather than as synchronous API errors.
type Handler struct {
	jobs JobCounter
}

func NewHandler(jobs JobCounter) *Handler {
	return &Handler{jobs: jobs}
}

type StatsResponse struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	counts, err := h.jobs.CountByStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Pending:   counts[job.StatusPending],
		Running:   counts[job.StatusRunning],
		Completed: counts[job.StatusCompleted],
		Failed:    counts[job.StatusFailed],
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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
