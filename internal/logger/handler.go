package logger

import (
	"context"
	"log/slog"

	"postpilot/apps/backend/internal/middleware"
)

// ContextHandler decorates records with the correlation ID carried in the
// context, so poller cycles and request handlers log traceably.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(middleware.CorrelationKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	return h.Handler.Handle(ctx, r)
}
