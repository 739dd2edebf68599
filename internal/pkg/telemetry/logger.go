package telemetry

import (
	"context"
	"log/slog"
	"os"

	"github.com/jcmexdev/vending-sagas/internal/pkg/constants"
)

// ContextHandler is a custom slog.Handler that extracts the request ID and
// idempotency key from the context and adds them as attributes to every
// log record.
type ContextHandler struct {
	slog.Handler
}

// Handle adds request metadata attributes before calling the underlying handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if reqID, ok := ctx.Value(constants.ContextKeyRequestID).(string); ok && reqID != "" {
		r.AddAttrs(slog.String("request_id", reqID))
	}
	if key, ok := ctx.Value(constants.ContextKeyIdempotencyKey).(string); ok && key != "" {
		r.AddAttrs(slog.String("idempotency_key", key))
	}
	return h.Handler.Handle(ctx, r)
}

// NewContextHandler returns a new slog.Handler that decorates logs with request metadata.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

// InitLogger initialises the global slog logger with a JSON handler decorated
// with request metadata. The service name is stamped on every record so the
// three services can share one log stream.
func InitLogger(serviceName string) {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	logger := slog.New(NewContextHandler(handler)).With("service", serviceName)
	slog.SetDefault(logger)
}
