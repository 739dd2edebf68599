package middlewares

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jcmexdev/vending-sagas/internal/pkg/constants"
)

// AttachRequestMetadata lifts the request ID (assigned by chi's RequestID
// middleware) and the client-supplied idempotency key into typed context
// values so handlers, gateways and the logger can read them without
// touching http.Request directly.
func AttachRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if reqID := middleware.GetReqID(ctx); reqID != "" {
			ctx = context.WithValue(ctx, constants.ContextKeyRequestID, reqID)
		}
		if key := r.Header.Get(constants.HeaderXIdempotencyKey); key != "" {
			ctx = context.WithValue(ctx, constants.ContextKeyIdempotencyKey, key)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdempotencyKeyFromContext returns the idempotency key attached by
// AttachRequestMetadata, or "" when the client did not send one.
func IdempotencyKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(constants.ContextKeyIdempotencyKey).(string)
	return key
}

// RequestIDFromContext returns the request ID attached by
// AttachRequestMetadata, or "" outside a request scope.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(constants.ContextKeyRequestID).(string)
	return id
}
