// Package context carries the correlation ID that ties a burst request
// to everything it produces: worker log lines, audit rows and outbound
// platform calls.
package context

import "context"

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

// CorrelationIDKey is the context key for correlation IDs.
const CorrelationIDKey contextKey = "correlation_id"

// WithCorrelationID binds a correlation ID to the context. The burst
// middleware sets it once per request; every worker processing that
// burst inherits it.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// GetCorrelationID returns the correlation ID bound to the context, or
// an empty string when none was set.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}
