// Package contextkeys provides centralized context key definitions
//
// All context keys used across the gateway must be defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.Context
	// Set by: middleware.Authenticator (pkg/middleware/auth.go)
	// Required by: access guards, user-keyed rate limit policies, handlers
	AuthKey Key = "auth_context"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestID middleware
	// Used by: logging, rejection responses
	RequestIDKey Key = "request_id"
)

// WithAuth adds the authorization context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
