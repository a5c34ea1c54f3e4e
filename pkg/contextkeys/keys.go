// Package contextkeys provides centralized context key definitions
//
// All context keys used across the client must be defined here so that
// producers and consumers agree on a single typed key.
//
// USAGE PATTERN:
//
//	import "github.com/residenciauni/residencia/pkg/contextkeys"
//	ctx = contextkeys.WithRequestID(ctx, id)
//	id := contextkeys.GetRequestID(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains request ID string (UUID)
	// Set by: callers that correlate requests; the client generates one when absent
	// Used by: X-Request-ID header
	// Type: string
	RequestIDKey Key = "request_id"

	// ModuleKey contains the name of the module issuing a request
	// Set by: client.Resource and the auth, stats and search calls
	// Used by: client metrics labels
	// Type: string
	ModuleKey Key = "module"
)

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithModule adds the module name to the context
func WithModule(ctx context.Context, module string) context.Context {
	return context.WithValue(ctx, ModuleKey, module)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetModule retrieves the module name from context
func GetModule(ctx context.Context) string {
	if module, ok := ctx.Value(ModuleKey).(string); ok {
		return module
	}
	return ""
}
