// Package requestctx carries request-scoped identity values through context.
package requestctx

import "context"

// principalContextKey is the context key for the authenticated principal.
type principalContextKey struct{}

// requestIDContextKey is the context key for the per-request identifier.
type requestIDContextKey struct{}

// WithPrincipal stores an authenticated principal identity in context.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the principal identity stored in context.
func PrincipalFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(principalContextKey{}).(string)
	return value
}

// WithRequestID stores a request identifier in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the request identifier stored in context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey{}).(string)
	return value
}
