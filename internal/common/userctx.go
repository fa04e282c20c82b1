package common

import (
	"context"
)

// UserContext identifies the caller of a request. It is populated by the
// auth middleware from a verified bearer token.
type UserContext struct {
	UserID    string
	RequestID string
}

type contextKey int

const userContextKey contextKey = iota

// DefaultUserID scopes requests when auth is disabled (single-tenant mode).
const DefaultUserID = "default"

// WithUserContext stores a UserContext in the request context.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, uc)
}

// UserContextFromContext retrieves the UserContext from context, or nil if absent.
func UserContextFromContext(ctx context.Context) *UserContext {
	uc, _ := ctx.Value(userContextKey).(*UserContext)
	return uc
}

// ResolveUserID returns the UserID from context, or DefaultUserID when absent.
func ResolveUserID(ctx context.Context) string {
	if uc := UserContextFromContext(ctx); uc != nil && uc.UserID != "" {
		return uc.UserID
	}
	return DefaultUserID
}

// ResolveRequestID returns the request id attached by the middleware, or "".
func ResolveRequestID(ctx context.Context) string {
	if uc := UserContextFromContext(ctx); uc != nil {
		return uc.RequestID
	}
	return ""
}
