// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// UserContext contains the authenticated operator identity.
// Absence is valid: anonymous attribution is the empty string / zero id.
type UserContext struct {
	UserID   int64
	Username string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns the operator id from context or 0.
func GetUserID(ctx context.Context) int64 {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return 0
}

// GetUsername returns the operator name from context or empty string.
func GetUsername(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.Username
	}
	return ""
}
