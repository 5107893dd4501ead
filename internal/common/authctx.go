// Package common holds the error vocabulary, response helpers, and small
// HTTP utilities shared by every handler package.
package common

import "context"

type contextKey string

const authenticatedUserKey contextKey = "auth/user-id"

// WithUserID attaches the authenticated user identifier to the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, authenticatedUserKey, id)
}

// UserID returns the authenticated user identifier, if any.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(authenticatedUserKey).(string)
	return id, ok
}
