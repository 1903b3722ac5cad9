package utils

import (
	"context"
)

// Key type for context values
type contextKey string

const (
	usernameKey contextKey = "username"
	roleKey     contextKey = "role"
)

// GetUsernameFromContext returns the verified username, or "" when the
// request was not authenticated.
func GetUsernameFromContext(ctx context.Context) string {
	username, _ := ctx.Value(usernameKey).(string)
	return username
}

// GetRoleFromContext returns the verified role, or "".
func GetRoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

// SetIdentityToContext stores the verified username and role.
func SetIdentityToContext(ctx context.Context, username, role string) context.Context {
	ctx = context.WithValue(ctx, usernameKey, username)
	return context.WithValue(ctx, roleKey, role)
}
