// Package auth authenticates HTTP callers of the MCP endpoint.
package auth

import "context"

// contextKey is a private type for context keys.
type contextKey int

const (
	tokenContextKey contextKey = iota
	userContextKey
)

// UserInfo identifies an authenticated caller.
type UserInfo struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name,omitempty"`
	AuthType string `json:"auth_type"`
}

// Anonymous is the caller on unauthenticated transports.
var Anonymous = &UserInfo{UserID: "anonymous", AuthType: "anonymous"}

// WithToken adds a raw credential to the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// GetToken retrieves the raw credential from the context.
func GetToken(ctx context.Context) string {
	if token, ok := ctx.Value(tokenContextKey).(string); ok {
		return token
	}
	return ""
}

// WithUser adds the authenticated caller to the context.
func WithUser(ctx context.Context, user *UserInfo) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUser returns the authenticated caller, or nil.
func GetUser(ctx context.Context) *UserInfo {
	if user, ok := ctx.Value(userContextKey).(*UserInfo); ok {
		return user
	}
	return nil
}

// UserID returns the caller's ID, or "" when unauthenticated.
func UserID(ctx context.Context) string {
	if user := GetUser(ctx); user != nil {
		return user.UserID
	}
	return ""
}
