// Package middleware provides MCP protocol middleware for tool calls.
package middleware

import (
	"context"
	"time"
)

// contextKey is a private type for context keys.
type contextKey int

const toolCallContextKey contextKey = iota

// ToolCall describes the tool invocation being served.
type ToolCall struct {
	RequestID string
	ToolName  string
	UserID    string
	Transport string // "stdio" or "http"
	StartTime time.Time

	// Arguments are the decoded call arguments; nil when they were not an
	// object.
	Arguments map[string]any
}

// Cluster returns the "cluster" argument, if any.
func (tc *ToolCall) Cluster() string {
	return tc.stringArg("cluster")
}

// Database returns the "database" argument, if any.
func (tc *ToolCall) Database() string {
	return tc.stringArg("database")
}

func (tc *ToolCall) stringArg(name string) string {
	s, _ := tc.Arguments[name].(string)
	return s
}

// WithToolCall adds tool call details to the context.
func WithToolCall(ctx context.Context, tc *ToolCall) context.Context {
	return context.WithValue(ctx, toolCallContextKey, tc)
}

// GetToolCall retrieves tool call details from the context.
func GetToolCall(ctx context.Context) *ToolCall {
	if tc, ok := ctx.Value(toolCallContextKey).(*ToolCall); ok {
		return tc
	}
	return nil
}
