package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPLoggingMiddleware logs the outcome and duration of every tool call.
// It must run inside MCPToolCallMiddleware.
func MCPLoggingMiddleware() mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != methodToolsCall {
				return next(ctx, method, req)
			}
			result, err := next(ctx, method, req)

			tc := GetToolCall(ctx)
			if tc == nil {
				return result, err
			}
			attrs := []any{
				"tool", tc.ToolName,
				"request_id", tc.RequestID,
				"duration", time.Since(tc.StartTime),
			}
			if c := tc.Cluster(); c != "" {
				attrs = append(attrs, "cluster", c)
			}
			if failed, msg := resultError(result, err); failed {
				slog.Info("tool call failed", append(attrs, "error", msg)...)
			} else {
				slog.Debug("tool call completed", attrs...)
			}
			return result, err
		}
	}
}
