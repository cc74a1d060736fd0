package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-kusto/pkg/audit"
)

// MCPAuditMiddleware creates MCP protocol-level middleware that records
// every tool call in logger. It must run inside MCPToolCallMiddleware.
// Events are written asynchronously so that a slow audit store does not
// delay responses.
func MCPAuditMiddleware(logger audit.Logger) mcp.Middleware {
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
			event := buildAuditEvent(tc, result, err, time.Since(tc.StartTime))
			go func() {
				if logErr := logger.Log(context.Background(), event); logErr != nil {
					slog.Warn("writing audit event failed", "tool", event.ToolName, "error", logErr)
				}
			}()

			return result, err
		}
	}
}

func buildAuditEvent(tc *ToolCall, result mcp.Result, err error, duration time.Duration) audit.Event {
	failed, msg := resultError(result, err)
	event := audit.NewEvent(tc.ToolName).
		WithUser(tc.UserID).
		WithTarget(tc.Cluster(), tc.Database()).
		WithParameters(tc.Arguments).
		WithRequestID(tc.RequestID).
		WithTransport(tc.Transport).
		WithResult(!failed, msg, duration)
	event.Timestamp = tc.StartTime.UTC()
	return *event
}
