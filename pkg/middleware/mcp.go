package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-kusto/pkg/auth"
)

const methodToolsCall = "tools/call"

// MCPToolCallMiddleware creates MCP protocol-level middleware that attaches
// a ToolCall to the context of every tools/call request. Callers were
// already authenticated at the transport; the caller identity is taken from
// the context when the transport provides one.
func MCPToolCallMiddleware(transport string) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != methodToolsCall {
				return next(ctx, method, req)
			}

			params, err := callParams(req)
			if err != nil {
				return errorResult(fmt.Sprintf("invalid request: %v", err)), nil
			}

			tc := &ToolCall{
				RequestID: uuid.NewString(),
				ToolName:  params.Name,
				UserID:    auth.UserID(ctx),
				Transport: transport,
				StartTime: time.Now(),
				Arguments: argumentsMap(params),
			}
			return next(WithToolCall(ctx, tc), method, req)
		}
	}
}

func callParams(req mcp.Request) (*mcp.CallToolParamsRaw, error) {
	if req == nil {
		return nil, fmt.Errorf("missing request")
	}
	params, ok := req.GetParams().(*mcp.CallToolParamsRaw)
	if !ok || params == nil {
		return nil, fmt.Errorf("unexpected params type: %T", req.GetParams())
	}
	if params.Name == "" {
		return nil, fmt.Errorf("missing tool name")
	}
	return params, nil
}

func argumentsMap(params *mcp.CallToolParamsRaw) map[string]any {
	if len(params.Arguments) == 0 {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return nil
	}
	return args
}

func errorResult(msg string) mcp.Result {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + msg}},
	}
}

// resultError reports whether a tool call failed and why.
func resultError(result mcp.Result, err error) (bool, string) {
	if err != nil {
		return true, err.Error()
	}
	r, ok := result.(*mcp.CallToolResult)
	if !ok || r == nil || !r.IsError {
		return false, ""
	}
	if len(r.Content) > 0 {
		if text, ok := r.Content[0].(*mcp.TextContent); ok {
			return true, text.Text
		}
	}
	return true, ""
}
