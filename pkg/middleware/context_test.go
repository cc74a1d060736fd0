package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolCallContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetToolCall(ctx))

	tc := &ToolCall{ToolName: "kusto_query", Arguments: map[string]any{
		"cluster":  "help",
		"database": "Samples",
		"size":     10.0,
	}}
	got := GetToolCall(WithToolCall(ctx, tc))
	assert.Same(t, tc, got)
	assert.Equal(t, "help", got.Cluster())
	assert.Equal(t, "Samples", got.Database())
	assert.Empty(t, got.stringArg("size"))
}

func TestToolCall_NoArguments(t *testing.T) {
	tc := &ToolCall{}
	assert.Empty(t, tc.Cluster())
	assert.Empty(t, tc.Database())
}
