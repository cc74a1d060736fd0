package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLogger_QueryNewestFirst(t *testing.T) {
	ctx := context.Background()
	logger := NewMemoryLogger(0, 0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, tool := range []string{"kusto_list_clusters", "kusto_query", "kusto_query"} {
		e := NewEvent(tool)
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		e.Success = i != 2
		require.NoError(t, logger.Log(ctx, *e))
	}

	all, err := logger.Query(ctx, QueryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Timestamp.After(all[1].Timestamp))

	queries, err := logger.Query(ctx, QueryFilter{ToolName: "kusto_query"})
	require.NoError(t, err)
	assert.Len(t, queries, 2)

	failed := false
	failures, err := logger.Query(ctx, QueryFilter{Success: &failed})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, base.Add(2*time.Minute), failures[0].Timestamp)

	page, err := logger.Query(ctx, QueryFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, base.Add(time.Minute), page[0].Timestamp)
}

func TestMemoryLogger_Capacity(t *testing.T) {
	ctx := context.Background()
	logger := NewMemoryLogger(2, 0)
	for _, tool := range []string{"a", "b", "c"} {
		require.NoError(t, logger.Log(ctx, *NewEvent(tool)))
	}
	events, err := logger.Query(ctx, QueryFilter{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "c", events[0].ToolName)
	assert.Equal(t, "b", events[1].ToolName)
}

func TestMemoryLogger_Retention(t *testing.T) {
	ctx := context.Background()
	logger := NewMemoryLogger(0, 1)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	logger.now = func() time.Time { return now }

	old := NewEvent("old")
	old.Timestamp = now.Add(-48 * time.Hour)
	fresh := NewEvent("fresh")
	fresh.Timestamp = now.Add(-time.Hour)
	require.NoError(t, logger.Log(ctx, *old))
	require.NoError(t, logger.Log(ctx, *fresh))

	events, err := logger.Query(ctx, QueryFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "fresh", events[0].ToolName)
}

func TestQueryFilter_Matches(t *testing.T) {
	e := Event{ToolName: "kusto_query", Cluster: "c", UserID: "u", Success: true, Timestamp: time.Unix(100, 0)}
	start := time.Unix(50, 0)
	end := time.Unix(99, 0)

	assert.True(t, QueryFilter{}.Matches(e))
	assert.True(t, QueryFilter{Cluster: "c", UserID: "u", StartTime: &start}.Matches(e))
	assert.False(t, QueryFilter{EndTime: &end}.Matches(e))
	assert.False(t, QueryFilter{ToolName: "other"}.Matches(e))
}
