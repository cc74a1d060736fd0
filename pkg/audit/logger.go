// Package audit records tool invocations.
package audit

import (
	"context"
	"time"
)

// Logger defines the interface for audit logging.
type Logger interface {
	// Log records an audit event.
	Log(ctx context.Context, event Event) error

	// Query retrieves audit events matching the filter, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Close releases resources.
	Close() error
}

// Event represents an auditable event.
type Event struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	DurationMS   int64          `json:"duration_ms"`
	RequestID    string         `json:"request_id,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	ToolName     string         `json:"tool_name"`
	Cluster      string         `json:"cluster,omitempty"`
	Database     string         `json:"database,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Transport    string         `json:"transport,omitempty"`
}

// QueryFilter defines criteria for querying audit events.
type QueryFilter struct {
	StartTime *time.Time
	EndTime   *time.Time
	UserID    string
	ToolName  string
	Cluster   string
	Success   *bool
	Limit     int
	Offset    int
}

// Matches reports whether e satisfies every set criterion of f.
func (f QueryFilter) Matches(e Event) bool {
	switch {
	case f.StartTime != nil && e.Timestamp.Before(*f.StartTime):
		return false
	case f.EndTime != nil && e.Timestamp.After(*f.EndTime):
		return false
	case f.UserID != "" && e.UserID != f.UserID:
		return false
	case f.ToolName != "" && e.ToolName != f.ToolName:
		return false
	case f.Cluster != "" && e.Cluster != f.Cluster:
		return false
	case f.Success != nil && e.Success != *f.Success:
		return false
	}
	return true
}
