package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType categorizes audit events.
type EventType string

const (
	// EventTypeToolCall is a tool invocation event.
	EventTypeToolCall EventType = "tool_call"

	// EventTypeAuth is an authentication event.
	EventTypeAuth EventType = "auth"
)

// NewEvent creates a tool call event stamped with a fresh ID and the
// current time.
func NewEvent(toolName string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      EventTypeToolCall,
		Timestamp: time.Now().UTC(),
		ToolName:  toolName,
	}
}

// WithUser records the caller.
func (e *Event) WithUser(userID string) *Event {
	e.UserID = userID
	return e
}

// WithTarget records the cluster and database the call addressed.
func (e *Event) WithTarget(cluster, database string) *Event {
	e.Cluster = cluster
	e.Database = database
	return e
}

// WithParameters records sanitized call parameters.
func (e *Event) WithParameters(params map[string]any) *Event {
	e.Parameters = SanitizeParameters(params)
	return e
}

// WithResult records the outcome.
func (e *Event) WithResult(success bool, errorMsg string, duration time.Duration) *Event {
	e.Success = success
	e.ErrorMessage = errorMsg
	e.DurationMS = duration.Milliseconds()
	return e
}

// WithRequestID records the request correlation ID.
func (e *Event) WithRequestID(requestID string) *Event {
	e.RequestID = requestID
	return e
}

// WithTransport records the MCP transport the call arrived on.
func (e *Event) WithTransport(transport string) *Event {
	e.Transport = transport
	return e
}

var sensitiveKeys = map[string]bool{
	"password":      true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"authorization": true,
	"credentials":   true,
}

// SanitizeParameters returns a copy of params with sensitive values
// replaced by "[REDACTED]".
func SanitizeParameters(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		if sensitiveKeys[k] {
			sanitized[k] = "[REDACTED]"
		} else {
			sanitized[k] = v
		}
	}
	return sanitized
}
