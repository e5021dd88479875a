package runner

import (
	"context"
	"time"
)

// EventType names a run lifecycle event.
type EventType string

// Lifecycle events emitted by the runner.
const (
	EventRunStarted     EventType = "run.started"
	EventModelResponded EventType = "model.responded"
	EventToolExecuted   EventType = "tool.executed"
	EventHandoff        EventType = "handoff"
	EventRunCompleted   EventType = "run.completed"
	EventRunFailed      EventType = "run.failed"
)

// Event is a lifecycle notification about a run. Events are informational;
// a failing sink never affects the run.
type Event struct {
	Type           EventType      `json:"type"`
	RunID          string         `json:"run_id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Agent          string         `json:"agent"`
	Time           time.Time      `json:"time"`
	Data           map[string]any `json:"data,omitempty"`
}

// EventSink receives run lifecycle events.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, ev Event) error

// Publish implements EventSink.
func (f EventSinkFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }
