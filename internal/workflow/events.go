package workflow

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies workflow events for listeners.
type EventType string

const (
	EventCycleStarted   EventType = "cycle_started"
	EventStateChanged   EventType = "state_changed"
	EventHookCompleted  EventType = "hook_completed"
	EventCycleCompleted EventType = "cycle_completed"
	EventCycleFailed    EventType = "cycle_failed"
	EventCycleStopped   EventType = "cycle_stopped"
)

// Event is one observable workflow occurrence. Events are emitted on
// state changes and cycle boundaries so UIs can follow a cycle live.
type Event struct {
	ID        uuid.UUID `json:"id"`
	CycleID   uuid.UUID `json:"cycle_id"`
	Type      EventType `json:"type"`
	State     State     `json:"state"`
	Previous  State     `json:"previous_state,omitempty"`
	HookIndex int       `json:"hook_index"`
	HookCount int       `json:"hook_count"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSink receives workflow events. Publish must not block the
// workflow; sinks buffer or drop as they see fit.
type EventSink interface {
	Publish(Event)
}

// NopSink drops all events.
type NopSink struct{}

func (NopSink) Publish(Event) {}
