// Package events provides the in-process event bus used to publish pipeline activity.
package events

import "time"

// EventType represents different event types.
type EventType string

const (
	// Scoring and lifecycle events
	CycleCompleted    EventType = "CYCLE_COMPLETED"
	SignalOpened      EventType = "SIGNAL_OPENED"
	SignalClosed      EventType = "SIGNAL_CLOSED"
	AggregateComputed EventType = "AGGREGATE_COMPUTED"

	// System events
	StoreStatusChanged EventType = "STORE_STATUS_CHANGED"
	ErrorOccurred      EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every type a stream client can subscribe to.
var AllEventTypes = []EventType{
	CycleCompleted,
	SignalOpened,
	SignalClosed,
	AggregateComputed,
	StoreStatusChanged,
	ErrorOccurred,
}

// Event is what subscribers receive.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// GetTypedData converts the Data map back to its typed EventData.
// Returns nil for unknown types or undecodable data.
func (e *Event) GetTypedData() EventData {
	if e.Data == nil {
		return nil
	}

	data := newEventData(e.Type)
	if data == nil {
		return nil
	}
	if err := fromPayload(e.Data, data); err != nil {
		return nil
	}
	return data
}
