package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// CycleCompletedData summarizes one scoring cycle.
type CycleCompletedData struct {
	Source          string         `json:"source"`
	AsOf            time.Time      `json:"as_of"`
	CandidatesFound int            `json:"candidates_found"`
	CandidatesSaved int            `json:"candidates_saved"`
	Processed       int            `json:"processed"`
	Skipped         map[string]int `json:"skipped,omitempty"`
	DurationMs      int64          `json:"duration_ms"`
}

// EventType returns the event type for CycleCompletedData.
func (d *CycleCompletedData) EventType() EventType {
	return CycleCompleted
}

// SignalOpenedData describes a newly tracked signal.
type SignalOpenedData struct {
	SignalID     string    `json:"signal_id"`
	InstrumentID string    `json:"instrument_id"`
	Symbol       string    `json:"symbol"`
	Source       string    `json:"source"`
	EntryDate    time.Time `json:"entry_date"`
	EntryPrice   float64   `json:"entry_price"`
	Score        float64   `json:"score"`
}

// EventType returns the event type for SignalOpenedData.
func (d *SignalOpenedData) EventType() EventType {
	return SignalOpened
}

// SignalClosedData describes a signal transition to a terminal status.
type SignalClosedData struct {
	SignalID     string    `json:"signal_id"`
	InstrumentID string    `json:"instrument_id"`
	Symbol       string    `json:"symbol"`
	Source       string    `json:"source"`
	Status       string    `json:"status"`
	ExitDate     time.Time `json:"exit_date"`
	ExitPrice    float64   `json:"exit_price"`
	PnLPercent   float64   `json:"pnl_percent"`
	HeldDays     int       `json:"held_days"`
}

// EventType returns the event type for SignalClosedData.
func (d *SignalClosedData) EventType() EventType {
	return SignalClosed
}

// AggregateComputedData describes a stored performance record.
type AggregateComputedData struct {
	Source           string    `json:"source"`
	Period           string    `json:"period"`
	ReportDate       time.Time `json:"report_date"`
	TotalSignals     int       `json:"total_signals"`
	WinRate          float64   `json:"win_rate"`
	NetProfitPercent float64   `json:"net_profit_percent"`
}

// EventType returns the event type for AggregateComputedData.
func (d *AggregateComputedData) EventType() EventType {
	return AggregateComputed
}

// ErrorEventData contains data for ErrorOccurred events.
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// StoreStatusData reports a database becoming reachable or unreachable.
type StoreStatusData struct {
	Database  string `json:"database"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// EventType returns the event type for StoreStatusData.
func (d *StoreStatusData) EventType() EventType {
	return StoreStatusChanged
}

// EventType returns the event type for ErrorEventData.
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// newEventData returns an empty typed payload for t, or nil if t has none.
func newEventData(t EventType) EventData {
	switch t {
	case CycleCompleted:
		return &CycleCompletedData{}
	case SignalOpened:
		return &SignalOpenedData{}
	case SignalClosed:
		return &SignalClosedData{}
	case AggregateComputed:
		return &AggregateComputedData{}
	case StoreStatusChanged:
		return &StoreStatusData{}
	case ErrorOccurred:
		return &ErrorEventData{}
	default:
		return nil
	}
}

// EventWithData represents an event with typed data.
type EventWithData struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON customizes JSON serialization for EventWithData.
func (e *EventWithData) MarshalJSON() ([]byte, error) {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for EventWithData.
func (e *EventWithData) UnmarshalJSON(data []byte) error {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		e.Data = nil
		return nil
	}

	eventData := newEventData(aux.Type)
	if eventData == nil {
		generic := &GenericEventData{Type: aux.Type}
		if err := json.Unmarshal(aux.Data, generic); err != nil {
			return err
		}
		e.Data = generic
		return nil
	}

	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return err
	}
	e.Data = eventData
	return nil
}

// GenericEventData is a fallback for events that don't have a specific type.
type GenericEventData struct {
	Type EventType `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData.
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData.
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData.
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
