package events

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Manager publishes typed event data on a Bus and keeps a running count of
// published events per type. A nil Manager drops everything.
type Manager struct {
	bus *Bus
	log zerolog.Logger

	mu        sync.Mutex
	published map[EventType]uint64
}

// NewManager wraps bus.
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus:       bus,
		log:       log.With().Str("service", "events").Logger(),
		published: make(map[EventType]uint64),
	}
}

// Bus returns the underlying bus.
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Publish delivers data to the subscribers of its event type.
func (m *Manager) Publish(module string, data EventData) {
	if m == nil || data == nil {
		return
	}
	eventType := data.EventType()
	payload := toPayload(data)
	if payload == nil {
		m.log.Warn().Str("event_type", string(eventType)).Msg("Dropping event with unencodable payload")
		return
	}

	m.mu.Lock()
	m.published[eventType]++
	m.mu.Unlock()

	m.bus.Emit(eventType, module, payload)
	m.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		Interface("data", payload).
		Msg("Event published")
}

// PublishError publishes an ErrorOccurred event. A nil err is ignored.
func (m *Manager) PublishError(module string, err error, context map[string]interface{}) {
	if err == nil {
		return
	}
	m.Publish(module, &ErrorEventData{Error: err.Error(), Context: context})
}

// Published returns a copy of the per-type publish counters.
func (m *Manager) Published() map[EventType]uint64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[EventType]uint64, len(m.published))
	for k, v := range m.published {
		out[k] = v
	}
	return out
}

// toPayload flattens typed data into the generic map an Event carries.
func toPayload(data EventData) map[string]interface{} {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}

// fromPayload decodes an Event payload back into a typed struct.
func fromPayload(payload map[string]interface{}, v interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
