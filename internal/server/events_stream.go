package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/signalscope/internal/events"
)

const (
	streamBufferSize  = 100
	heartbeatInterval = 30 * time.Second
)

// EventsStreamHandler streams bus events to clients over SSE or WebSocket.
type EventsStreamHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// streamMessage is the JSON frame sent for every event.
type streamMessage struct {
	Type      string                 `json:"type"`
	Module    string                 `json:"module,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// NewEventsStreamHandler creates a new events stream handler.
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
}

// subscribe registers a buffered channel for the requested types.
// The returned function removes every subscription.
func (h *EventsStreamHandler) subscribe(types []events.EventType) (<-chan *events.Event, func()) {
	eventChan := make(chan *events.Event, streamBufferSize)

	handler := func(event *events.Event) {
		// Non-blocking send (drop if channel full)
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	subs := make([]events.Subscription, 0, len(types))
	for _, t := range types {
		subs = append(subs, h.eventBus.Subscribe(t, handler))
	}

	return eventChan, func() {
		for _, sub := range subs {
			h.eventBus.Unsubscribe(sub)
		}
	}
}

// parseTypes reads the comma separated ?types= filter, defaulting to every type.
func parseTypes(r *http.Request) []events.EventType {
	raw := r.URL.Query().Get("types")
	if raw == "" {
		return events.AllEventTypes
	}

	var types []events.EventType
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, events.EventType(t))
		}
	}
	return types
}

func toMessage(event *events.Event) streamMessage {
	return streamMessage{
		Type:      string(event.Type),
		Module:    event.Module,
		Timestamp: event.Timestamp.Format(time.RFC3339),
		Data:      event.Data,
	}
}

func controlMessage(kind, message string) streamMessage {
	return streamMessage{
		Type:      kind,
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   message,
	}
}

// ServeHTTP handles GET /api/events/stream requests (SSE).
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	types := parseTypes(r)
	eventChan, unsubscribe := h.subscribe(types)
	defer unsubscribe()

	h.log.Info().Int("types", len(types)).Msg("Client connected to event stream")

	send := func(msg streamMessage) {
		data, err := json.Marshal(msg)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to marshal event")
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	send(controlMessage("connected", "Connected to event stream"))

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Info().Msg("Client disconnected from event stream")
			return
		case event := <-eventChan:
			send(toMessage(event))
		case <-heartbeat.C:
			send(controlMessage("heartbeat", ""))
		}
	}
}

// ServeWebSocket handles GET /api/events/ws requests.
// Client messages are ignored; the connection ends when the client closes it.
func (h *EventsStreamHandler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	types := parseTypes(r)
	eventChan, unsubscribe := h.subscribe(types)
	defer unsubscribe()

	ctx := conn.CloseRead(r.Context())
	h.log.Info().Int("types", len(types)).Msg("WebSocket client connected")

	write := func(msg streamMessage) error {
		writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return wsjson.Write(writeCtx, conn, msg)
	}

	if err := write(controlMessage("connected", "Connected to event stream")); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		var msg streamMessage
		select {
		case <-ctx.Done():
			h.log.Info().Msg("WebSocket client disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event := <-eventChan:
			msg = toMessage(event)
		case <-heartbeat.C:
			msg = controlMessage("heartbeat", "")
		}

		if err := write(msg); err != nil {
			h.log.Debug().Err(err).Msg("WebSocket write failed")
			return
		}
	}
}
