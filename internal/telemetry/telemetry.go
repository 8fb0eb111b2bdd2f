// Package telemetry defines the structured event stream emitted by the
// console core. Events are pushed to a Sink supplied by the embedding
// program; the core never decides where they go.
package telemetry

import (
	"sync"
	"time"
)

// Event is one structured telemetry record. TruthState and Reason mirror
// the scene classification so a replay of the event log reconstructs what
// the console honestly knew at each tick.
type Event struct {
	Subsystem  string                 `json:"subsystem"`
	EventType  string                 `json:"event_type"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	TruthState string                 `json:"truth_state,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	TS         time.Time              `json:"ts"`
}

// Sink receives telemetry events. Implementations must not retain the
// payload map beyond the call unless they copy it.
type Sink interface {
	Emit(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

// Emit calls f(ev).
func (f SinkFunc) Emit(ev Event) { f(ev) }

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// MultiSink fans one event out to several sinks in order.
type MultiSink []Sink

// Emit delivers ev to every sink in the slice.
func (m MultiSink) Emit(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

// MemorySink collects events for inspection in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends ev to the in-memory log.
func (m *MemorySink) Emit(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of everything emitted so far.
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// ByType returns the recorded events with the given event type, in order.
func (m *MemorySink) ByType(eventType string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// Reset discards all recorded events.
func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
