package pipeline

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/qamarero/placesync/internal/model"
)

// EventType labels one step of a record's trip through the pipeline.
type EventType string

const (
	EventStart            EventType = "start"
	EventProgress         EventType = "progress"
	EventProcessing       EventType = "processing"
	EventSuccess          EventType = "success"
	EventFailed           EventType = "failed"
	EventNotFound         EventType = "not_found"
	EventValidationFailed EventType = "validation_failed"
	EventIDMismatch       EventType = "id_mismatch"
	EventSkipped          EventType = "skipped"
	EventDelay            EventType = "delay"
	EventComplete         EventType = "complete"
	EventError            EventType = "error"
)

// Event is one progress notification. Batch callers get the collected
// slice; streaming callers get each event as an NDJSON line.
type Event struct {
	Type      EventType       `json:"type"`
	RecordID  string          `json:"record_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Current   int             `json:"current,omitempty"`
	Total     int             `json:"total,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Errors    []string        `json:"errors,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
	Stats     *model.RunStats `json:"stats,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventSink receives pipeline events. The pipeline emits from a single
// goroutine; sinks that fan out further handle their own synchronization.
type EventSink interface {
	Emit(Event)
}

// CollectingSink buffers events in memory for batch responses.
type CollectingSink struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends the event.
func (s *CollectingSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a copy of everything emitted so far.
func (s *CollectingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// NDJSONSink writes one JSON object per line, flushing after each event
// when the writer supports it, so HTTP clients see progress live.
type NDJSONSink struct {
	enc     *json.Encoder
	flusher http.Flusher
}

// NewNDJSONSink wraps a writer. Pass the http.ResponseWriter itself to
// get per-event flushing.
func NewNDJSONSink(w io.Writer) *NDJSONSink {
	s := &NDJSONSink{enc: json.NewEncoder(w)}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

// Emit writes the event as one line. Encoding errors are swallowed: a
// disconnected streaming client must not abort the run.
func (s *NDJSONSink) Emit(e Event) {
	if err := s.enc.Encode(e); err != nil {
		return
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// NopSink discards all events.
type NopSink struct{}

// Emit does nothing.
func (NopSink) Emit(Event) {}
