package telemetry

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

// EventType categorizes telemetry events.
type EventType string

const (
	EventPassScheduled EventType = "pass_scheduled"
	EventPassStarted   EventType = "pass_started"
	EventPassFinished  EventType = "pass_finished"
	EventPassAbandoned EventType = "pass_abandoned"
	EventActiveChanged EventType = "active_changed"
	EventDocumentOpen  EventType = "document_open"
	EventDocumentClose EventType = "document_close"
	EventCommand       EventType = "command"
)

// Event captures structured telemetry data.
type Event struct {
	Type      EventType              `json:"type"`
	Document  string                 `json:"document,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Symbols   int                    `json:"symbols,omitempty"`
	Duration  time.Duration          `json:"duration,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Telemetry receives events from the document tracker and the hosts. Sinks
// are called from the UI context and must not block for long.
type Telemetry interface {
	Emit(event Event)
}

// Nop drops every event.
type Nop struct{}

// Emit does nothing.
func (Nop) Emit(Event) {}

// MultiplexTelemetry broadcasts events to multiple sinks.
type MultiplexTelemetry struct {
	Sinks []Telemetry
}

// Emit forwards the event to all registered sinks.
func (m MultiplexTelemetry) Emit(event Event) {
	for _, s := range m.Sinks {
		s.Emit(event)
	}
}

// JSONFileTelemetry writes events as newline-delimited JSON to a file.
// This allows external tools to tail and process the stream in real-time.
type JSONFileTelemetry struct {
	path string
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
}

// NewJSONFileTelemetry opens (or creates) the log file.
func NewJSONFileTelemetry(path string) (*JSONFileTelemetry, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONFileTelemetry{
		path: path,
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Emit writes the JSON record.
func (j *JSONFileTelemetry) Emit(event Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.enc != nil {
		_ = j.enc.Encode(event)
	}
}

// Close releases the file handle.
func (j *JSONFileTelemetry) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file != nil {
		err := j.file.Close()
		j.file = nil
		j.enc = nil
		return err
	}
	return nil
}

// LoggerTelemetry emits events via the standard logger so every pass shows up
// in the server log without extra tooling.
type LoggerTelemetry struct {
	Logger *log.Logger
}

// Emit logs the event.
func (t LoggerTelemetry) Emit(event Event) {
	logger := t.Logger
	if logger == nil {
		logger = log.Default()
	}
	if event.Duration > 0 {
		logger.Printf("[%s] doc=%s symbols=%d took=%s msg=%s\n", event.Type, event.Document, event.Symbols, event.Duration, event.Message)
		return
	}
	logger.Printf("[%s] doc=%s meta=%v msg=%s\n", event.Type, event.Document, event.Metadata, event.Message)
}
