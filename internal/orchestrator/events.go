package orchestrator

import (
	"context"
	"fmt"
	"time"
)

// EventType names one kind of progress event.
type EventType string

const (
	EventClassification  EventType = "classification"
	EventAgentsActivated EventType = "agents_activated"
	EventAgentComplete   EventType = "agent_complete"
	EventSynthesisChunk  EventType = "synthesis_chunk"
	EventFinal           EventType = "final"
	EventError           EventType = "error"
)

// Event is one progress notification. Data carries a small stage-specific
// payload, never the pipeline state itself, except on the final event.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	Stage     Stage     `json:"stage"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives progress events in order. Publish must not block for long:
// it runs on the pipeline's goroutine.
type Sink interface {
	Publish(ctx context.Context, e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event)

func (f SinkFunc) Publish(ctx context.Context, e Event) { f(ctx, e) }

// MultiSink fans every event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(ctx, e)
		}
	}
}

// StageError is an unhandled failure inside one pipeline stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Payloads for the intermediate events.

type classificationData struct {
	Type       string   `json:"question_type"`
	Domains    []string `json:"domains"`
	Urgency    string   `json:"urgency"`
	Complexity string   `json:"complexity"`
	Emotional  string   `json:"emotional_state"`
	Style      string   `json:"conversation_style"`
}

type agentsActivatedData struct {
	Agents    []string `json:"agents"`
	Strategy  string   `json:"execution_strategy"`
	Reasoning string   `json:"reasoning"`
}

type agentCompleteData struct {
	Agent     string  `json:"agent"`
	Success   bool    `json:"success"`
	FromCache bool    `json:"from_cache"`
	Elapsed   float64 `json:"elapsed_seconds"`
	Error     string  `json:"error,omitempty"`
}

type chunkData struct {
	Text string `json:"text"`
}

type errorData struct {
	Message string `json:"message"`
}
