// Package llm puts the three model backends (Anthropic, Gemini, and a local
// Ollama daemon) behind one call contract.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Kind tags which backend serves a model. It is fixed when the model catalog
// is loaded, so dispatch never parses model names.
type Kind string

const (
	KindAnthropic Kind = "anthropic"
	KindGemini    Kind = "gemini"
	KindOllama    Kind = "ollama"
)

// ParseKind converts a configuration string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAnthropic:
		return KindAnthropic, nil
	case KindGemini:
		return KindGemini, nil
	case KindOllama:
		return KindOllama, nil
	default:
		return "", fmt.Errorf("unknown provider kind %q", s)
	}
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	History     []Message
	Temperature float64
	MaxTokens   int
}

type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Provider is the uniform call contract every backend implements.
type Provider interface {
	Kind() Kind
	Call(ctx context.Context, req Request) (*Response, error)
}

// Streamer is implemented by providers that can deliver text incrementally.
// onDelta is invoked synchronously for every text fragment.
type Streamer interface {
	Provider
	Stream(ctx context.Context, req Request, onDelta func(string)) (*Response, error)
}

func messagesFor(req Request) []Message {
	msgs := make([]Message, 0, len(req.History)+1)
	for _, m := range req.History {
		if m.Content == "" {
			continue
		}
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		msgs = append(msgs, Message{Role: role, Content: m.Content})
	}
	return append(msgs, Message{Role: "user", Content: req.Prompt})
}
