package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func anthropicMessage(text string, in, out int) map[string]any {
	return map[string]any{
		"id":            "msg_01",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-sonnet-4-20250514",
		"content":       []map[string]any{{"type": "text", "text": text}},
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": in, "output_tokens": out},
	}
}

func TestAnthropicCall_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("expected /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("expected x-api-key test-key, got %q", r.Header.Get("x-api-key"))
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req["model"] != "claude-sonnet-4-20250514" {
			t.Errorf("unexpected model %v", req["model"])
		}
		if req["max_tokens"].(float64) != 1500 {
			t.Errorf("expected max_tokens 1500, got %v", req["max_tokens"])
		}
		msgs := req["messages"].([]any)
		if len(msgs) != 2 {
			t.Errorf("expected history plus prompt, got %d messages", len(msgs))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(anthropicMessage("the market is shifting", 120, 40))
	}))
	defer server.Close()

	p := NewAnthropicProvider("test-key", server.URL+"/")
	resp, err := p.Call(context.Background(), Request{
		Model:       "claude-sonnet-4-20250514",
		System:      "you are a test",
		Prompt:      "hello",
		History:     []Message{{Role: "assistant", Content: "earlier answer"}},
		Temperature: 0.7,
		MaxTokens:   1500,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "the market is shifting" {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if resp.Usage.Source != UsageExact || resp.Usage.Prompt != 120 || resp.Usage.Completion != 40 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
}

func TestAnthropicCall_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"type": "error",
			"error": map[string]any{
				"type":    "invalid_request_error",
				"message": "max_tokens is too large",
			},
		})
	}))
	defer server.Close()

	p := NewAnthropicProvider("test-key", server.URL+"/")
	_, err := p.Call(context.Background(), Request{Model: "m", Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error for API error response")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %T", err)
	}
	if pe.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", pe.StatusCode)
	}
	if pe.Provider != KindAnthropic {
		t.Errorf("expected anthropic provider, got %s", pe.Provider)
	}
}

func TestAnthropicCall_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msg := anthropicMessage("", 1, 0)
		msg["content"] = []map[string]any{}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(msg)
	}))
	defer server.Close()

	p := NewAnthropicProvider("test-key", server.URL+"/")
	if _, err := p.Call(context.Background(), Request{Model: "m", Prompt: "hi"}); err == nil {
		t.Fatal("expected error for empty content response")
	}
}

func TestAnthropicStream(t *testing.T) {
	events := []struct{ name, data string }{
		{"message_start", `{"type":"message_start","message":{"id":"msg_01","type":"message","role":"assistant","model":"m","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":30,"output_tokens":1}}}`},
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Here is "}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"the synthesis."}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":9}}`},
		{"message_stop", `{"type":"message_stop"}`},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, ev := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
		}
	}))
	defer server.Close()

	p := NewAnthropicProvider("test-key", server.URL+"/")
	var chunks []string
	resp, err := p.Stream(context.Background(), Request{Model: "m", Prompt: "hi"}, func(s string) {
		chunks = append(chunks, s)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "Here is the synthesis." {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if len(chunks) != 2 {
		t.Errorf("expected 2 chunks, got %d", len(chunks))
	}
	if resp.Usage.Prompt != 30 || resp.Usage.Completion != 9 || resp.Usage.Source != UsageExact {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
}
