package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MikeSquared-Agency/counsel/internal/classifier"
	"github.com/MikeSquared-Agency/counsel/internal/orchestrator"
	"github.com/MikeSquared-Agency/counsel/internal/quality"
	"github.com/MikeSquared-Agency/counsel/internal/routing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func failedRun() *orchestrator.PipelineState {
	return &orchestrator.PipelineState{
		RunID:   "run-42",
		Request: orchestrator.Request{Question: "Should we hire more engineers?"},
		Classification: classifier.Classification{
			Type:       classifier.TypeDecision,
			Urgency:    classifier.UrgencyImportant,
			Complexity: classifier.ComplexityMedium,
		},
		Quality: quality.Check{
			Passed:         false,
			FailureReasons: []string{quality.GateReasoning, quality.GateEmpowerment},
		},
		Confidence: quality.Score{Level: quality.LevelLow, Percentage: 55},
		Narrative:  "You should definitely hire 5 more engineers immediately.",
		TotalCost:  0.0213,
		Metadata: orchestrator.Metadata{
			AgentsActivated: []routing.Agent{routing.AgentFinancialGuardian, routing.AgentStrategyAnalyst},
			AgentsSucceeded: []routing.Agent{routing.AgentStrategyAnalyst},
			AgentsFailed:    []routing.Agent{routing.AgentFinancialGuardian},
			TotalTime:       11.4,
			SynthesisModel:  routing.ModelClaudeSonnet,
		},
	}
}

func TestFormatReviewMessage(t *testing.T) {
	msg := formatReviewMessage(failedRun())

	checks := []string{
		"run-42",
		"Should we hire more engineers?",
		"*Type:* decision",
		"includes_reasoning, empowers_user",
		"low (55%)",
		"1/2 succeeded",
		"failed: Financial Guardian",
		"11.40s",
		"$0.0213",
	}
	for _, check := range checks {
		if !strings.Contains(msg, check) {
			t.Errorf("expected message to contain %q\n%s", check, msg)
		}
	}
	if strings.Contains(msg, "Degraded") {
		t.Error("non-degraded run should not be flagged")
	}
}

func TestFormatReviewMessage_Degraded(t *testing.T) {
	s := failedRun()
	s.Degraded = true

	if msg := formatReviewMessage(s); !strings.Contains(msg, "Degraded") {
		t.Errorf("expected degraded note, got %q", msg)
	}
}

func TestReviewRun_PostsSummaryAndThread(t *testing.T) {
	var (
		mu       sync.Mutex
		payloads []map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("expected Bearer xoxb-test, got %q", r.Header.Get("Authorization"))
		}

		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		json.Unmarshal(body, &payload)
		mu.Lock()
		payloads = append(payloads, payload)
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"ts": "1234567890.123456",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	if err := p.ReviewRun(context.Background(), failedRun()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(payloads) != 2 {
		t.Fatalf("expected header and thread posts, got %d", len(payloads))
	}
	if payloads[0]["channel"] != "C123" {
		t.Errorf("expected channel C123, got %v", payloads[0]["channel"])
	}
	if payloads[1]["thread_ts"] != "1234567890.123456" {
		t.Errorf("expected thread reply, got %v", payloads[1]["thread_ts"])
	}
	if !strings.Contains(payloads[1]["text"].(string), "hire 5 more engineers") {
		t.Errorf("thread should carry the narrative, got %v", payloads[1]["text"])
	}
}

func TestReviewRun_SlackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok":    false,
			"error": "channel_not_found",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	err := p.ReviewRun(context.Background(), failedRun())
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected channel_not_found error, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("ééééé", 3); got != "ééé…" {
		t.Errorf("truncate = %q", got)
	}
}
