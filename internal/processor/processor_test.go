package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/counsel/internal/orchestrator"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRunner struct {
	mu       sync.Mutex
	requests []orchestrator.Request
	sinks    []orchestrator.Sink
	delay    time.Duration
	block    chan struct{}
	err      error

	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeRunner) Run(ctx context.Context, req orchestrator.Request, sink orchestrator.Sink) (*orchestrator.PipelineState, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(f.delay)
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.sinks = append(f.sinks, sink)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.PipelineState{RunID: req.RunID, Request: req, Success: true}, nil
}

func event(t *testing.T, req orchestrator.Request) []byte {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

const bridgeRunID = "0b6f2c1e-8a4d-4c3b-9f1e-2d7a5b6c8e90"

func TestHandleQuestionAsked(t *testing.T) {
	runner := &fakeRunner{}
	sink := orchestrator.MultiSink{}
	p := New(runner, sink, 0, discardLogger())

	p.HandleQuestionAsked("counsel.question.asked", event(t, orchestrator.Request{
		RunID:    bridgeRunID,
		Question: "Should we raise a bridge round?",
		UserID:   "u-1",
		History:  nil,
	}))
	p.Close()

	if len(runner.requests) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runner.requests))
	}
	got := runner.requests[0]
	if got.RunID != bridgeRunID || got.UserID != "u-1" || got.Question != "Should we raise a bridge round?" {
		t.Errorf("unexpected request %+v", got)
	}
	if runner.sinks[0] == nil {
		t.Error("expected sink to be forwarded")
	}
}

func TestHandleQuestionAsked_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"malformed json", []byte("{not json")},
		{"empty question", []byte(`{"question": "  "}`)},
		{"run id not a uuid", []byte(`{"question": "Should we hire?", "run_id": "run-1"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			p := New(runner, nil, 1, discardLogger())

			p.HandleQuestionAsked("counsel.question.asked", tt.data)
			p.Close()

			if len(runner.requests) != 0 {
				t.Errorf("expected no runs, got %d", len(runner.requests))
			}
		})
	}
}

func TestHandleQuestionAsked_RunErrorIsLogged(t *testing.T) {
	runner := &fakeRunner{err: errors.New("stage synthesize: panic")}
	p := New(runner, nil, 1, discardLogger())

	p.HandleQuestionAsked("counsel.question.asked", event(t, orchestrator.Request{Question: "q?"}))
	p.Close()

	if len(runner.requests) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runner.requests))
	}
}

func TestHandleQuestionAsked_BoundsConcurrency(t *testing.T) {
	runner := &fakeRunner{delay: 30 * time.Millisecond}
	p := New(runner, nil, 2, discardLogger())

	for i := 0; i < 6; i++ {
		p.HandleQuestionAsked("counsel.question.asked", event(t, orchestrator.Request{Question: "q?"}))
	}
	p.Close()

	if len(runner.requests) != 6 {
		t.Fatalf("expected 6 runs, got %d", len(runner.requests))
	}
	if peak := runner.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency %d exceeds limit 2", peak)
	}
}

func waitForInFlight(t *testing.T, r *fakeRunner, n int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for r.inFlight.Load() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d runs in flight, got %d", n, r.inFlight.Load())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHandleQuestionAsked_FullQueueDropsWithoutBlocking(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	p := newProcessor(runner, nil, 1, 1, discardLogger())
	ask := event(t, orchestrator.Request{Question: "q?"})

	p.HandleQuestionAsked("counsel.question.asked", ask)
	waitForInFlight(t, runner, 1)

	done := make(chan struct{})
	go func() {
		p.HandleQuestionAsked("counsel.question.asked", ask) // queued
		p.HandleQuestionAsked("counsel.question.asked", ask) // dropped
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler blocked while every worker was busy")
	}

	close(runner.block)
	p.Close()

	if len(runner.requests) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runner.requests))
	}
	if d := p.Dropped(); d != 1 {
		t.Errorf("expected 1 dropped question, got %d", d)
	}
}

func TestClose_DrainsQueueAndRejectsLateQuestions(t *testing.T) {
	runner := &fakeRunner{delay: 10 * time.Millisecond}
	p := New(runner, nil, 1, discardLogger())

	for i := 0; i < 3; i++ {
		p.HandleQuestionAsked("counsel.question.asked", event(t, orchestrator.Request{Question: "q?"}))
	}
	p.Close()

	if len(runner.requests) != 3 {
		t.Fatalf("expected queued runs to finish, got %d", len(runner.requests))
	}

	p.HandleQuestionAsked("counsel.question.asked", event(t, orchestrator.Request{Question: "late?"}))
	p.Close()

	if len(runner.requests) != 3 {
		t.Errorf("expected late question to be dropped, got %d runs", len(runner.requests))
	}
	if d := p.Dropped(); d != 1 {
		t.Errorf("expected 1 dropped question, got %d", d)
	}
}
