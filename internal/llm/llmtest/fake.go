// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/counsel/internal/llm"
)

// Func produces the reply for one request.
type Func func(ctx context.Context, req llm.Request) (*llm.Response, error)

// Provider records every request and answers through Fn after Delay.
type Provider struct {
	Tag   llm.Kind
	Fn    Func
	Delay time.Duration

	mu    sync.Mutex
	calls []llm.Request
}

func New(kind llm.Kind, fn Func) *Provider {
	return &Provider{Tag: kind, Fn: fn}
}

// Text always replies with text and estimated usage.
func Text(kind llm.Kind, text string) *Provider {
	return New(kind, func(_ context.Context, req llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: text, Model: req.Model, Usage: llm.EstimateUsage(req, text)}, nil
	})
}

// Fail always returns a ProviderError wrapping err.
func Fail(kind llm.Kind, err error) *Provider {
	return New(kind, func(_ context.Context, req llm.Request) (*llm.Response, error) {
		return nil, &llm.ProviderError{Provider: kind, Model: req.Model, StatusCode: 500, Err: err}
	})
}

func (p *Provider) Kind() llm.Kind { return p.Tag }

func (p *Provider) Call(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.Fn(ctx, req)
}

// Stream replies like Call and emits the text word by word.
func (p *Provider) Stream(ctx context.Context, req llm.Request, onDelta func(string)) (*llm.Response, error) {
	resp, err := p.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if onDelta != nil {
		for _, w := range strings.SplitAfter(resp.Text, " ") {
			if w != "" {
				onDelta(w)
			}
		}
	}
	return resp, nil
}

func (p *Provider) Calls() []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.Request, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
