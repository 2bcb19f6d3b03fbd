package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultOllamaURL     = "http://127.0.0.1:11434"
	defaultOllamaTimeout = 120 * time.Second
)

// OllamaConfig configures the local provider.
type OllamaConfig struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond bounds how fast calls are dispatched to the local
	// daemon. Zero means unlimited.
	RequestsPerSecond float64
}

// OllamaProvider serves self-hosted models through /api/generate.
type OllamaProvider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultOllamaTimeout
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &OllamaProvider{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
	}
}

func (p *OllamaProvider) Kind() Kind { return KindOllama }

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int64  `json:"prompt_eval_count"`
	EvalCount       int64  `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

type ollamaResult struct {
	resp *Response
	err  error
}

// Call runs the blocking HTTP exchange on its own goroutine so the caller
// can abandon it as soon as ctx is done.
func (p *OllamaProvider) Call(ctx context.Context, req Request) (*Response, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Provider: KindOllama, Model: req.Model, Err: fmt.Errorf("rate limit: %w", err)}
	}

	done := make(chan ollamaResult, 1)
	go func() {
		resp, err := p.generate(ctx, req)
		done <- ollamaResult{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, &ProviderError{Provider: KindOllama, Model: req.Model, Err: ctx.Err()}
	case r := <-done:
		return r.resp, r.err
	}
}

func (p *OllamaProvider) generate(ctx context.Context, req Request) (*Response, error) {
	prompt := req.Prompt
	if len(req.History) > 0 {
		var buf bytes.Buffer
		for _, m := range messagesFor(req) {
			fmt.Fprintf(&buf, "%s: %s\n\n", m.Role, m.Content)
		}
		prompt = buf.String()
	}

	body, err := json.Marshal(ollamaRequest{
		Model:   req.Model,
		Prompt:  prompt,
		System:  req.System,
		Stream:  false,
		Options: ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: KindOllama, Model: req.Model, Err: fmt.Errorf("api call: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: KindOllama, Model: req.Model, Err: fmt.Errorf("read response: %w", err)}
	}

	var out ollamaResponse
	if resp.StatusCode != http.StatusOK {
		msg := string(respBody)
		if json.Unmarshal(respBody, &out) == nil && out.Error != "" {
			msg = out.Error
		}
		return nil, &ProviderError{Provider: KindOllama, Model: req.Model, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &ProviderError{Provider: KindOllama, Model: req.Model, Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if out.Response == "" {
		return nil, &ProviderError{Provider: KindOllama, Model: req.Model, Err: errors.New("empty response content")}
	}

	return &Response{
		Text:  out.Response,
		Model: req.Model,
		Usage: resolveUsage(req, out.Response, out.PromptEvalCount, out.EvalCount),
	}, nil
}
