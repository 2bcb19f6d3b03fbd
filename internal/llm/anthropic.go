package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicTimeout = 120 * time.Second

// AnthropicProvider serves Claude models through the Messages API.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider builds a provider. baseURL may be empty to use the
// public endpoint. Retries are disabled; a failed call fails fast.
func NewAnthropicProvider(apiKey, baseURL string) *AnthropicProvider {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithMaxRetries(0),
		anthropicoption.WithRequestTimeout(defaultAnthropicTimeout),
	}
	if baseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...)}
}

func (p *AnthropicProvider) Kind() Kind { return KindAnthropic }

func (p *AnthropicProvider) params(req Request) anthropic.MessageNewParams {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1500
	}
	var msgs []anthropic.MessageParam
	for _, m := range messagesFor(req) {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   maxTokens,
		Messages:    msgs,
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params
}

// Call sends one non-streaming Messages request.
func (p *AnthropicProvider) Call(ctx context.Context, req Request) (*Response, error) {
	msg, err := p.client.Messages.New(ctx, p.params(req))
	if err != nil {
		return nil, p.wrap(req.Model, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, p.wrap(req.Model, errors.New("empty response content"))
	}

	text := sb.String()
	return &Response{
		Text:  text,
		Model: req.Model,
		Usage: resolveUsage(req, text, msg.Usage.InputTokens, msg.Usage.OutputTokens),
	}, nil
}

// Stream sends a streaming Messages request, forwarding each text delta.
func (p *AnthropicProvider) Stream(ctx context.Context, req Request, onDelta func(string)) (*Response, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.params(req))
	defer stream.Close()

	var (
		sb                    strings.Builder
		inputTokens, outputTk int64
	)
	for stream.Next() {
		switch ev := stream.Current().AsAny().(type) {
		case anthropic.MessageStartEvent:
			inputTokens = ev.Message.Usage.InputTokens
		case anthropic.ContentBlockDeltaEvent:
			if d, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
				sb.WriteString(d.Text)
				if onDelta != nil {
					onDelta(d.Text)
				}
			}
		case anthropic.MessageDeltaEvent:
			outputTk = ev.Usage.OutputTokens
		}
	}
	if err := stream.Err(); err != nil {
		return nil, p.wrap(req.Model, fmt.Errorf("stream: %w", err))
	}
	if sb.Len() == 0 {
		return nil, p.wrap(req.Model, errors.New("empty stream"))
	}

	text := sb.String()
	return &Response{
		Text:  text,
		Model: req.Model,
		Usage: resolveUsage(req, text, inputTokens, outputTk),
	}, nil
}

func (p *AnthropicProvider) wrap(model string, err error) error {
	pe := &ProviderError{Provider: KindAnthropic, Model: model, Err: err}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		pe.StatusCode = apiErr.StatusCode
	}
	return pe
}
