package llm

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultGeminiBaseURL is Google's OpenAI-compatible endpoint.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// GeminiProvider serves Gemini models through the OpenAI-compatible
// chat completions API.
type GeminiProvider struct {
	client openai.Client
}

func NewGeminiProvider(apiKey, baseURL string) *GeminiProvider {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	return &GeminiProvider{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
			option.WithRequestTimeout(120*time.Second),
		),
	}
}

func (p *GeminiProvider) Kind() Kind { return KindGemini }

func (p *GeminiProvider) Call(ctx context.Context, req Request) (*Response, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range messagesFor(req) {
		if m.Role == "assistant" {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.wrap(req.Model, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, p.wrap(req.Model, errors.New("empty response content"))
	}

	text := resp.Choices[0].Message.Content
	return &Response{
		Text:  text,
		Model: req.Model,
		Usage: resolveUsage(req, text, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}, nil
}

func (p *GeminiProvider) wrap(model string, err error) error {
	pe := &ProviderError{Provider: KindGemini, Model: model, Err: err}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		pe.StatusCode = apiErr.StatusCode
	}
	return pe
}
