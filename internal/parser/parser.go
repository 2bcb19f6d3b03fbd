// Package parser turns a specialist's free-text answer into structured
// fields with one low-temperature extraction call. It never fails: when the
// call or the JSON is bad, the raw text lands in the primary field.
package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/counsel/internal/llm"
)

const (
	extractionTemperature = 0.1
	extractionMaxTokens   = 1500
)

var errNoProvider = errors.New("no extraction provider")

// Result carries the analysis plus the cost of producing it.
type Result struct {
	Analysis Analysis
	Usage    llm.Usage
	Model    string
	Fallback bool
}

type Parser struct {
	provider llm.Provider
	model    string
	logger   *slog.Logger
}

// New builds a parser. A nil provider makes every parse a fallback.
func New(provider llm.Provider, model string, logger *slog.Logger) *Parser {
	return &Parser{provider: provider, model: model, logger: logger}
}

func (p *Parser) Parse(ctx context.Context, s Schema, raw string) Result {
	a, usage, err := p.extract(ctx, s, raw)
	if err != nil {
		p.logger.Warn("structured extraction failed, using fallback",
			"agent", s.Agent,
			"error", err,
		)
		return Result{Analysis: s.Fallback(raw), Usage: usage, Model: p.model, Fallback: true}
	}
	p.logger.Debug("response parsed", "agent", s.Agent)
	return Result{Analysis: a, Usage: usage, Model: p.model}
}

func (p *Parser) extract(ctx context.Context, s Schema, raw string) (Analysis, llm.Usage, error) {
	if p.provider == nil {
		return Analysis{}, llm.Usage{}, errNoProvider
	}

	resp, err := p.provider.Call(ctx, llm.Request{
		Model:       p.model,
		System:      extractionSystemPrompt,
		Prompt:      extractionPrompt(s, raw),
		Temperature: extractionTemperature,
		MaxTokens:   extractionMaxTokens,
	})
	if err != nil {
		return Analysis{}, llm.Usage{}, fmt.Errorf("extraction call: %w", err)
	}

	var a Analysis
	if err := json.Unmarshal([]byte(stripFences(resp.Text)), &a); err != nil {
		return Analysis{}, resp.Usage, fmt.Errorf("parse extraction: %w", err)
	}

	a = s.project(a)
	if a.Confidence == "" {
		a.Confidence = DefaultConfidence
	}
	if strings.TrimSpace(s.PrimaryText(a)) == "" {
		s.setPrimary(&a, raw)
	}
	return a, resp.Usage, nil
}

// stripFences removes a surrounding Markdown code fence and a leading
// "json" language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	parts := strings.Split(s, "```")
	if len(parts) < 2 {
		return s
	}
	body := parts[1]
	body = strings.TrimPrefix(body, "json")
	return strings.TrimSpace(body)
}

var confidenceMarker = regexp.MustCompile(`(?i)confidence:\s*\**\s*((?:🟢|🟡|🟠|🔴)?\s*(?:very\s+)?(?:high|medium|low))`)

// confidenceFromText picks a "Confidence: X" marker out of raw text.
func confidenceFromText(raw string) string {
	m := confidenceMarker.FindStringSubmatch(raw)
	if m == nil {
		return DefaultConfidence
	}
	return strings.TrimSpace(m[1])
}
