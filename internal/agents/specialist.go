// Package agents runs the specialist advisors. Each specialist turns a
// question into a structured analysis with one model call plus one
// extraction call, and the executor fans them out concurrently.
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/counsel/internal/cache"
	"github.com/MikeSquared-Agency/counsel/internal/classifier"
	"github.com/MikeSquared-Agency/counsel/internal/llm"
	"github.com/MikeSquared-Agency/counsel/internal/parser"
	"github.com/MikeSquared-Agency/counsel/internal/prompts"
	"github.com/MikeSquared-Agency/counsel/internal/routing"
)

// Input is what every specialist sees for one question.
type Input struct {
	Question       string
	UserContext    string
	Classification classifier.Classification
	Tone           classifier.ToneState
}

// Result is one specialist's answer. It is not modified after creation.
type Result struct {
	Agent          routing.Agent   `json:"agent_name"`
	Analysis       parser.Analysis `json:"structured_fields"`
	ConfidenceText string          `json:"confidence_marker_text"`
	SubType        string          `json:"question_type"`
	Framework      string          `json:"framework_suggested,omitempty"`
	Model          string          `json:"model_used"`
	Provider       llm.Kind        `json:"provider"`
	Usage          llm.Usage       `json:"tokens"`
	Cost           float64         `json:"cost"`
	Elapsed        time.Duration   `json:"elapsed_time"`
	Success        bool            `json:"success"`
	Error          string          `json:"error,omitempty"`
	FromCache      bool            `json:"from_cache"`
	ParseFallback  bool            `json:"parse_fallback,omitempty"`
}

// Resolver hands out providers by kind. *llm.Registry satisfies it.
type Resolver interface {
	Get(kind llm.Kind) (llm.Provider, error)
}

type modelOutput struct {
	Text  string    `json:"text"`
	Usage llm.Usage `json:"usage"`
}

type Specialist struct {
	profile   Profile
	providers Resolver
	models    *routing.ModelRouter
	parser    *parser.Parser
	prompts   *prompts.Loader
	cache     cache.Store
	logger    *slog.Logger
}

func NewSpecialist(
	profile Profile,
	providers Resolver,
	models *routing.ModelRouter,
	p *parser.Parser,
	loader *prompts.Loader,
	store cache.Store,
	logger *slog.Logger,
) *Specialist {
	return &Specialist{
		profile:   profile,
		providers: providers,
		models:    models,
		parser:    p,
		prompts:   loader,
		cache:     store,
		logger:    logger.With("agent", string(profile.Agent)),
	}
}

func (s *Specialist) Agent() routing.Agent { return s.profile.Agent }

// Analyze returns a result or an error; a cached answer is returned with
// FromCache set and its original token counts.
func (s *Specialist) Analyze(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	ns := cache.NamespaceAgentResponse.Sub(string(s.profile.Agent))
	key := cache.Hash(in.Question, in.UserContext)

	var cached Result
	if s.cache.GetJSON(ctx, ns, key, &cached) {
		s.logger.Info("using cached specialist response")
		cached.FromCache = true
		cached.Elapsed = time.Since(start)
		return &cached, nil
	}

	sub := s.profile.Classify(in.Question)
	choice := s.models.SelectFor(s.profile.Agent, in.Classification, in.Tone.State)
	provider, err := s.providers.Get(choice.Provider)
	if err != nil {
		return nil, fmt.Errorf("resolve provider for %s: %w", choice.Model, err)
	}

	system := s.systemPrompt(ctx, provider.Kind())
	prompt := s.buildPrompt(in, sub)

	out, fromModelCache, err := s.call(ctx, provider, llm.Request{
		Model:       choice.Model,
		System:      system,
		Prompt:      prompt,
		Temperature: s.profile.Temperature,
		MaxTokens:   s.profile.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	parsed := s.parser.Parse(ctx, s.profile.Schema, out.Text)
	cost := s.models.Cost(choice.Model, out.Usage) + s.models.Cost(parsed.Model, parsed.Usage)

	res := &Result{
		Agent:          s.profile.Agent,
		Analysis:       parsed.Analysis,
		ConfidenceText: parsed.Analysis.Confidence,
		SubType:        sub.Name,
		Framework:      sub.Framework,
		Model:          choice.Model,
		Provider:       choice.Provider,
		Usage:          out.Usage,
		Cost:           cost,
		Elapsed:        time.Since(start),
		Success:        true,
		FromCache:      fromModelCache,
		ParseFallback:  parsed.Fallback,
	}
	s.cache.SetJSON(ctx, ns, key, res, 0)

	s.logger.Info("specialist analysis complete",
		"type", sub.Name,
		"model", choice.Model,
		"provider", choice.Provider,
		"tokens", out.Usage.Total(),
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res, nil
}

// call consults the model-output cache before invoking the provider.
func (s *Specialist) call(ctx context.Context, p llm.Provider, req llm.Request) (modelOutput, bool, error) {
	ns := cache.NamespaceModelOutput.Sub(req.Model)
	key := cache.Hash(req.System, req.Prompt)

	var out modelOutput
	if s.cache.GetJSON(ctx, ns, key, &out) && out.Text != "" {
		return out, true, nil
	}

	resp, err := p.Call(ctx, req)
	if err != nil {
		return modelOutput{}, false, fmt.Errorf("%s call: %w", s.profile.Agent, err)
	}
	out = modelOutput{Text: resp.Text, Usage: resp.Usage}
	s.cache.SetJSON(ctx, ns, key, out, 0)
	return out, false, nil
}

// systemPrompt uses the condensed variant for local models.
func (s *Specialist) systemPrompt(ctx context.Context, kind llm.Kind) string {
	if kind == llm.KindOllama {
		if text := s.prompts.Get(ctx, prompts.Condensed(s.profile.Prompt)); text != "" {
			return text
		}
	}
	return s.prompts.Get(ctx, s.profile.Prompt)
}

func (s *Specialist) buildPrompt(in Input, sub Subtype) string {
	c := in.Classification
	complexity, urgency := string(c.Complexity), string(c.Urgency)
	if complexity == "" {
		complexity = string(classifier.ComplexityMedium)
	}
	if urgency == "" {
		urgency = string(classifier.UrgencyRoutine)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "USER CONTEXT:\n%s\n\n", in.UserContext)
	fmt.Fprintf(&sb, "QUESTION TYPE: %s\n", sub.Name)
	if sub.Framework != "" {
		fmt.Fprintf(&sb, "SUGGESTED FRAMEWORK: %s\n", sub.Framework)
	}
	fmt.Fprintf(&sb, "COMPLEXITY: %s\n", complexity)
	fmt.Fprintf(&sb, "URGENCY: %s\n\n", urgency)
	fmt.Fprintf(&sb, "USER QUESTION:\n%s\n\n", in.Question)
	sb.WriteString(s.profile.Instructions)
	return sb.String()
}

// NewSpecialists builds one specialist per default profile.
func NewSpecialists(
	providers Resolver,
	models *routing.ModelRouter,
	p *parser.Parser,
	loader *prompts.Loader,
	store cache.Store,
	logger *slog.Logger,
) map[routing.Agent]Analyzer {
	out := make(map[routing.Agent]Analyzer)
	for _, profile := range DefaultProfiles() {
		out[profile.Agent] = NewSpecialist(profile, providers, models, p, loader, store, logger)
	}
	return out
}
