// Package synthesis combines the specialists' structured analyses into the
// single narrative the user reads.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/MikeSquared-Agency/counsel/internal/agents"
	"github.com/MikeSquared-Agency/counsel/internal/cache"
	"github.com/MikeSquared-Agency/counsel/internal/classifier"
	"github.com/MikeSquared-Agency/counsel/internal/llm"
	"github.com/MikeSquared-Agency/counsel/internal/prompts"
	"github.com/MikeSquared-Agency/counsel/internal/routing"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 2000
)

// Input is what the synthesizer sees. Results holds only the successful
// specialists and may be empty.
type Input struct {
	Question       string
	UserContext    string
	Classification classifier.Classification
	Tone           classifier.ToneState
	Style          classifier.ConversationStyle
	History        []classifier.Turn
	Results        []*agents.Result
}

type Result struct {
	Narrative        string        `json:"narrative"`
	Model            string        `json:"model_used"`
	Provider         llm.Kind      `json:"provider"`
	Usage            llm.Usage     `json:"tokens"`
	Cost             float64       `json:"cost"`
	Elapsed          time.Duration `json:"elapsed_time"`
	FromCache        bool          `json:"from_cache"`
	Degraded         bool          `json:"degraded"`
	Fallback         bool          `json:"fallback,omitempty"`
	LowestConfidence string        `json:"lowest_specialist_confidence"`
	Error            string        `json:"error,omitempty"`
}

type Synthesizer struct {
	providers   agents.Resolver
	models      *routing.ModelRouter
	prompts     *prompts.Loader
	cache       cache.Store
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// New returns a synthesizer calling model; an empty model uses the router's default.
func New(
	providers agents.Resolver,
	models *routing.ModelRouter,
	loader *prompts.Loader,
	store cache.Store,
	model string,
	logger *slog.Logger,
) *Synthesizer {
	return &Synthesizer{
		providers:   providers,
		models:      models,
		prompts:     loader,
		cache:       store,
		model:       model,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		logger:      logger,
	}
}

// Synthesize never fails. A model error yields the stitched fallback
// narrative, or a fixed apology when there were no specialists to stitch.
// onChunk, if set, receives the narrative as it is produced.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input, onChunk func(string)) Result {
	start := time.Now()
	direct := len(in.Results) == 0
	lowest := LowestConfidence(in.Results)
	key := cacheKey(in)

	var cached Result
	if s.cache.GetJSON(ctx, cache.NamespaceSynthesis, key, &cached) && cached.Narrative != "" {
		s.logger.Info("using cached synthesis")
		cached.FromCache = true
		cached.Elapsed = time.Since(start)
		emit(onChunk, cached.Narrative)
		return cached
	}

	choice := s.models.Named(s.model, in.Classification)
	res := Result{
		Model:            choice.Model,
		Provider:         choice.Provider,
		Degraded:         direct,
		LowestConfidence: lowest,
	}

	streamed := false
	chunk := func(text string) {
		streamed = true
		emit(onChunk, text)
	}
	resp, err := s.generate(ctx, choice, in, lowest, chunk)
	if err != nil {
		s.logger.Error("synthesis failed, using fallback", "error", err, "direct", direct)
		res.Fallback = true
		res.Error = err.Error()
		if direct {
			res.Narrative = apologyNarrative
		} else {
			res.Narrative = FallbackNarrative(in.Results)
		}
		if !streamed {
			emit(onChunk, res.Narrative)
		}
		res.Elapsed = time.Since(start)
		return res
	}

	res.Narrative = resp.Text
	res.Usage = resp.Usage
	res.Cost = s.models.Cost(choice.Model, resp.Usage)
	res.Elapsed = time.Since(start)
	s.cache.SetJSON(ctx, cache.NamespaceSynthesis, key, res, 0)

	s.logger.Info("synthesis complete",
		"model", res.Model,
		"specialists", len(in.Results),
		"direct", direct,
		"tokens", res.Usage.Total(),
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res
}

func (s *Synthesizer) generate(ctx context.Context, choice routing.ModelChoice, in Input, lowest string, onChunk func(string)) (*llm.Response, error) {
	provider, err := s.providers.Get(choice.Provider)
	if err != nil {
		return nil, fmt.Errorf("resolve synthesis provider: %w", err)
	}

	name := prompts.ChiefOfStaff
	if provider.Kind() == llm.KindOllama {
		name = prompts.Condensed(name)
	}
	req := llm.Request{
		Model:       choice.Model,
		System:      s.prompts.Get(ctx, name),
		Prompt:      buildPrompt(in, lowest),
		History:     historyMessages(in.History),
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}

	var resp *llm.Response
	if st, ok := provider.(llm.Streamer); ok && onChunk != nil {
		resp, err = st.Stream(ctx, req, onChunk)
	} else {
		resp, err = provider.Call(ctx, req)
		if err == nil {
			onChunk(resp.Text)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("synthesis call: %w", err)
	}
	if resp.Text == "" {
		return nil, fmt.Errorf("synthesis call: empty response from %s", choice.Model)
	}
	return resp, nil
}

// cacheKey covers everything that shapes the narrative. Specialist outputs
// are sorted by agent so completion order never changes the key.
func cacheKey(in Input) string {
	sorted := make([]*agents.Result, len(in.Results))
	copy(sorted, in.Results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Agent < sorted[j].Agent })

	parts := []string{in.Question, in.UserContext, string(in.Tone.State), string(in.Style)}
	for _, r := range sorted {
		parts = append(parts, string(r.Agent)+"="+r.Analysis.JSON())
	}
	return cache.Hash(parts...)
}

func historyMessages(turns []classifier.Turn) []llm.Message {
	if len(turns) == 0 {
		return nil
	}
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, llm.Message{Role: t.Role, Content: t.Content})
	}
	return out
}

func emit(fn func(string), text string) {
	if fn != nil && text != "" {
		fn(text)
	}
}
