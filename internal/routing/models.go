package routing

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/MikeSquared-Agency/counsel/internal/classifier"
	"github.com/MikeSquared-Agency/counsel/internal/llm"
)

const (
	ModelClaudeSonnet = "claude-sonnet-4-20250514"
	ModelClaudeOpus   = "claude-opus-4-20250514"
	ModelGeminiFlash  = "gemini-2.0-flash-exp"
	ModelGeminiPro    = "gemini-2.0-pro"
	ModelOllama       = "llama3.1:8b"
)

// ModelSpec is one entry of the model catalog. Provider is fixed here so
// dispatch is a lookup on the tag, never on the model name.
type ModelSpec struct {
	Name               string   `yaml:"name" json:"name"`
	Provider           llm.Kind `yaml:"provider" json:"provider"`
	ReasoningQuality   int      `yaml:"reasoning_quality" json:"reasoning_quality"`
	ResearchCapability int      `yaml:"research_capability" json:"research_capability"`
	Speed              int      `yaml:"speed" json:"speed"`
	CostPer1K          float64  `yaml:"cost_per_1k_tokens" json:"cost_per_1k_tokens"`
	MaxTokens          int      `yaml:"max_tokens" json:"max_tokens"`
	Temperature        float64  `yaml:"temperature" json:"temperature"`
	BestFor            []string `yaml:"best_for" json:"best_for"`
}

func DefaultCatalog() []ModelSpec {
	return []ModelSpec{
		{
			Name: ModelClaudeSonnet, Provider: llm.KindAnthropic,
			ReasoningQuality: 9, ResearchCapability: 6, Speed: 7, CostPer1K: 0.009,
			MaxTokens: 2000, Temperature: 0.7,
			BestFor: []string{"strategic_decisions", "people_problems", "nuanced_thinking", "synthesis", "default_choice"},
		},
		{
			Name: ModelClaudeOpus, Provider: llm.KindAnthropic,
			ReasoningQuality: 10, ResearchCapability: 7, Speed: 5, CostPer1K: 0.045,
			MaxTokens: 3000, Temperature: 0.8,
			BestFor: []string{"high_stakes_decisions", "complex_reasoning", "ethical_dilemmas", "novel_problems", "synthesis_of_contradictions"},
		},
		{
			Name: ModelGeminiFlash, Provider: llm.KindGemini,
			ReasoningQuality: 6, ResearchCapability: 5, Speed: 10, CostPer1K: 0.0002,
			MaxTokens: 1000, Temperature: 0.5,
			BestFor: []string{"simple_queries", "quick_facts", "benchmarks", "standard_timelines", "cost_optimization"},
		},
		{
			Name: ModelGeminiPro, Provider: llm.KindGemini,
			ReasoningQuality: 8, ResearchCapability: 10, Speed: 6, CostPer1K: 0.003,
			MaxTokens: 2500, Temperature: 0.6,
			BestFor: []string{"market_research", "competitor_analysis", "web_search_queries", "data_gathering", "trend_analysis"},
		},
		{
			Name: ModelOllama, Provider: llm.KindOllama,
			ReasoningQuality: 5, ResearchCapability: 3, Speed: 6, CostPer1K: 0,
			MaxTokens: 1500, Temperature: 0.7,
			BestFor: []string{"local_inference", "private_data"},
		},
	}
}

// Criteria is the snapshot of inputs a model choice was made from.
type Criteria struct {
	Type           classifier.QuestionType   `json:"question_type"`
	Domains        []classifier.Domain       `json:"domains"`
	Urgency        classifier.Urgency        `json:"urgency"`
	Complexity     classifier.Complexity     `json:"complexity"`
	EmotionalState classifier.EmotionalState `json:"emotional_state"`
}

func (c Criteria) hasDomain(d classifier.Domain) bool {
	for _, x := range c.Domains {
		if x == d {
			return true
		}
	}
	return false
}

type ModelChoice struct {
	Model            string   `json:"model_name"`
	Provider         llm.Kind `json:"provider"`
	Criteria         Criteria `json:"selection_criteria"`
	EstimatedCost    float64  `json:"estimated_cost"`
	EstimatedLatency float64  `json:"estimated_latency"`
	Reasoning        string   `json:"reasoning"`
	MaxTokens        int      `json:"max_tokens"`
	Temperature      float64  `json:"temperature"`
}

// Availability reports which provider kinds are configured.
// *llm.Registry satisfies it.
type Availability interface {
	Has(kind llm.Kind) bool
}

type ModelRouter struct {
	catalog      []ModelSpec
	byName       map[string]ModelSpec
	available    Availability
	defaultModel string
	pins         map[Agent]string
	logger       *slog.Logger
}

// NewModelRouter builds a router over catalog. A nil availability treats
// every provider as configured.
func NewModelRouter(catalog []ModelSpec, available Availability, logger *slog.Logger) *ModelRouter {
	if len(catalog) == 0 {
		catalog = DefaultCatalog()
	}
	byName := make(map[string]ModelSpec, len(catalog))
	for _, m := range catalog {
		byName[m.Name] = m
	}
	return &ModelRouter{
		catalog:      catalog,
		byName:       byName,
		available:    available,
		defaultModel: ModelClaudeSonnet,
		pins:         make(map[Agent]string),
		logger:       logger,
	}
}

// Pin forces an agent onto a specific catalog model.
func (r *ModelRouter) Pin(agent Agent, model string) error {
	if _, ok := r.byName[model]; !ok {
		return fmt.Errorf("pin %s: unknown model %q", agent, model)
	}
	r.pins[agent] = model
	return nil
}

func (r *ModelRouter) Spec(name string) (ModelSpec, bool) {
	m, ok := r.byName[name]
	return m, ok
}

func (r *ModelRouter) isAvailable(name string) bool {
	m, ok := r.byName[name]
	if !ok {
		return false
	}
	return r.available == nil || r.available.Has(m.Provider)
}

// Select runs the decision tree for a classification and tone.
func (r *ModelRouter) Select(c classifier.Classification, tone classifier.EmotionalState) ModelChoice {
	crit := Criteria{
		Type:           c.Type,
		Domains:        c.Domains,
		Urgency:        c.Urgency,
		Complexity:     c.Complexity,
		EmotionalState: tone,
	}
	return r.choose(selectModel(crit), crit, "")
}

// SelectFor honours a per-agent pin before falling back to Select.
func (r *ModelRouter) SelectFor(agent Agent, c classifier.Classification, tone classifier.EmotionalState) ModelChoice {
	pinned, ok := r.pins[agent]
	if !ok {
		return r.Select(c, tone)
	}
	crit := Criteria{Type: c.Type, Domains: c.Domains, Urgency: c.Urgency, Complexity: c.Complexity, EmotionalState: tone}
	return r.choose(pinned, crit, fmt.Sprintf("Pinned by configuration for %s", agent))
}

// Named returns a choice for an explicitly configured model, such as the
// synthesis or parser model.
func (r *ModelRouter) Named(name string, c classifier.Classification) ModelChoice {
	crit := Criteria{Type: c.Type, Domains: c.Domains, Urgency: c.Urgency, Complexity: c.Complexity}
	if _, ok := r.byName[name]; !ok {
		name = r.defaultModel
	}
	return r.choose(name, crit, "Configured model")
}

func (r *ModelRouter) choose(name string, crit Criteria, override string) ModelChoice {
	var note string
	if !r.isAvailable(name) {
		from := name
		name = r.fallbackModel(name)
		note = fmt.Sprintf("Fallback from %s: provider not configured", from)
		if r.logger != nil {
			r.logger.Warn("model provider unavailable, falling back", "wanted", from, "using", name)
		}
	}

	spec, ok := r.byName[name]
	if !ok {
		spec = r.byName[r.defaultModel]
	}
	cost, latency := estimatePerformance(spec, crit.Complexity)

	reasoning := override
	if reasoning == "" {
		reasoning = modelReasoning(spec, crit)
	}
	if note != "" {
		reasoning += " | " + note
	}

	return ModelChoice{
		Model:            spec.Name,
		Provider:         spec.Provider,
		Criteria:         crit,
		EstimatedCost:    cost,
		EstimatedLatency: latency,
		Reasoning:        reasoning,
		MaxTokens:        spec.MaxTokens,
		Temperature:      spec.Temperature,
	}
}

// fallbackModel prefers the default model, then the first available entry
// of the catalog. When nothing is available the original is kept and the
// call will fail with llm.ErrNoProvider.
func (r *ModelRouter) fallbackModel(wanted string) string {
	if r.isAvailable(r.defaultModel) {
		return r.defaultModel
	}
	for _, m := range r.catalog {
		if r.isAvailable(m.Name) {
			return m.Name
		}
	}
	return wanted
}

func selectModel(c Criteria) string {
	switch {
	case c.hasDomain(classifier.DomainMarket) && c.Type == classifier.TypeExploration:
		return ModelGeminiPro
	case c.Complexity == classifier.ComplexitySimple && c.Urgency == classifier.UrgencyRoutine:
		return ModelGeminiFlash
	case c.Urgency == classifier.UrgencyCrisis || c.Urgency == classifier.UrgencyUrgent:
		if c.Complexity == classifier.ComplexityComplex {
			return ModelClaudeOpus
		}
		return ModelClaudeSonnet
	case c.Complexity == classifier.ComplexityComplex && len(c.Domains) >= 3:
		return ModelClaudeOpus
	case c.hasDomain(classifier.DomainPeople):
		if c.Complexity == classifier.ComplexityComplex || c.EmotionalState == classifier.StateAnxiety {
			return ModelClaudeOpus
		}
		return ModelClaudeSonnet
	case c.hasDomain(classifier.DomainFinance) && c.Type == classifier.TypeDecision:
		return ModelClaudeSonnet
	case c.hasDomain(classifier.DomainStrategy) &&
		(c.Complexity == classifier.ComplexityMedium || c.Complexity == classifier.ComplexityComplex):
		if c.Complexity == classifier.ComplexityComplex {
			return ModelClaudeOpus
		}
		return ModelClaudeSonnet
	case c.hasDomain(classifier.DomainExecution):
		return ModelClaudeSonnet
	default:
		return ModelClaudeSonnet
	}
}

var (
	tokenEstimates = map[classifier.Complexity]float64{
		classifier.ComplexitySimple:  500,
		classifier.ComplexityMedium:  1500,
		classifier.ComplexityComplex: 3000,
	}
	latencyMultipliers = map[classifier.Complexity]float64{
		classifier.ComplexitySimple:  0.7,
		classifier.ComplexityMedium:  1.0,
		classifier.ComplexityComplex: 1.5,
	}
)

// estimatePerformance returns an estimated cost in USD and latency in
// seconds. Both are heuristics, not measurements.
func estimatePerformance(spec ModelSpec, complexity classifier.Complexity) (float64, float64) {
	tokens, ok := tokenEstimates[complexity]
	if !ok {
		tokens = 1500
	}
	mult, ok := latencyMultipliers[complexity]
	if !ok {
		mult = 1.0
	}
	cost := tokens / 1000 * spec.CostPer1K
	latency := float64(12-spec.Speed) * mult
	return roundTo(cost, 6), roundTo(latency, 1)
}

func modelReasoning(spec ModelSpec, c Criteria) string {
	var reasons []string
	switch spec.Name {
	case ModelClaudeOpus:
		reasons = append(reasons, "Selected Claude Opus for highest reasoning quality")
	case ModelGeminiPro:
		reasons = append(reasons, "Selected Gemini Pro for superior research capability")
	case ModelGeminiFlash:
		reasons = append(reasons, "Selected Gemini Flash for speed and cost efficiency")
	default:
		reasons = append(reasons, "Selected Claude Sonnet as optimal all-rounder")
	}
	if c.Complexity == classifier.ComplexityComplex {
		reasons = append(reasons, "Complex question requires advanced reasoning")
	}
	if len(c.Domains) >= 3 {
		reasons = append(reasons, fmt.Sprintf("Multi-domain question (%d domains) needs synthesis", len(c.Domains)))
	}
	if c.Urgency == classifier.UrgencyCrisis || c.Urgency == classifier.UrgencyUrgent {
		u := string(c.Urgency)
		reasons = append(reasons, strings.ToUpper(u[:1])+u[1:]+" urgency prioritizes response time")
	}
	if c.hasDomain(classifier.DomainPeople) {
		reasons = append(reasons, "People/organizational question needs psychological nuance")
	}
	if len(spec.BestFor) > 0 {
		n := min(2, len(spec.BestFor))
		reasons = append(reasons, "Best for: "+strings.Join(spec.BestFor[:n], ", "))
	}
	return strings.Join(reasons, " | ")
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
