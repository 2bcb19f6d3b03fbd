package agents

import (
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/counsel/internal/parser"
	"github.com/MikeSquared-Agency/counsel/internal/prompts"
	"github.com/MikeSquared-Agency/counsel/internal/routing"
)

const specialistMaxTokens = 1500

// Profile is everything that distinguishes one specialist from another.
type Profile struct {
	Agent        routing.Agent
	Prompt       string
	Schema       parser.Schema
	Temperature  float64
	MaxTokens    int
	Subtypes     []Subtype
	Default      Subtype
	Instructions string
}

// Subtype is a finer question category inside one specialist's domain.
// Framework is only set for the strategy analyst.
type Subtype struct {
	Name      string
	Framework string
	Keywords  []string
}

// Classify returns the first subtype with a matching keyword.
func (p Profile) Classify(question string) Subtype {
	q := strings.ToLower(question)
	for _, st := range p.Subtypes {
		for _, kw := range st.Keywords {
			if keywordMatch(q, kw) {
				return st
			}
		}
	}
	return p.Default
}

var shortKeywords = map[string]*regexp.Regexp{}

func init() {
	for _, p := range DefaultProfiles() {
		for _, st := range p.Subtypes {
			for _, kw := range st.Keywords {
				if len(kw) <= 3 {
					shortKeywords[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
				}
			}
		}
	}
}

// keywordMatch uses substring matching, except for keywords of three
// characters or fewer which must stand alone ("or" never matches "for").
func keywordMatch(text, kw string) bool {
	if re, ok := shortKeywords[kw]; ok {
		return re.MatchString(text)
	}
	if len(kw) <= 3 {
		return regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`).MatchString(text)
	}
	return strings.Contains(text, kw)
}

func MarketProfile() Profile {
	return Profile{
		Agent:       routing.AgentMarketCompass,
		Prompt:      prompts.MarketCompass,
		Schema:      parser.MarketSchema,
		Temperature: 0.7,
		MaxTokens:   specialistMaxTokens,
		Subtypes: []Subtype{
			{Name: "market_data", Keywords: []string{"market size", "tam", "market value", "industry size", "benchmark", "average", "typical", "industry standard"}},
			{Name: "competitive_intelligence", Keywords: []string{"competitor", "competition", "rival", "competing", "what are they doing", "their strategy", "competitive"}},
			{Name: "signal_interpretation", Keywords: []string{"trend", "signal", "emerging", "shift", "changing", "is this real", "should i worry", "threat", "opportunity"}},
		},
		Default: Subtype{Name: "market_strategy"},
		Instructions: `Provide Market Compass analysis following the framework.
Identify market signals, competitive threats, and opportunities.
Include confidence marking and sources where applicable.`,
	}
}

func FinancialProfile() Profile {
	return Profile{
		Agent:       routing.AgentFinancialGuardian,
		Prompt:      prompts.FinancialGuardian,
		Schema:      parser.FinancialSchema,
		Temperature: 0.3,
		MaxTokens:   specialistMaxTokens,
		Subtypes: []Subtype{
			{Name: "calculation", Keywords: []string{"calculate", "compute", "what is", "how much", "cost", "price", "revenue", "profit"}},
			{Name: "scenario", Keywords: []string{"what if", "scenario", "best case", "worst case", "if we", "suppose", "assuming"}},
			{Name: "unit_economics", Keywords: []string{"cac", "ltv", "customer acquisition", "lifetime value", "payback", "unit economics", "margin", "per customer"}},
			{Name: "runway", Keywords: []string{"runway", "burn rate", "how long", "when will we run out", "cash flow", "burn"}},
			{Name: "roi", Keywords: []string{"roi", "return on investment", "worth it", "payback period", "break even"}},
		},
		Default: Subtype{Name: "calculation"},
		Instructions: `Provide Financial Guardian analysis following the framework.
Show your work for all calculations.
Provide scenario ranges (best/realistic/worst).
Identify critical constraints.`,
	}
}

func StrategyProfile() Profile {
	return Profile{
		Agent:       routing.AgentStrategyAnalyst,
		Prompt:      prompts.StrategyAnalyst,
		Schema:      parser.StrategySchema,
		Temperature: 0.3,
		MaxTokens:   specialistMaxTokens,
		Subtypes: []Subtype{
			{Name: "competitive_dynamics", Framework: "porters_five_forces", Keywords: []string{"competitive", "competition", "rivals", "barriers to entry", "industry structure", "threat of"}},
			{Name: "differentiation", Framework: "blue_ocean", Keywords: []string{"differentiate", "unique", "stand out", "value innovation", "blue ocean", "uncontested"}},
			{Name: "market_entry", Framework: "playing_to_win", Keywords: []string{"enter market", "new market", "expand to", "where to play", "target market"}},
			{Name: "positioning", Framework: "positioning", Keywords: []string{"position", "messaging", "brand", "perception", "how we're seen"}},
			{Name: "trade_offs", Framework: "strategic_tradeoffs", Keywords: []string{"or", "versus", "vs", "choose between", "trade-off", "should we", "which option"}},
		},
		Default: Subtype{Name: "strategic_decision", Framework: "playing_to_win"},
		Instructions: `Provide Strategy Analyst analysis following the framework.
Reframe the decision to reveal what they're REALLY choosing.
Apply the most relevant strategic framework.
Test key assumptions and identify trade-offs.`,
	}
}

// DefaultProfiles returns the three implemented specialists.
func DefaultProfiles() []Profile {
	return []Profile{MarketProfile(), FinancialProfile(), StrategyProfile()}
}
