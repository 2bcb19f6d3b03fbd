package parser

import "encoding/json"

const DefaultConfidence = "🟡 Medium"

// Scenarios holds the Financial Guardian's three-case projection.
type Scenarios struct {
	Optimistic  string `json:"optimistic"`
	Realistic   string `json:"realistic"`
	Pessimistic string `json:"pessimistic"`
}

// Analysis is the structured form of one specialist answer. Each schema
// fills its own subset of fields; the rest stay empty and are omitted.
type Analysis struct {
	Confidence string `json:"confidence"`

	// Market Compass
	Analysis  string `json:"analysis,omitempty"`
	Signal    string `json:"signal,omitempty"`
	Blindspot string `json:"blindspot,omitempty"`
	Timing    string `json:"timing,omitempty"`
	Sources   string `json:"sources,omitempty"`

	// Financial Guardian
	Calculation        string     `json:"calculation,omitempty"`
	Scenarios          *Scenarios `json:"scenarios,omitempty"`
	CriticalConstraint string     `json:"critical_constraint,omitempty"`
	Assumptions        string     `json:"assumptions,omitempty"`

	// Strategy Analyst
	DecisionReframe    string `json:"decision_reframe,omitempty"`
	FrameworkApplied   string `json:"framework_applied,omitempty"`
	FrameworkAnalysis  string `json:"framework_analysis,omitempty"`
	AssumptionsTested  string `json:"assumptions_tested,omitempty"`
	StrategicBlindspot string `json:"strategic_blindspot,omitempty"`
	TradeOffs          string `json:"trade_offs,omitempty"`

	ForYourSituation string `json:"for_your_situation,omitempty"`
	QuestionBack     string `json:"question_back,omitempty"`
}

// fieldRefs maps a JSON field name to its slot in Analysis.
var fieldRefs = map[string]func(*Analysis) *string{
	"confidence":          func(a *Analysis) *string { return &a.Confidence },
	"analysis":            func(a *Analysis) *string { return &a.Analysis },
	"signal":              func(a *Analysis) *string { return &a.Signal },
	"blindspot":           func(a *Analysis) *string { return &a.Blindspot },
	"timing":              func(a *Analysis) *string { return &a.Timing },
	"sources":             func(a *Analysis) *string { return &a.Sources },
	"calculation":         func(a *Analysis) *string { return &a.Calculation },
	"critical_constraint": func(a *Analysis) *string { return &a.CriticalConstraint },
	"assumptions":         func(a *Analysis) *string { return &a.Assumptions },
	"decision_reframe":    func(a *Analysis) *string { return &a.DecisionReframe },
	"framework_applied":   func(a *Analysis) *string { return &a.FrameworkApplied },
	"framework_analysis":  func(a *Analysis) *string { return &a.FrameworkAnalysis },
	"assumptions_tested":  func(a *Analysis) *string { return &a.AssumptionsTested },
	"strategic_blindspot": func(a *Analysis) *string { return &a.StrategicBlindspot },
	"trade_offs":          func(a *Analysis) *string { return &a.TradeOffs },
	"for_your_situation":  func(a *Analysis) *string { return &a.ForYourSituation },
	"question_back":       func(a *Analysis) *string { return &a.QuestionBack },
}

// JSON renders the analysis for prompts and cache keys.
func (a Analysis) JSON() string {
	b, err := json.Marshal(a)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Field is one extractable field of a schema.
type Field struct {
	Name        string
	Description string
	Placeholder string
}

// Schema describes the fields extracted for one agent.
type Schema struct {
	Agent     string
	Title     string
	Primary   string
	Fields    []Field
	Scenarios bool
}

var (
	MarketSchema = Schema{
		Agent:   "market_compass",
		Title:   "Market Compass",
		Primary: "analysis",
		Fields: []Field{
			{"analysis", "Core market analysis/insight", "extracted text or empty string"},
			{"confidence", "Confidence level (look for 🟢/🟡/🟠/🔴 or High/Medium/Low)", "extracted confidence or '🟡 Medium'"},
			{"signal", "Market signal being discussed", "extracted signal or empty string"},
			{"for_your_situation", "User-specific implications", "extracted text or empty string"},
			{"blindspot", "What they might not see", "extracted text or empty string"},
			{"timing", "When this matters", "extracted text or empty string"},
			{"sources", "Research references or sources", "extracted text or empty string"},
			{"question_back", "Closing empowerment question", "extracted question or empty string"},
		},
	}

	FinancialSchema = Schema{
		Agent:   "financial_guardian",
		Title:   "Financial Guardian",
		Primary: "calculation",
		Fields: []Field{
			{"calculation", "The actual math/calculations with work shown", "extracted calculation or empty string"},
			{"confidence", "Confidence level (look for 🟢/🟡/🟠/🔴 or High/Medium/Low)", "extracted confidence or '🟡 Medium'"},
			{"critical_constraint", "What would kill this financially", "extracted constraint or empty string"},
			{"assumptions", "Key assumptions being made", "extracted assumptions or empty string"},
			{"for_your_situation", "User-specific implications", "extracted text or empty string"},
			{"question_back", "Closing financial question", "extracted question or empty string"},
		},
		Scenarios: true,
	}

	StrategySchema = Schema{
		Agent:   "strategy_analyst",
		Title:   "Strategy Analyst",
		Primary: "decision_reframe",
		Fields: []Field{
			{"decision_reframe", "What they're ACTUALLY deciding", "extracted reframe or empty string"},
			{"confidence", "Confidence level (look for 🟢/🟡/🟠/🔴 or High/Medium/Low)", "extracted confidence or '🟡 Medium'"},
			{"framework_applied", "Which strategic framework was used", "extracted framework or empty string"},
			{"framework_analysis", "Application of framework to their situation", "extracted analysis or empty string"},
			{"assumptions_tested", "Key assumptions and risks", "extracted assumptions or empty string"},
			{"strategic_blindspot", "What strategic angle they're missing", "extracted blindspot or empty string"},
			{"trade_offs", "What they're trading off", "extracted trade-offs or empty string"},
			{"for_your_situation", "User-specific implications", "extracted text or empty string"},
			{"question_back", "Closing strategic question", "extracted question or empty string"},
		},
	}
)

// SchemaFor looks up a schema by agent name.
func SchemaFor(agent string) (Schema, bool) {
	for _, s := range []Schema{MarketSchema, FinancialSchema, StrategySchema} {
		if s.Agent == agent {
			return s, true
		}
	}
	return Schema{}, false
}

// PrimaryText returns the schema's own primary field of a.
func (s Schema) PrimaryText(a Analysis) string {
	if ref, ok := fieldRefs[s.Primary]; ok {
		return *ref(&a)
	}
	return ""
}

func (s Schema) setPrimary(a *Analysis, text string) {
	if ref, ok := fieldRefs[s.Primary]; ok {
		*ref(a) = text
	}
}

// project keeps only the fields the schema lists. Keys that belong to
// another agent's schema are dropped.
func (s Schema) project(a Analysis) Analysis {
	out := Analysis{Confidence: a.Confidence}
	for _, f := range s.Fields {
		if ref, ok := fieldRefs[f.Name]; ok {
			*ref(&out) = *ref(&a)
		}
	}
	if s.Scenarios {
		out.Scenarios = a.Scenarios
		if out.Scenarios == nil {
			out.Scenarios = &Scenarios{}
		}
	}
	return out
}

// Fallback puts raw text in the primary field and defaults elsewhere.
func (s Schema) Fallback(raw string) Analysis {
	a := Analysis{Confidence: confidenceFromText(raw)}
	s.setPrimary(&a, raw)
	if s.Scenarios {
		a.Scenarios = &Scenarios{}
	}
	return a
}
