package synthesis

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/counsel/internal/agents"
	"github.com/MikeSquared-Agency/counsel/internal/parser"
	"github.com/MikeSquared-Agency/counsel/internal/routing"
)

// confidence ranks, lowest first
var confidenceRanks = []struct {
	emoji string
	words []string
	label string
}{
	{"🔴", []string{"speculative", "very low"}, "🔴 Speculative"},
	{"🟠", []string{"low"}, "🟠 Low"},
	{"🟡", []string{"medium"}, "🟡 Medium"},
	{"🟢", []string{"high"}, "🟢 High"},
}

// confidenceRank prefers the emoji marker and only then looks at words.
// Unrecognised text ranks as medium.
func confidenceRank(text string) int {
	for i, r := range confidenceRanks {
		if strings.Contains(text, r.emoji) {
			return i
		}
	}
	lower := strings.ToLower(text)
	for i, r := range confidenceRanks {
		for _, w := range r.words {
			if strings.Contains(lower, w) {
				return i
			}
		}
	}
	return 2
}

// LowestConfidence returns the weakest confidence label among results.
// The synthesis may never claim more than this.
func LowestConfidence(results []*agents.Result) string {
	if len(results) == 0 {
		return confidenceRanks[0].label
	}
	lowest := len(confidenceRanks) - 1
	for _, r := range results {
		if rank := confidenceRank(r.ConfidenceText); rank < lowest {
			lowest = rank
		}
	}
	return confidenceRanks[lowest].label
}

func buildPrompt(in Input, lowest string) string {
	var sb strings.Builder
	if in.UserContext != "" {
		fmt.Fprintf(&sb, "USER CONTEXT:\n%s\n\n", in.UserContext)
	}
	fmt.Fprintf(&sb, "USER QUESTION:\n%s\n\n", in.Question)

	if len(in.Results) == 0 {
		sb.WriteString("SPECIALIST ANALYSES: none are available for this question.\n")
		sb.WriteString("Answer directly from the question and the user's context. Say plainly that your confidence is 🔴 Speculative because no specialist analysis backs it.\n\n")
	} else {
		sb.WriteString("SPECIALIST ANALYSES:\n")
		for _, r := range in.Results {
			writeSpecialist(&sb, r)
		}
		fmt.Fprintf(&sb, "LOWEST SPECIALIST CONFIDENCE: %s\nYour confidence must not exceed this level.\n\n", lowest)
	}

	if instr := in.Tone.Instructions(); in.Tone.State != "" && instr != "" {
		fmt.Fprintf(&sb, "TONE (user seems %s):\n%s\n\n", in.Tone.State, instr)
	}
	if in.Style != "" {
		fmt.Fprintf(&sb, "LENGTH:\n%s\n\n", in.Style.Instruction())
	}
	sb.WriteString("Synthesize one answer. Show where the specialists agree and disagree, reframe the real decision, and end with one question that helps the user decide.")
	return sb.String()
}

func writeSpecialist(sb *strings.Builder, r *agents.Result) {
	fmt.Fprintf(sb, "\n### %s (confidence: %s)\n", r.Agent.DisplayName(), r.ConfidenceText)
	a := r.Analysis
	fields := []struct{ name, value string }{
		{"Analysis", a.Analysis},
		{"Signal", a.Signal},
		{"Blindspot", a.Blindspot},
		{"Timing", a.Timing},
		{"Calculation", a.Calculation},
		{"Critical constraint", a.CriticalConstraint},
		{"Assumptions", a.Assumptions},
		{"Decision reframe", a.DecisionReframe},
		{"Framework", a.FrameworkApplied},
		{"Framework analysis", a.FrameworkAnalysis},
		{"Assumptions tested", a.AssumptionsTested},
		{"Strategic blindspot", a.StrategicBlindspot},
		{"Trade-offs", a.TradeOffs},
		{"For your situation", a.ForYourSituation},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(sb, "%s: %s\n", f.name, f.value)
		}
	}
	if s := a.Scenarios; s != nil && (s.Optimistic != "" || s.Realistic != "" || s.Pessimistic != "") {
		fmt.Fprintf(sb, "Scenarios: optimistic %s | realistic %s | pessimistic %s\n", s.Optimistic, s.Realistic, s.Pessimistic)
	}
	sb.WriteString("\n")
}

// perspectives orders the sections of the local fallback narrative.
var perspectives = []struct {
	agent   routing.Agent
	heading string
}{
	{routing.AgentMarketCompass, "Market Perspective"},
	{routing.AgentFinancialGuardian, "Financial Perspective"},
	{routing.AgentStrategyAnalyst, "Strategic Perspective"},
}

// FallbackNarrative stitches the specialists' primary fields together when
// the synthesis model cannot be reached.
func FallbackNarrative(results []*agents.Result) string {
	byAgent := make(map[routing.Agent]*agents.Result, len(results))
	for _, r := range results {
		byAgent[r.Agent] = r
	}
	parts := []string{"Based on the analysis:\n"}
	for _, p := range perspectives {
		r, ok := byAgent[p.agent]
		if !ok {
			continue
		}
		var text string
		if schema, ok := parser.SchemaFor(string(p.agent)); ok {
			text = schema.PrimaryText(r.Analysis)
		}
		if text == "" {
			text = "N/A"
		}
		parts = append(parts, fmt.Sprintf("\n**%s:**\n%s", p.heading, text))
	}
	return strings.Join(parts, "\n")
}

// apologyNarrative is returned when neither specialists nor the direct
// synthesis produced anything.
const apologyNarrative = "I wasn't able to put together a reliable answer to this question right now: none of the advisors could be reached. " +
	"Nothing here should be read as advice. Could you try again in a few minutes, or tell me more about what you're weighing so I can look at it from a different angle?"
