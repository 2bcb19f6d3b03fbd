// Package quality scores a synthesized narrative before delivery: five
// boolean gates plus a heuristic confidence marker.
package quality

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/counsel/internal/classifier"
)

// DefaultTimeLimit is the ceiling for the within_time_limit gate.
const DefaultTimeLimit = 15 * time.Second

// Gate names, in evaluation order.
const (
	GateContext     = "understands_context"
	GateRelevance   = "addresses_question"
	GateTime        = "within_time_limit"
	GateReasoning   = "includes_reasoning"
	GateEmpowerment = "empowers_user"
)

var gateOrder = []string{GateContext, GateRelevance, GateTime, GateReasoning, GateEmpowerment}

// Check is the outcome of one gate run. Passed is the AND of Checks and
// FailureReasons lists exactly the gates that came back false.
type Check struct {
	Passed          bool            `json:"overall_passed"`
	Checks          map[string]bool `json:"checks"`
	FailureReasons  []string        `json:"failure_reasons"`
	TimeLimitExempt bool            `json:"time_limit_exempt,omitempty"`
}

// Input is everything the gates look at.
type Input struct {
	Question    string
	Narrative   string
	UserContext string
	Elapsed     time.Duration
	Urgency     classifier.Urgency
	// ExemptTime skips the time limit, e.g. for answers served from cache.
	ExemptTime bool
}

type Gates struct {
	timeLimit time.Duration
	logger    *slog.Logger
}

// NewGates returns gates with the given time limit; zero means DefaultTimeLimit.
func NewGates(timeLimit time.Duration, logger *slog.Logger) *Gates {
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	return &Gates{timeLimit: timeLimit, logger: logger}
}

func (g *Gates) Validate(in Input) Check {
	lower := strings.ToLower(in.Narrative)

	results := map[string]bool{
		GateContext:     understandsContext(lower),
		GateRelevance:   addressesQuestion(lower, in.Question),
		GateTime:        in.ExemptTime || in.Elapsed <= g.timeLimit,
		GateReasoning:   includesReasoning(in.Narrative, lower),
		GateEmpowerment: empowersUser(lower, in.Urgency),
	}

	c := Check{Passed: true, Checks: results, FailureReasons: []string{}, TimeLimitExempt: in.ExemptTime}
	for _, name := range gateOrder {
		if !results[name] {
			c.Passed = false
			c.FailureReasons = append(c.FailureReasons, name)
		}
	}

	if c.Passed {
		g.logger.Info("quality gates passed")
	} else {
		g.logger.Warn("quality gates failed",
			"failures", strings.Join(c.FailureReasons, ","),
			"elapsed_ms", in.Elapsed.Milliseconds(),
		)
	}
	return c
}

var (
	addressPattern = regexp.MustCompile(`\b(you|your|you're|you've)\b`)

	contextIndicators = []string{
		"expertise", "experience", "role", "industry", "situation", "company",
		"team", "position", "market", "product", "customer",
	}

	personalization = compile(
		`\byour (situation|context|case|company|team|role|position|market|product|customers?|pricing|strategy)\b`,
		`\bgiven (your|where you are|what you)\b`,
		`\bin your (position|situation|case|market|company)\b`,
		`\bfor (someone in your|your specific|you)\b`,
		`\byou're (facing|seeing|building|deciding|considering)\b`,
		`\byou (asked|mentioned|said|have|need|want)\b`,
	)
)

// understandsContext passes when the narrative speaks to the user directly
// or touches on their situation.
func understandsContext(lower string) bool {
	if len(addressPattern.FindAllStringIndex(lower, -1)) >= 3 {
		return true
	}
	for _, ind := range contextIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return anyMatch(personalization, lower)
}

var (
	questionWord = regexp.MustCompile(`\b\w{4,}\b`)

	stopWords = map[string]bool{
		"the": true, "and": true, "or": true, "but": true, "in": true, "on": true,
		"at": true, "to": true, "for": true, "of": true, "with": true, "from": true,
		"by": true, "about": true, "like": true, "this": true, "that": true,
		"what": true, "when": true, "where": true, "why": true, "how": true,
		"should": true, "would": true, "could": true,
	}
)

// keywords returns the distinct significant words of a question.
func keywords(question string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range questionWord.FindAllString(question, -1) {
		w = strings.ToLower(w)
		if !stopWords[w] {
			out[w] = true
		}
	}
	return out
}

// addressesQuestion requires at least 30% of the question's keywords to
// appear in the narrative. A question without keywords always passes.
func addressesQuestion(lower, question string) bool {
	kws := keywords(question)
	if len(kws) == 0 {
		return true
	}
	matched := 0
	for w := range kws {
		if strings.Contains(lower, w) {
			matched++
		}
	}
	return float64(matched)/float64(len(kws)) >= 0.3
}

var (
	reasoningPatterns = compile(
		`\bbecause\b`,
		`\bhere's why\b`,
		`\bthe reason\b`,
		`\bevidence (shows|suggests)\b`,
		`\bdata (shows|indicates)\b`,
		`\bresearch (shows|finds)\b`,
		`\bfor example\b`,
		`\bconsider that\b`,
		`\bgiven that\b`,
		`\bhere's what's (true|real|actually happening)\b`,
		`\bwhat's (true|real|actually)\b`,
		`\bthis (matters|works|fails) because\b`,
		`\bthe (key|critical|real) (factor|constraint|issue) is\b`,
		`\bif .+ then\b`,
		`\bwhen .+ (happens|occurs)\b`,
		`\bmeans that\b`,
		`\bresults in\b`,
		`\bleads to\b`,
		`\bcauses\b`,
	)

	structurePattern = regexp.MustCompile(`(1\.|2\.|3\.|•|-).*\n`)

	connectors  = []string{"but", "however", "therefore", "thus", "so", "hence"}
	explanatory = []string{"here's what", "what's true", "what matters", "the real", "actually"}
)

// includesReasoning passes on enough causal language for the narrative's
// length, any list structure, three connectors or two explanatory phrases.
// Connectors and phrases are counted as raw substrings.
func includesReasoning(text, lower string) bool {
	threshold := 1
	if len(strings.Fields(text)) >= 150 {
		threshold = 2
	}
	if countMatches(reasoningPatterns, lower) >= threshold {
		return true
	}
	if structurePattern.MatchString(text) {
		return true
	}
	if countSubstrings(lower, connectors) >= 3 {
		return true
	}
	return countSubstrings(lower, explanatory) >= 2
}

var (
	empowerPatterns = compile(
		`\bwhat's your (read|take|view|thought)\b`,
		`\bwhat do you think\b`,
		`\bhow do you (see|feel about)\b`,
		`\byour choice\b`,
		`\byour decision\b`,
		`\bup to you\b`,
		`\byou decide\b`,
		`\byou're (the one who|better positioned to)\b`,
	)

	prescriptivePatterns = compile(
		`\byou should (definitely|absolutely)\b`,
		`\byou must\b`,
		`\byou have to\b`,
		`\byou need to\b`,
		`\bthe right (answer|decision|choice) is\b`,
		`\bthe only option is\b`,
	)
)

// empowersUser passes when the narrative leaves the decision with the user.
// Crisis questions tolerate up to three prescriptive phrases.
func empowersUser(lower string, urgency classifier.Urgency) bool {
	prescriptive := countMatches(prescriptivePatterns, lower)
	if urgency == classifier.UrgencyCrisis {
		return prescriptive <= 3
	}
	return countMatches(empowerPatterns, lower) >= 1 || prescriptive == 0
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func countMatches(res []*regexp.Regexp, text string) int {
	n := 0
	for _, re := range res {
		n += len(re.FindAllStringIndex(text, -1))
	}
	return n
}

func anyMatch(res []*regexp.Regexp, text string) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func countSubstrings(text string, subs []string) int {
	n := 0
	for _, s := range subs {
		n += strings.Count(text, s)
	}
	return n
}
