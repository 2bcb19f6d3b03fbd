// Package classifier maps free-text questions to a type, ranked domains,
// urgency, complexity and an emotional tone. Everything here is a pure
// function of the input text.
package classifier

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

type QuestionType string

const (
	TypeDecision    QuestionType = "decision"
	TypeValidation  QuestionType = "validation"
	TypeExploration QuestionType = "exploration"
	TypeCrisis      QuestionType = "crisis"
)

type Domain string

const (
	DomainMarket    Domain = "market"
	DomainStrategy  Domain = "strategy"
	DomainFinance   Domain = "finance"
	DomainPeople    Domain = "people"
	DomainExecution Domain = "execution"
)

type Urgency string

const (
	UrgencyRoutine   Urgency = "routine"
	UrgencyImportant Urgency = "important"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyCrisis    Urgency = "crisis"
)

type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Classification is produced once per question and never modified.
type Classification struct {
	Type             QuestionType `json:"question_type"`
	Domains          []Domain     `json:"domains"`
	Urgency          Urgency      `json:"urgency"`
	Complexity       Complexity   `json:"complexity"`
	Confidence       float64      `json:"confidence_score"`
	DetectedPatterns []string     `json:"detected_patterns"`
}

func (c Classification) HasDomain(d Domain) bool {
	for _, x := range c.Domains {
		if x == d {
			return true
		}
	}
	return false
}

// Classifier is the seam the orchestrator depends on. The pattern-based
// implementation below can be swapped for a model-backed one.
type Classifier interface {
	Classify(question string) Classification
}

type weightedPatterns struct {
	name     string
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

func wordBounded(exprs ...string) []*regexp.Regexp {
	wrapped := make([]string, len(exprs))
	for i, e := range exprs {
		wrapped[i] = `\b` + e + `\b`
	}
	return compileAll(wrapped...)
}

// Order matters: it breaks ties.
var typePatterns = []weightedPatterns{
	{string(TypeDecision), compileAll(
		`\bshould (i|we)\b`,
		`\bwhich (option|choice|path)\b`,
		`\b(choose|decide|pick)\b`,
		`\bbetter to\b`,
		`\bworth (it|doing)\b`,
		`\bmake (a|the) decision\b`,
	)},
	{string(TypeValidation), compileAll(
		`\bis (this|it) (correct|right|good)\b`,
		`\bam i (right|wrong|correct)\b`,
		`\bdoes (this|it) make sense\b`,
		`\bwhat do you think (about|of)\b`,
		`\b(validate|verify|confirm)\b`,
		`\bgood (idea|approach|strategy)\b`,
	)},
	{string(TypeExploration), compileAll(
		`\bwhat (if|are|about)\b`,
		`\bhow (can|do|does|would)\b`,
		`\btell me (about|more)\b`,
		`\bexplain\b`,
		`\bhelp me understand\b`,
		`\bcurious about\b`,
		`\bwhat are the options\b`,
	)},
	{string(TypeCrisis), compileAll(
		`\bemergency\b`,
		`\b(urgent|asap|immediately)\b`,
		`\bcrisis\b`,
		`\bfailing (fast|quickly)\b`,
		`\bmust (decide|act) (now|today)\b`,
		`\bdeadline (is|in)\b`,
	)},
}

var domainPatterns = []weightedPatterns{
	{string(DomainMarket), wordBounded(
		`(market|competitor|customer|demand)`,
		`(competitive|competition)`,
		`(market share|positioning)`,
		`(customer needs|buyer)`,
		`(industry trends|market timing)`,
	)},
	{string(DomainStrategy), wordBounded(
		`(strategy|strategic|pivot)`,
		`(long.?term|vision|mission)`,
		`(differentiation|advantage)`,
		`(product.?market fit)`,
		`(positioning|moat)`,
		`(business model|value prop)`,
	)},
	{string(DomainFinance), wordBounded(
		`(revenue|profit|margin|cash)`,
		`(runway|burn rate|budget)`,
		`(pricing|cost|roi)`,
		`(funding|investment|raise)`,
		`(financial|finances)`,
		`(valuation|cap table)`,
	)},
	{string(DomainPeople), wordBounded(
		`(team|hire|hiring|staff)`,
		`(employee|culture|org)`,
		`(fire|firing|let go)`,
		`(performance|manager)`,
		`(office politics|resistance)`,
		`(talent|skills|capability)`,
	)},
	{string(DomainExecution), wordBounded(
		`(execute|launch|ship|deliver)`,
		`(timeline|deadline|schedule)`,
		`(implementation|rollout)`,
		`(project|task|milestone)`,
		`(resources|bandwidth)`,
		`(feasible|realistic|doable)`,
	)},
}

type urgencySignals struct {
	level   Urgency
	signals []string
}

// Scanned in priority order; the first signal found wins.
var urgencyTable = []urgencySignals{
	{UrgencyCrisis, []string{"emergency", "crisis", "critical", "breaking", "failing"}},
	{UrgencyUrgent, []string{"urgent", "asap", "immediately", "now", "today", "must", "need to act"}},
	{UrgencyImportant, []string{"important", "significant", "key", "critical decision", "major"}},
	{UrgencyRoutine, []string{"considering", "thinking about", "wondering", "curious"}},
}

// Two or more distinct strong signals escalate urgent to crisis.
var escalationSignals = []string{"urgent", "asap", "immediately"}

var urgencyMatchers = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp)
	for _, row := range urgencyTable {
		for _, s := range row.signals {
			m[s] = regexp.MustCompile(`\b` + regexp.QuoteMeta(s) + `\b`)
		}
	}
	return m
}()

var (
	complexIndicators = compileAll(
		`multiple (options|factors|stakeholders)`,
		`(tradeoff|trade.?off)`,
		`complex`,
		`(interconnected|dependencies)`,
		`(long.?term implications)`,
	)
	mediumIndicators = compileAll(
		`(several|few|some) (factors|considerations)`,
		`(pros and cons|advantages and disadvantages)`,
		`(balanced|weigh)`,
	)
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
)

// PatternClassifier scores regex tables against the lower-cased question.
type PatternClassifier struct{}

func New() *PatternClassifier { return &PatternClassifier{} }

func (PatternClassifier) Classify(question string) Classification {
	text := strings.ToLower(question)
	var patterns []string

	qType, typeConf, typePattern := classifyType(text)
	if typePattern != "" {
		patterns = append(patterns, typePattern)
	}

	domains, matched := classifyDomains(text)
	if matched {
		for _, d := range domains {
			patterns = append(patterns, "domain:"+string(d))
		}
	}

	urgency, urgencyPattern := classifyUrgency(text)
	if urgencyPattern != "" {
		patterns = append(patterns, urgencyPattern)
	}

	complexity, complexityPattern := classifyComplexity(question, text)
	patterns = append(patterns, complexityPattern)

	patterns = dedupe(patterns)
	return Classification{
		Type:             qType,
		Domains:          domains,
		Urgency:          urgency,
		Complexity:       complexity,
		Confidence:       overallConfidence(typeConf, len(domains), len(patterns)),
		DetectedPatterns: patterns,
	}
}

func classifyType(text string) (QuestionType, float64, string) {
	best, bestScore := "", 0
	for _, wp := range typePatterns {
		score := 0
		for _, re := range wp.patterns {
			if re.MatchString(text) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = wp.name, score
		}
	}
	if bestScore == 0 {
		return TypeExploration, 0.5, ""
	}
	return QuestionType(best), math.Min(float64(bestScore)/3.0, 1.0), "type:" + best
}

// classifyDomains ranks matching domains by score. With no match it falls
// back to strategy and reports matched=false.
func classifyDomains(text string) (domains []Domain, matched bool) {
	type scored struct {
		domain Domain
		score  int
	}
	var hits []scored
	for _, wp := range domainPatterns {
		score := 0
		for _, re := range wp.patterns {
			if re.MatchString(text) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{Domain(wp.name), score})
		}
	}
	if len(hits) == 0 {
		return []Domain{DomainStrategy}, false
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]Domain, len(hits))
	for i, h := range hits {
		out[i] = h.domain
	}
	return out, true
}

func classifyUrgency(text string) (Urgency, string) {
	strong := 0
	for _, s := range escalationSignals {
		if urgencyMatchers[s].MatchString(text) {
			strong++
		}
	}
	if strong >= 2 {
		return UrgencyCrisis, "urgency:crisis:escalated"
	}
	for _, row := range urgencyTable {
		for _, s := range row.signals {
			if urgencyMatchers[s].MatchString(text) {
				return row.level, fmt.Sprintf("urgency:%s:%s", row.level, s)
			}
		}
	}
	return UrgencyRoutine, ""
}

func classifyComplexity(original, text string) (Complexity, string) {
	for _, re := range complexIndicators {
		if re.MatchString(text) {
			return ComplexityComplex, "complexity:complex"
		}
	}
	for _, re := range mediumIndicators {
		if re.MatchString(text) {
			return ComplexityMedium, "complexity:medium"
		}
	}

	qmarks := strings.Count(original, "?")
	sentences := len(sentenceSplit.Split(original, -1))
	words := len(strings.Fields(original))

	switch {
	case qmarks > 2 || sentences > 3 || words > 100:
		return ComplexityComplex, "complexity:multi-part"
	case words > 50 || sentences > 2:
		return ComplexityMedium, "complexity:medium"
	default:
		return ComplexitySimple, "complexity:simple"
	}
}

func overallConfidence(typeConf float64, domainCount, patternCount int) float64 {
	score := typeConf*0.5 +
		math.Min(float64(domainCount)/3.0, 1.0)*0.3 +
		math.Min(float64(patternCount)/10.0, 1.0)*0.2
	return math.Round(math.Min(score, 1.0)*100) / 100
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
