package quality

import (
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/counsel/internal/classifier"
)

type Level string

const (
	LevelHigh        Level = "high"
	LevelMedium      Level = "medium"
	LevelLow         Level = "low"
	LevelSpeculative Level = "speculative"
)

const (
	minPercentage = 30
	maxPercentage = 100
	// speculativeCeiling is the highest percentage still banded speculative.
	speculativeCeiling = 49
)

// LevelFor maps a percentage onto the fixed bands:
// high 85-100, medium 65-84, low 50-64, speculative 30-49.
func LevelFor(pct int) Level {
	switch {
	case pct >= 85:
		return LevelHigh
	case pct >= 65:
		return LevelMedium
	case pct >= 50:
		return LevelLow
	default:
		return LevelSpeculative
	}
}

type Score struct {
	Level       Level  `json:"level"`
	Percentage  int    `json:"percentage"`
	Explanation string `json:"explanation"`
}

// Degrade caps a score inside the speculative band.
func (s Score) Degrade(reason string) Score {
	if s.Percentage > speculativeCeiling {
		s.Percentage = speculativeCeiling
	}
	s.Level = LevelSpeculative
	s.Explanation = strings.TrimSpace(reason + " " + levelOpenings[LevelSpeculative])
	return s
}

// ConfidenceInput describes the narrative being scored.
type ConfidenceInput struct {
	Narrative  string
	Complexity classifier.Complexity
	Type       classifier.QuestionType
	Model      string
}

type Marker struct {
	logger *slog.Logger
}

func NewMarker(logger *slog.Logger) *Marker {
	return &Marker{logger: logger}
}

var (
	evidencePatterns = compile(
		`\b(data shows|research finds|studies indicate)\b`,
		`\b(evidence suggests|analysis reveals)\b`,
		`\b(according to|based on|drawing from)\b`,
		`\b(proven|demonstrated|established)\b`,
		`\b(consistently|repeatedly|reliably)\b`,
		`\b(x% of|majority of|most)\b`,
	)

	hedgingPatterns = compile(
		`\b(might|may|could|possibly|perhaps)\b`,
		`\b(seems|appears|suggests|indicates)\b`,
		`\b(likely|probably|potentially)\b`,
		`\b(tend to|generally|typically)\b`,
		`\b(uncertain|unclear|ambiguous)\b`,
		`\b(depending on|it depends)\b`,
	)

	uncertaintyPatterns = compile(
		`\b(don't know|can't say|hard to know)\b`,
		`\b(without (more|additional) (data|information))\b`,
		`\b(would need to (know|understand|see))\b`,
		`\b(missing (information|data|context))\b`,
		`\b(information gaps?|unknowns?)\b`,
	)

	alternativePatterns = compile(
		`\b(alternatively|on the other hand|however)\b`,
		`\b(could also|might also|may also)\b`,
		`\b(another (option|possibility|approach))\b`,
		`\b(multiple (paths|options|possibilities))\b`,
	)
)

// modelStrength is matched by substring in order; the first hit wins.
var modelStrength = []struct {
	key   string
	value int
}{
	{"claude-opus-4", 10},
	{"claude-sonnet-4", 5},
	{"claude-3-5-sonnet", 5},
	{"gemini-2.0-pro", 3},
	{"gemini-2.0-flash", -5},
}

var typeBias = map[classifier.QuestionType]int{
	classifier.TypeExploration: -5,
	classifier.TypeValidation:  5,
	classifier.TypeDecision:    0,
	classifier.TypeCrisis:      5,
}

var levelOpenings = map[Level]string{
	LevelHigh:        "High confidence in this analysis.",
	LevelMedium:      "Moderate confidence - good evidence with some uncertainty.",
	LevelLow:         "Lower confidence - limited evidence or multiple unknowns.",
	LevelSpeculative: "Speculative analysis - significant uncertainty.",
}

// Score starts from a complexity baseline and applies additive
// adjustments; the total is clamped to [30, 100].
func (m *Marker) Score(in ConfidenceInput) Score {
	lower := strings.ToLower(in.Narrative)

	evidence := evidenceAdjustment(countMatches(evidencePatterns, lower))
	hedging := hedgingAdjustment(countMatches(hedgingPatterns, lower), len(strings.Fields(in.Narrative)))
	uncertainty := uncertaintyAdjustment(countMatches(uncertaintyPatterns, lower))
	alternatives := alternativesAdjustment(countMatches(alternativePatterns, lower))
	model := modelAdjustment(in.Model, in.Complexity)

	pct := baseConfidence(in.Complexity) + evidence + hedging + uncertainty + alternatives + model + typeBias[in.Type]
	pct = clamp(pct, minPercentage, maxPercentage)
	level := LevelFor(pct)

	m.logger.Info("confidence calculated", "level", level, "percentage", pct)
	return Score{
		Level:       level,
		Percentage:  pct,
		Explanation: explain(level, evidence, hedging, uncertainty, in.Complexity),
	}
}

func baseConfidence(c classifier.Complexity) int {
	switch c {
	case classifier.ComplexitySimple:
		return 75
	case classifier.ComplexityComplex:
		return 55
	default:
		return 65
	}
}

func evidenceAdjustment(n int) int {
	switch {
	case n == 0:
		return -5
	case n <= 2:
		return 0
	case n <= 4:
		return 10
	default:
		return 15
	}
}

// hedgingAdjustment penalises the share of hedge words per hundred words.
func hedgingAdjustment(hedges, words int) int {
	if words < 1 {
		words = 1
	}
	ratio := float64(hedges) / float64(words) * 100
	switch {
	case ratio < 2:
		return 0
	case ratio < 5:
		return -5
	case ratio < 10:
		return -10
	default:
		return -15
	}
}

// uncertaintyAdjustment rewards exactly one admission of a gap.
func uncertaintyAdjustment(n int) int {
	switch n {
	case 0:
		return -5
	case 1:
		return 5
	default:
		return -10
	}
}

func alternativesAdjustment(n int) int {
	switch {
	case n <= 1:
		return 0
	case n <= 3:
		return -5
	default:
		return -10
	}
}

func modelAdjustment(model string, c classifier.Complexity) int {
	strength := 0
	for _, m := range modelStrength {
		if strings.Contains(model, m.key) {
			strength = m.value
			break
		}
	}
	if c == classifier.ComplexityComplex {
		strength = int(float64(strength) * 1.5)
	}
	return clamp(strength, -5, 10)
}

func explain(level Level, evidence, hedging, uncertainty int, c classifier.Complexity) string {
	parts := []string{levelOpenings[level]}
	switch {
	case evidence > 5:
		parts = append(parts, "Strong evidence cited.")
	case evidence < 0:
		parts = append(parts, "Limited evidence available.")
	}
	if hedging < -10 {
		parts = append(parts, "Significant hedging due to uncertainty.")
	}
	switch {
	case uncertainty == 5:
		parts = append(parts, "Honest about information gaps.")
	case uncertainty < 0:
		parts = append(parts, "Multiple unknowns acknowledged.")
	}
	if c == classifier.ComplexityComplex {
		parts = append(parts, "Complex question with multiple factors.")
	}
	return strings.Join(parts, " ")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

