package classifier

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

type EmotionalState string

const (
	StateAnxiety     EmotionalState = "anxiety"
	StateConfidence  EmotionalState = "confidence"
	StateUncertainty EmotionalState = "uncertainty"
	StateUrgency     EmotionalState = "urgency"
	StateExploration EmotionalState = "exploration"
)

// ToneAdjustment tells the synthesizer how to phrase the narrative.
type ToneAdjustment struct {
	Approach  string `json:"approach"`
	Opening   string `json:"opening"`
	Style     string `json:"style"`
	Structure string `json:"structure"`
}

type ToneState struct {
	State      EmotionalState `json:"state"`
	Confidence float64        `json:"confidence"`
	Adjustment ToneAdjustment `json:"tone_adjustment"`
	Signals    []string       `json:"signals,omitempty"`
}

// Instructions renders the adjustment for inclusion in a system prompt.
func (t ToneState) Instructions() string {
	a := t.Adjustment
	return fmt.Sprintf("Approach: %s\nOpening: %s\nStyle: %s\nStructure: %s", a.Approach, a.Opening, a.Style, a.Structure)
}

type toneProfile struct {
	state      EmotionalState
	patterns   []*regexp.Regexp
	adjustment ToneAdjustment
}

// Order breaks ties.
var toneProfiles = []toneProfile{
	{
		state: StateAnxiety,
		patterns: compileAll(
			`\bwhat if\b`,
			`\b(worry|worried|concern|concerned)\b`,
			`\b(risk|risky|dangerous)\b`,
			`\bbut what (if|about)\b`,
			`\bafraid\b`,
			`\b(scared|fear|nervous)\b`,
			`\b(hesitant|uncertain)\b`,
			`\bmight (fail|go wrong)\b`,
			`\b(worst case|downside)\b`,
			`\bcan't afford\b`,
		),
		adjustment: ToneAdjustment{
			Approach:  "validate_then_reframe",
			Opening:   "acknowledge_concern",
			Style:     "reassuring_but_realistic",
			Structure: "validate → provide_context → reframe_positively",
		},
	},
	{
		state: StateConfidence,
		patterns: compileAll(
			`\bi (know|believe|think) (that|this)\b`,
			`\b(certain|sure|convinced)\b`,
			`\bconfident\b`,
			`\b(clearly|obviously|definitely)\b`,
			`\bno doubt\b`,
			`\bwe should (definitely|absolutely)\b`,
			`\bmy (gut|instinct) says\b`,
		),
		adjustment: ToneAdjustment{
			Approach:  "challenge_gently",
			Opening:   "acknowledge_strength",
			Style:     "respectful_pushback",
			Structure: "validate_thinking → surface_blind_spots → expand_perspective",
		},
	},
	{
		state: StateUncertainty,
		patterns: compileAll(
			`\b(maybe|perhaps|possibly)\b`,
			`\b(not sure|unsure)\b`,
			`\bcould (it be|this be)\b`,
			`\bmight\b`,
			`\bdon't know (if|whether)\b`,
			`\b(confused|unclear)\b`,
			`\b(torn between|can't decide)\b`,
			`\bwhat do you think\b`,
		),
		adjustment: ToneAdjustment{
			Approach:  "validate_and_clarify",
			Opening:   "trust_instinct",
			Style:     "clarifying_and_empowering",
			Structure: "validate_intuition → add_clarity → provide_framework",
		},
	},
	{
		state: StateUrgency,
		patterns: compileAll(
			`\b(urgent|asap|immediately|now)\b`,
			`\b(must|need to|have to) (decide|act|move)\b`,
			`\btoday\b`,
			`\b(deadline|time.?sensitive)\b`,
			`\bquickly\b`,
			`\bpress(ing|ure)\b`,
			`\bcan't wait\b`,
			`\bwindow (is|closing)\b`,
		),
		adjustment: ToneAdjustment{
			Approach:  "direct_and_actionable",
			Opening:   "cut_through_noise",
			Style:     "crisp_and_decisive",
			Structure: "key_constraint → immediate_action → what_to_delay",
		},
	},
	{
		state: StateExploration,
		patterns: compileAll(
			`\bcurious (about|to know)\b`,
			`\bwhat are the options\b`,
			`\bexploring\b`,
			`\bthinking about\b`,
			`\bconsidering\b`,
			`\bwondering\b`,
			`\bwhat if we\b`,
			`\bhow (could|would|might) we\b`,
			`\b(brainstorm|ideate)\b`,
		),
		adjustment: ToneAdjustment{
			Approach:  "deepen_thinking",
			Opening:   "expand_curiosity",
			Style:     "exploratory_and_expansive",
			Structure: "surface_options → explore_implications → push_thinking",
		},
	},
}

var (
	intensityMarkers = compileAll(
		`\breally\b`, `\bvery\b`, `\bextremely\b`, `\bseriously\b`,
		`\bdeeply\b`, `\bquite\b`, `!+`, `\b(all caps|caps)\b`,
	)
	hedgeMarkers = compileAll(
		`\bkind of\b`, `\bsort of\b`, `\ba bit\b`, `\ba little\b`, `\bsomewhat\b`,
	)
)

const (
	defaultToneConfidence = 0.3
	intensityStep         = 0.2
	intensityCap          = 2.0
	hedgeStep             = 0.15
	hedgeFloor            = 0.5
)

// ToneDetector picks the dominant emotional state of a question.
type ToneDetector struct{}

func NewToneDetector() *ToneDetector { return &ToneDetector{} }

func (ToneDetector) Detect(text string) ToneState {
	lower := strings.ToLower(text)

	bestIdx, bestScore := -1, 0
	var bestSignals []string
	for i, p := range toneProfiles {
		score := 0
		var signals []string
		for _, re := range p.patterns {
			matches := re.FindAllString(lower, -1)
			score += len(matches)
			signals = append(signals, matches...)
		}
		if score > bestScore {
			bestIdx, bestScore, bestSignals = i, score, signals
		}
	}

	if bestIdx < 0 {
		return ToneState{
			State:      StateExploration,
			Confidence: defaultToneConfidence,
			Adjustment: AdjustmentFor(StateExploration),
		}
	}

	base := math.Min(float64(bestScore)/5.0, 1.0)
	conf := math.Min(base*intensityMultiplier(lower)*hedgeMultiplier(lower), 1.0)
	profile := toneProfiles[bestIdx]
	return ToneState{
		State:      profile.state,
		Confidence: math.Round(conf*100) / 100,
		Adjustment: profile.adjustment,
		Signals:    bestSignals,
	}
}

// AdjustmentFor returns the fixed tone bundle for a state.
func AdjustmentFor(state EmotionalState) ToneAdjustment {
	for _, p := range toneProfiles {
		if p.state == state {
			return p.adjustment
		}
	}
	return toneProfiles[len(toneProfiles)-1].adjustment
}

func intensityMultiplier(text string) float64 {
	m := 1.0
	for _, re := range intensityMarkers {
		m += intensityStep * float64(len(re.FindAllString(text, -1)))
	}
	return math.Min(m, intensityCap)
}

func hedgeMultiplier(text string) float64 {
	m := 1.0
	for _, re := range hedgeMarkers {
		m -= hedgeStep * float64(len(re.FindAllString(text, -1)))
	}
	return math.Max(m, hedgeFloor)
}
