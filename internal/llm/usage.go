package llm

import (
	"encoding/json"
	"math"
	"strings"
)

// UsageSource records whether token counts came from the provider or from
// the word-count heuristic.
type UsageSource string

const (
	UsageExact     UsageSource = "exact"
	UsageEstimated UsageSource = "estimated"
)

type Usage struct {
	Prompt     int         `json:"prompt"`
	Completion int         `json:"completion"`
	Source     UsageSource `json:"source"`
}

func (u Usage) Total() int {
	return u.Prompt + u.Completion
}

// MarshalJSON adds the derived total alongside the counts.
func (u Usage) MarshalJSON() ([]byte, error) {
	type usage Usage
	return json.Marshal(struct {
		usage
		Total int `json:"total"`
	}{usage(u), u.Total()})
}

// Add sums two usages. The result is exact only when both inputs are.
func (u Usage) Add(o Usage) Usage {
	src := UsageExact
	if u.Source == UsageEstimated || o.Source == UsageEstimated {
		src = UsageEstimated
	}
	if u.Source == "" && o.Source == "" {
		src = ""
	}
	return Usage{Prompt: u.Prompt + o.Prompt, Completion: u.Completion + o.Completion, Source: src}
}

// EstimateTokens approximates a token count as round(words × 1.3).
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Round(float64(words) * 1.3))
}

// EstimateUsage builds an estimated usage for a request and its completion.
func EstimateUsage(req Request, completion string) Usage {
	prompt := req.System + " " + req.Prompt
	for _, m := range req.History {
		prompt += " " + m.Content
	}
	return Usage{
		Prompt:     EstimateTokens(prompt),
		Completion: EstimateTokens(completion),
		Source:     UsageEstimated,
	}
}

// resolveUsage prefers provider counts and falls back to the estimate when
// the provider reported nothing.
func resolveUsage(req Request, text string, prompt, completion int64) Usage {
	if prompt <= 0 && completion <= 0 {
		return EstimateUsage(req, text)
	}
	return Usage{Prompt: int(prompt), Completion: int(completion), Source: UsageExact}
}
