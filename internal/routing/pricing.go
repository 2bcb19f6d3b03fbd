package routing

import "github.com/MikeSquared-Agency/counsel/internal/llm"

const longContextThreshold = 200_000

// Price is USD per million tokens. High rates apply once the prompt
// exceeds Threshold; a zero Threshold means flat pricing.
type Price struct {
	Input      float64
	Output     float64
	InputHigh  float64
	OutputHigh float64
	Threshold  int
}

var priceTable = map[string]Price{
	ModelClaudeOpus:              {Input: 15, Output: 75},
	ModelClaudeSonnet:            {Input: 3, Output: 15, InputHigh: 6, OutputHigh: 22.5, Threshold: longContextThreshold},
	"claude-haiku-4-20250514":    {Input: 1, Output: 5},
	"claude-3-5-sonnet-20241022": {Input: 3, Output: 15},
	ModelGeminiFlash:             {Input: 0.10, Output: 0.40},
	ModelGeminiPro:               {Input: 1.25, Output: 5},
}

// PriceOf returns the price entry for a model. Unknown models are billed
// as Sonnet.
func PriceOf(model string) Price {
	if p, ok := priceTable[model]; ok {
		return p
	}
	return priceTable[ModelClaudeSonnet]
}

// Cost computes the USD cost of one call, rounded to six places.
func (p Price) Cost(u llm.Usage) float64 {
	in, out := p.Input, p.Output
	if p.Threshold > 0 && u.Prompt > p.Threshold {
		in = p.InputHigh
	}
	if p.Threshold > 0 && u.Completion > p.Threshold {
		out = p.OutputHigh
	}
	cost := float64(u.Prompt)/1_000_000*in + float64(u.Completion)/1_000_000*out
	return roundTo(cost, 6)
}

// Cost prices a call against the catalog. Local models are free.
func (r *ModelRouter) Cost(model string, u llm.Usage) float64 {
	if spec, ok := r.byName[model]; ok && spec.Provider == llm.KindOllama {
		return 0
	}
	return PriceOf(model).Cost(u)
}
