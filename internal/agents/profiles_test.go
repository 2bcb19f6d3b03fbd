package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfileClassify(t *testing.T) {
	tests := []struct {
		name      string
		profile   Profile
		question  string
		want      string
		framework string
	}{
		{"market size", MarketProfile(), "What is the TAM for dev tools?", "market_data", ""},
		{"competitor", MarketProfile(), "What is our main competitor doing?", "competitive_intelligence", ""},
		{"trend", MarketProfile(), "Is this AI trend real?", "signal_interpretation", ""},
		{"market default", MarketProfile(), "Should we go upmarket?", "market_strategy", ""},
		{"calculation", FinancialProfile(), "How much will this cost us?", "calculation", ""},
		{"scenario", FinancialProfile(), "Suppose churn doubles next year", "scenario", ""},
		{"unit economics", FinancialProfile(), "Our CAC looks high", "unit_economics", ""},
		{"runway", FinancialProfile(), "When will we run out of runway?", "runway", ""},
		{"roi", FinancialProfile(), "Is the ROI there?", "roi", ""},
		{"financial default", FinancialProfile(), "Thoughts on the plan", "calculation", ""},
		{"competitive dynamics", StrategyProfile(), "What are the barriers to entry here?", "competitive_dynamics", "porters_five_forces"},
		{"differentiation", StrategyProfile(), "How do we stand out?", "differentiation", "blue_ocean"},
		{"market entry", StrategyProfile(), "Should we expand to Europe?", "market_entry", "playing_to_win"},
		{"positioning", StrategyProfile(), "Is our brand messaging off?", "positioning", "positioning"},
		{"trade offs", StrategyProfile(), "Build vs buy?", "trade_offs", "strategic_tradeoffs"},
		{"or stands alone", StrategyProfile(), "Plan for the year", "strategic_decision", "playing_to_win"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.profile.Classify(tt.question)
			assert.Equal(t, tt.want, got.Name)
			assert.Equal(t, tt.framework, got.Framework)
		})
	}
}

func TestDefaultProfiles(t *testing.T) {
	ps := DefaultProfiles()
	assert.Len(t, ps, 3)
	for _, p := range ps {
		assert.Equal(t, 1500, p.MaxTokens, p.Agent)
		assert.Equal(t, string(p.Agent), p.Schema.Agent)
	}
	assert.Equal(t, 0.7, MarketProfile().Temperature)
	assert.Equal(t, 0.3, FinancialProfile().Temperature)
	assert.Equal(t, 0.3, StrategyProfile().Temperature)
}
