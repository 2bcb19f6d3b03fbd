package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"one word", "hello", 1},
		{"ten words", "one two three four five six seven eight nine ten", 13},
		{"whitespace collapsed", "  a   b\n\tc ", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestUsageAdd(t *testing.T) {
	exact := Usage{Prompt: 10, Completion: 5, Source: UsageExact}
	est := Usage{Prompt: 3, Completion: 2, Source: UsageEstimated}

	sum := exact.Add(exact)
	if sum.Source != UsageExact || sum.Total() != 30 {
		t.Errorf("unexpected exact sum %+v", sum)
	}
	mixed := exact.Add(est)
	if mixed.Source != UsageEstimated || mixed.Total() != 20 {
		t.Errorf("unexpected mixed sum %+v", mixed)
	}
}

func TestUsageJSONIncludesTotal(t *testing.T) {
	data, err := json.Marshal(Usage{Prompt: 120, Completion: 30, Source: UsageExact})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["prompt"] != 120.0 || got["completion"] != 30.0 || got["total"] != 150.0 || got["source"] != "exact" {
		t.Errorf("unexpected usage json %s", data)
	}

	var back Usage
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Total() != 150 || back.Source != UsageExact {
		t.Errorf("unexpected decoded usage %+v", back)
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"anthropic", "GEMINI", " ollama "} {
		if _, err := ParseKind(s); err != nil {
			t.Errorf("ParseKind(%q) unexpected error: %v", s, err)
		}
	}
	if _, err := ParseKind("mistral"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewOllamaProvider(OllamaConfig{}), nil)
	if !r.Has(KindOllama) {
		t.Error("expected ollama registered")
	}
	if _, err := r.Get(KindAnthropic); !errors.Is(err, ErrNoProvider) {
		t.Errorf("expected ErrNoProvider, got %v", err)
	}
	if kinds := r.Kinds(); len(kinds) != 1 || kinds[0] != KindOllama {
		t.Errorf("unexpected kinds %v", kinds)
	}
}
