package quality

import (
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/counsel/internal/classifier"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const goodNarrative = `You're right to consider enterprise timing carefully. Given your current
runway and team size, here's what matters: The market window is real,
but cash is your constraint. So the real decision isn't "should we pivot?"
but "how do we fund the pivot?" Three paths: raise capital, bootstrap
with different approach, or delay entry. What's your read on which
constraint you can move first?`

func TestValidate_GoodResponse(t *testing.T) {
	g := NewGates(0, discardLogger())
	c := g.Validate(Input{
		Question:  "Should we pivot to enterprise market?",
		Narrative: goodNarrative,
		Elapsed:   9500 * time.Millisecond,
		Urgency:   classifier.UrgencyRoutine,
	})

	if !c.Passed {
		t.Fatalf("expected pass, failures: %v", c.FailureReasons)
	}
	if len(c.Checks) != 5 {
		t.Errorf("expected 5 checks, got %d", len(c.Checks))
	}
	if len(c.FailureReasons) != 0 {
		t.Errorf("failure reasons = %v, want none", c.FailureReasons)
	}
}

func TestValidate_PrescriptiveFailsEmpowerment(t *testing.T) {
	g := NewGates(0, discardLogger())
	c := g.Validate(Input{
		Question:  "Should we hire more engineers?",
		Narrative: "You should definitely hire 5 more engineers immediately. You must scale the team now. The right answer is to start recruiting today. You have to do this or you'll fail.",
		Elapsed:   8 * time.Second,
		Urgency:   classifier.UrgencyImportant,
	})

	if c.Passed {
		t.Fatal("expected prescriptive response to fail")
	}
	if c.Checks[GateEmpowerment] {
		t.Error("empowers_user should be false")
	}
	want := []string{GateReasoning, GateEmpowerment}
	if !reflect.DeepEqual(c.FailureReasons, want) {
		t.Errorf("failure reasons = %v, want %v", c.FailureReasons, want)
	}
}

func TestValidate_CrisisToleratesSomePrescription(t *testing.T) {
	g := NewGates(0, discardLogger())
	narrative := "You must act now and you need to call the board because the cash runs out Friday."

	routine := g.Validate(Input{Question: "What now?", Narrative: narrative, Urgency: classifier.UrgencyRoutine})
	if routine.Checks[GateEmpowerment] {
		t.Error("routine question: empowers_user should be false")
	}

	crisis := g.Validate(Input{Question: "What now?", Narrative: narrative, Urgency: classifier.UrgencyCrisis})
	if !crisis.Checks[GateEmpowerment] {
		t.Error("crisis question: two prescriptive phrases should pass")
	}
}

func TestValidate_TimeLimit(t *testing.T) {
	g := NewGates(0, discardLogger())
	in := Input{Question: "Should we pivot to enterprise market?", Narrative: goodNarrative, Elapsed: 16 * time.Second}

	slow := g.Validate(in)
	if slow.Checks[GateTime] {
		t.Error("16s should exceed the 15s limit")
	}
	if !reflect.DeepEqual(slow.FailureReasons, []string{GateTime}) {
		t.Errorf("failure reasons = %v", slow.FailureReasons)
	}

	in.ExemptTime = true
	exempt := g.Validate(in)
	if !exempt.Checks[GateTime] || !exempt.TimeLimitExempt {
		t.Errorf("exempt run should pass the time gate, got %+v", exempt)
	}

	custom := NewGates(20*time.Second, discardLogger()).Validate(Input{Question: in.Question, Narrative: goodNarrative, Elapsed: 16 * time.Second})
	if !custom.Checks[GateTime] {
		t.Error("16s should pass a 20s limit")
	}
}

func TestAddressesQuestion(t *testing.T) {
	tests := []struct {
		name      string
		question  string
		narrative string
		want      bool
	}{
		{"no keywords", "Why?", "anything at all", true},
		{"stop words only", "What about this?", "unrelated", true},
		{"full overlap", "Should we raise prices?", "raising prices now", true},
		{"below threshold", "Should we expand marketing budget hiring plans?", "the weather is nice", false},
		{"exactly thirty percent", "alpha bravo charlie delta echo foxtrot golf hotel india juliet", "alpha bravo charlie", true},
		{"just under", "alpha bravo charlie delta echo foxtrot golf hotel india juliet", "alpha bravo", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := addressesQuestion(strings.ToLower(tt.narrative), tt.question); got != tt.want {
				t.Errorf("addressesQuestion(%q) = %v, want %v", tt.question, got, tt.want)
			}
		})
	}
}

func TestIncludesReasoning(t *testing.T) {
	long := "because " + strings.Repeat("word ", 160)
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"one indicator short text", "This works because churn is low.", true},
		{"one indicator long text", long, false},
		{"two indicators long text", long + " which leads to growth", true},
		{"list structure", "Options:\n- raise\n- wait\n", true},
		{"connectors", "It helps, but it costs. However it is fine. Therefore go.", true},
		{"explanatory phrases", "Here's what happened. What matters now is focus.", true},
		{"bare assertion", "Consider adjusting your pricing model.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := includesReasoning(tt.text, strings.ToLower(tt.text)); got != tt.want {
				t.Errorf("includesReasoning = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnderstandsContext(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"addresses user", "you said you want this and you know it", true},
		{"indicator", "the industry is shifting", true},
		{"personalization", "given your runway", true},
		{"generic", "it is raining today", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := understandsContext(tt.text); got != tt.want {
				t.Errorf("understandsContext(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestValidate_OverallIsConjunction(t *testing.T) {
	g := NewGates(0, discardLogger())
	narratives := []string{goodNarrative, "", "You must do it.", "it is raining today"}
	for _, n := range narratives {
		c := g.Validate(Input{Question: "Should we pivot to enterprise market?", Narrative: n, Elapsed: time.Second})
		all := true
		var failed []string
		for _, name := range gateOrder {
			if !c.Checks[name] {
				all = false
				failed = append(failed, name)
			}
		}
		if c.Passed != all {
			t.Errorf("Passed = %v, AND of checks = %v", c.Passed, all)
		}
		if len(failed) != len(c.FailureReasons) {
			t.Errorf("failure reasons %v, want %v", c.FailureReasons, failed)
		}
	}
}
