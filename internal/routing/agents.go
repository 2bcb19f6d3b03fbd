// Package routing decides which specialist agents answer a question and
// which model each call runs on.
package routing

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/counsel/internal/classifier"
)

type Agent string

const (
	AgentMarketCompass      Agent = "market_compass"
	AgentFinancialGuardian  Agent = "financial_guardian"
	AgentStrategyAnalyst    Agent = "strategy_analyst"
	AgentPeopleAdvisor      Agent = "people_advisor"
	AgentExecutionArchitect Agent = "execution_architect"
)

// DisplayName turns "market_compass" into "Market Compass".
func (a Agent) DisplayName() string {
	parts := strings.Split(string(a), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

type Priority string

const (
	PriorityPrimary   Priority = "primary"
	PrioritySecondary Priority = "secondary"
	PriorityOptional  Priority = "optional"
)

type ExecutionStrategy string

const (
	StrategyParallel   ExecutionStrategy = "parallel"
	StrategySequential ExecutionStrategy = "sequential"
)

type Activation struct {
	Agent     Agent    `json:"agent_name"`
	Priority  Priority `json:"priority"`
	Reasoning string   `json:"reasoning"`
}

// RoutingDecision always carries at least one activation.
type RoutingDecision struct {
	Activations []Activation      `json:"activated_agents"`
	Strategy    ExecutionStrategy `json:"execution_strategy"`
	Reasoning   string            `json:"reasoning"`
}

func (d RoutingDecision) Agents() []Agent {
	out := make([]Agent, len(d.Activations))
	for i, a := range d.Activations {
		out[i] = a.Agent
	}
	return out
}

func (d RoutingDecision) Primary() []Agent {
	var out []Agent
	for _, a := range d.Activations {
		if a.Priority == PriorityPrimary {
			out = append(out, a.Agent)
		}
	}
	return out
}

// AgentProfile describes what an agent covers. Unavailable agents are
// known to the router but never activated.
type AgentProfile struct {
	Name      Agent
	Keywords  []string
	Expertise string
	Available bool
}

// DefaultProfiles lists every agent; only the first three are implemented.
func DefaultProfiles() []AgentProfile {
	return []AgentProfile{
		{AgentMarketCompass, []string{"market", "competition", "trends", "customers"}, "market intelligence and competitive analysis", true},
		{AgentFinancialGuardian, []string{"finance", "numbers", "calculations", "roi", "pricing"}, "financial modeling and quantitative analysis", true},
		{AgentStrategyAnalyst, []string{"strategy", "frameworks", "positioning", "decisions"}, "strategic frameworks and decision analysis", true},
		{AgentPeopleAdvisor, []string{"people", "team", "culture", "hiring", "organization"}, "organizational dynamics", false},
		{AgentExecutionArchitect, []string{"execution", "timeline", "resources", "implementation"}, "execution planning", false},
	}
}

// AgentRouter applies the activation rule table.
type AgentRouter struct {
	profiles []AgentProfile
	logger   *slog.Logger
}

func NewAgentRouter(profiles []AgentProfile, logger *slog.Logger) *AgentRouter {
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}
	return &AgentRouter{profiles: profiles, logger: logger}
}

func (r *AgentRouter) available() []AgentProfile {
	var out []AgentProfile
	for _, p := range r.profiles {
		if p.Available {
			out = append(out, p)
		}
	}
	return out
}

func (r *AgentRouter) isAvailable(a Agent) bool {
	for _, p := range r.available() {
		if p.Name == a {
			return true
		}
	}
	return false
}

func (r *AgentRouter) Route(c classifier.Classification) RoutingDecision {
	var acts []Activation
	has := func(a Agent) bool {
		for _, x := range acts {
			if x.Agent == a {
				return true
			}
		}
		return false
	}

	for _, d := range c.Domains {
		domain := strings.ToLower(string(d))
		for _, p := range r.available() {
			if has(p.Name) || !coversDomain(p, domain) {
				continue
			}
			acts = append(acts, Activation{
				Agent:     p.Name,
				Priority:  priorityFor(p.Name, domain, c.Complexity),
				Reasoning: fmt.Sprintf("Activated for %s domain - provides %s", domain, p.Expertise),
			})
		}
	}

	switch c.Type {
	case classifier.TypeDecision:
		if !has(AgentFinancialGuardian) && r.isAvailable(AgentFinancialGuardian) {
			acts = append(acts, Activation{AgentFinancialGuardian, PrioritySecondary, "Decisions require financial impact assessment"})
		}
		if !has(AgentStrategyAnalyst) && r.isAvailable(AgentStrategyAnalyst) {
			acts = append(acts, Activation{AgentStrategyAnalyst, PriorityPrimary, "Strategic analysis crucial for decisions"})
		}
	case classifier.TypeExploration:
		for _, p := range r.available() {
			if !has(p.Name) {
				acts = append(acts, Activation{p.Name, PrioritySecondary, "Exploration benefits from multiple perspectives"})
			}
		}
	case classifier.TypeValidation:
		acts = onlyPrimary(acts)
	case classifier.TypeCrisis:
		if !has(AgentStrategyAnalyst) {
			acts = append(acts, Activation{AgentStrategyAnalyst, PriorityPrimary, "Crisis requires strategic triage"})
		}
	}

	if c.Complexity == classifier.ComplexitySimple && len(acts) > 1 {
		primary := onlyPrimary(acts)
		if len(primary) > 1 {
			primary = primary[:1]
		}
		acts = primary
	}

	if len(acts) == 0 {
		acts = []Activation{{AgentStrategyAnalyst, PriorityPrimary, "Default agent for general strategic questions"}}
	}

	decision := RoutingDecision{
		Activations: acts,
		Strategy:    StrategyParallel,
		Reasoning:   routingReasoning(acts, c),
	}
	if r.logger != nil {
		r.logger.Info("agent routing decision", "agents", decision.Agents(), "strategy", decision.Strategy)
	}
	return decision
}

func coversDomain(p AgentProfile, domain string) bool {
	for _, kw := range p.Keywords {
		if strings.Contains(domain, kw) {
			return true
		}
	}
	return false
}

func priorityFor(agent Agent, domain string, complexity classifier.Complexity) Priority {
	switch {
	case strings.Contains(domain, "market") && agent == AgentMarketCompass:
		return PriorityPrimary
	case containsAny(domain, "finance", "pricing", "roi") && agent == AgentFinancialGuardian:
		return PriorityPrimary
	case strings.Contains(domain, "strategy") && agent == AgentStrategyAnalyst:
		return PriorityPrimary
	case complexity == classifier.ComplexityComplex:
		return PriorityPrimary
	default:
		return PrioritySecondary
	}
}

func onlyPrimary(acts []Activation) []Activation {
	var out []Activation
	for _, a := range acts {
		if a.Priority == PriorityPrimary {
			out = append(out, a)
		}
	}
	return out
}

func routingReasoning(acts []Activation, c classifier.Classification) string {
	names := make([]string, len(acts))
	for i, a := range acts {
		names[i] = a.Agent.DisplayName()
	}

	var reasons []string
	switch len(acts) {
	case 1:
		reasons = append(reasons, fmt.Sprintf("Single agent (%s) sufficient for focused query", names[0]))
	case 2:
		reasons = append(reasons, fmt.Sprintf("Two agents (%s) for dual perspective", strings.Join(names, ", ")))
	default:
		reasons = append(reasons, fmt.Sprintf("Multiple agents (%s) for comprehensive analysis", strings.Join(names, ", ")))
	}
	if len(c.Domains) >= 3 {
		reasons = append(reasons, fmt.Sprintf("Multi-domain question (%d domains)", len(c.Domains)))
	}
	if c.Complexity == classifier.ComplexityComplex {
		reasons = append(reasons, "Complex question benefits from multiple expert perspectives")
	}
	switch c.Type {
	case classifier.TypeDecision:
		reasons = append(reasons, "Decision requires balanced analysis across dimensions")
	case classifier.TypeExploration:
		reasons = append(reasons, "Exploration enhanced by diverse viewpoints")
	}
	return strings.Join(reasons, " | ")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
