package orchestrator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/counsel/internal/agents"
	"github.com/MikeSquared-Agency/counsel/internal/classifier"
	"github.com/MikeSquared-Agency/counsel/internal/llm"
	"github.com/MikeSquared-Agency/counsel/internal/quality"
	"github.com/MikeSquared-Agency/counsel/internal/routing"
	"github.com/MikeSquared-Agency/counsel/internal/synthesis"
)

// StateVersion is bumped whenever PipelineState changes shape.
const StateVersion = 1

// MaxQuestionLength bounds the question text in characters.
const MaxQuestionLength = 5000

type Stage string

const (
	StageAnalyze    Stage = "analyze"
	StageRoute      Stage = "route"
	StageExecute    Stage = "execute"
	StageSynthesize Stage = "synthesize"
	StageQuality    Stage = "quality"
	StageFinalize   Stage = "finalize"
)

var (
	ErrQuestionRequired = errors.New("question is required")
	ErrQuestionTooLong  = errors.New("question exceeds 5000 characters")
	ErrInvalidRunID     = errors.New("run_id must be a UUID")
)

// Request is one incoming question.
type Request struct {
	RunID       string            `json:"run_id,omitempty"`
	Question    string            `json:"question"`
	UserContext string            `json:"user_context,omitempty"`
	WorkspaceID string            `json:"workspace_id,omitempty"`
	UserID      string            `json:"user_id,omitempty"`
	History     []classifier.Turn `json:"conversation_history,omitempty"`
}

// Validate checks the question before any stage runs.
func (r Request) Validate() error {
	q := strings.TrimSpace(r.Question)
	if q == "" {
		return ErrQuestionRequired
	}
	if len([]rune(q)) > MaxQuestionLength {
		return ErrQuestionTooLong
	}
	if r.RunID != "" {
		if _, err := uuid.Parse(r.RunID); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidRunID, r.RunID)
		}
	}
	return nil
}

// PipelineState is the record threaded through the stages. Each stage owns
// its own section and only reads the sections of earlier stages.
type PipelineState struct {
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	Request   Request   `json:"request"`
	StartedAt time.Time `json:"started_at"`
	Stage     Stage     `json:"stage"`

	// analyze
	UserContext    string                       `json:"user_context"`
	Classification classifier.Classification    `json:"classification"`
	Tone           classifier.ToneState         `json:"tone"`
	Style          classifier.ConversationStyle `json:"conversation_style"`
	AnalysisFailed bool                         `json:"analysis_failed,omitempty"`

	// route
	Routing routing.RoutingDecision `json:"routing"`

	// execute
	Specialists          map[routing.Agent]*agents.Result `json:"specialists"`
	Failed               map[routing.Agent]string         `json:"agent_errors"`
	ExecuteTime          time.Duration                    `json:"execute_time"`
	SpecialistsFromCache bool                             `json:"specialists_from_cache"`

	// synthesize
	Synthesis synthesis.Result `json:"synthesis"`
	Degraded  bool             `json:"degraded"`

	// quality
	Quality         quality.Check           `json:"quality"`
	Confidence      quality.Score           `json:"confidence"`
	PipelineQuality quality.PipelineQuality `json:"pipeline_quality"`

	// finalize
	Narrative string        `json:"final_response"`
	Metadata  Metadata      `json:"metadata"`
	TotalTime time.Duration `json:"total_time"`
	TotalCost float64       `json:"total_cost"`
	Success   bool          `json:"success"`
}

// Metadata is the summary packaged with the final narrative.
type Metadata struct {
	AgentsActivated   []routing.Agent           `json:"agents_activated"`
	AgentsSucceeded   []routing.Agent           `json:"agents_succeeded"`
	AgentsFailed      []routing.Agent           `json:"agents_failed"`
	AgentTimings      map[routing.Agent]float64 `json:"agent_timings"`
	AgentErrors       map[routing.Agent]string  `json:"agent_errors"`
	Tokens            llm.Usage                 `json:"tokens"`
	TotalTime         float64                   `json:"total_time"`
	TotalCost         float64                   `json:"total_cost"`
	ExecutionStrategy routing.ExecutionStrategy `json:"execution_strategy"`
	QuestionType      classifier.QuestionType   `json:"question_type"`
	Complexity        classifier.Complexity     `json:"complexity"`
	SynthesisModel    string                    `json:"synthesis_model"`
	FromCache         bool                      `json:"from_cache"`
}

// Activated returns the agents chosen by the route stage.
func (s *PipelineState) Activated() []routing.Agent {
	return s.Routing.Agents()
}

// Succeeded returns the successful specialist results in activation order.
func (s *PipelineState) Succeeded() []*agents.Result {
	return agents.Outcome{Results: s.Specialists}.Succeeded(s.Activated())
}

func newState(req Request) *PipelineState {
	return &PipelineState{
		Version:     StateVersion,
		RunID:       req.RunID,
		Request:     req,
		StartedAt:   time.Now(),
		Specialists: make(map[routing.Agent]*agents.Result),
		Failed:      make(map[routing.Agent]string),
	}
}
