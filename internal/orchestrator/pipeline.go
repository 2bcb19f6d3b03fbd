// Package orchestrator sequences one question through the advisory pipeline:
// analyze, route, execute, synthesize, quality, finalize.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/counsel/internal/agents"
	"github.com/MikeSquared-Agency/counsel/internal/classifier"
	"github.com/MikeSquared-Agency/counsel/internal/llm"
	"github.com/MikeSquared-Agency/counsel/internal/quality"
	"github.com/MikeSquared-Agency/counsel/internal/routing"
	"github.com/MikeSquared-Agency/counsel/internal/synthesis"
)

// ContextProvider supplies free-text user context when the request has none.
type ContextProvider interface {
	UserContext(ctx context.Context, userID string) (string, error)
}

// InteractionRecorder is an optional extension of ContextProvider for
// memories that learn from finished runs.
type InteractionRecorder interface {
	RecordInteraction(ctx context.Context, userID string, topics []string) error
}

// Persister stores a completed run. Failures are logged, never returned.
type Persister interface {
	SaveRun(ctx context.Context, s *PipelineState) error
}

// Reviewer is told about runs whose quality gates failed.
type Reviewer interface {
	ReviewRun(ctx context.Context, s *PipelineState) error
}

// Deps are the collaborators of a pipeline. Memory, Persisters and Reviewer
// are optional.
type Deps struct {
	Classifier  classifier.Classifier
	Tone        *classifier.ToneDetector
	AgentRouter *routing.AgentRouter
	Executor    *agents.Executor
	Synthesizer *synthesis.Synthesizer
	Gates       *quality.Gates
	Marker      *quality.Marker
	Memory      ContextProvider
	Persisters  []Persister
	Reviewer    Reviewer
}

type Pipeline struct {
	deps   Deps
	logger *slog.Logger
}

func New(deps Deps, logger *slog.Logger) *Pipeline {
	if deps.Classifier == nil {
		deps.Classifier = classifier.New()
	}
	if deps.Tone == nil {
		deps.Tone = classifier.NewToneDetector()
	}
	return &Pipeline{deps: deps, logger: logger}
}

// Run takes a question through every stage. The returned state always
// carries a narrative unless the request is invalid or a stage fails in a
// way it cannot recover from, in which case a *StageError is returned and
// an error event is published.
func (p *Pipeline) Run(ctx context.Context, req Request, sink Sink) (*PipelineState, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.RunID == "" {
		req.RunID = uuid.New().String()
	} else {
		req.RunID = uuid.MustParse(req.RunID).String()
	}
	if sink == nil {
		sink = MultiSink(nil)
	}

	s := newState(req)
	logger := p.logger.With("run_id", s.RunID)
	logger.Info("pipeline started", "user_id", req.UserID, "workspace_id", req.WorkspaceID)

	stages := []struct {
		name Stage
		fn   func(context.Context, *PipelineState, Sink, *slog.Logger)
	}{
		{StageAnalyze, p.analyze},
		{StageRoute, p.route},
		{StageExecute, p.execute},
		{StageSynthesize, p.synthesize},
		{StageQuality, p.assess},
		{StageFinalize, p.finalize},
	}
	for _, st := range stages {
		if err := runStage(ctx, st.name, s, sink, logger, st.fn); err != nil {
			logger.Error("pipeline failed", "stage", st.name, "error", err)
			sink.Publish(ctx, Event{
				Type:      EventError,
				RunID:     s.RunID,
				Stage:     st.name,
				Data:      errorData{Message: err.Error()},
				Timestamp: time.Now(),
			})
			return s, err
		}
	}

	p.persist(ctx, s, logger)
	return s, nil
}

// runStage turns a panic inside a stage into a StageError.
func runStage(
	ctx context.Context,
	name Stage,
	s *PipelineState,
	sink Sink,
	logger *slog.Logger,
	fn func(context.Context, *PipelineState, Sink, *slog.Logger),
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	start := time.Now()
	fn(ctx, s, sink, logger)
	s.Stage = name
	logger.Info("stage complete", "stage", name, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func (p *Pipeline) emit(ctx context.Context, sink Sink, s *PipelineState, stage Stage, t EventType, data any) {
	sink.Publish(ctx, Event{Type: t, RunID: s.RunID, Stage: stage, Data: data, Timestamp: time.Now()})
}

func (p *Pipeline) analyze(ctx context.Context, s *PipelineState, sink Sink, logger *slog.Logger) {
	s.UserContext = s.Request.UserContext
	if s.UserContext == "" && s.Request.UserID != "" && p.deps.Memory != nil {
		uc, err := p.deps.Memory.UserContext(ctx, s.Request.UserID)
		if err != nil {
			logger.Warn("user context unavailable", "error", err)
		}
		s.UserContext = uc
	}

	if c, ok := p.classify(s.Request.Question, logger); ok {
		s.Classification = c
	} else {
		s.AnalysisFailed = true
		s.Classification = classifier.Classification{
			Type:       classifier.TypeExploration,
			Domains:    []classifier.Domain{classifier.DomainStrategy},
			Urgency:    classifier.UrgencyRoutine,
			Complexity: classifier.ComplexityMedium,
		}
	}
	s.Tone = p.deps.Tone.Detect(s.Request.Question)
	s.Style = classifier.DetectStyle(s.Request.Question, s.Request.History)

	c := s.Classification
	domains := make([]string, len(c.Domains))
	for i, d := range c.Domains {
		domains[i] = string(d)
	}
	logger.Info("question analyzed",
		"type", c.Type,
		"domains", domains,
		"urgency", c.Urgency,
		"complexity", c.Complexity,
		"emotional_state", s.Tone.State,
	)
	p.emit(ctx, sink, s, StageAnalyze, EventClassification, classificationData{
		Type:       string(c.Type),
		Domains:    domains,
		Urgency:    string(c.Urgency),
		Complexity: string(c.Complexity),
		Emotional:  string(s.Tone.State),
		Style:      string(s.Style),
	})
}

// classify isolates a misbehaving classifier so analysis can fall back.
func (p *Pipeline) classify(question string, logger *slog.Logger) (c classifier.Classification, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("classification failed, using defaults", "error", r)
			ok = false
		}
	}()
	c = p.deps.Classifier.Classify(question)
	return c, len(c.Domains) > 0
}

func (p *Pipeline) route(ctx context.Context, s *PipelineState, sink Sink, logger *slog.Logger) {
	s.Routing = p.routeSafely(s.Classification, logger)

	names := make([]string, 0, len(s.Routing.Activations))
	for _, a := range s.Routing.Activations {
		names = append(names, string(a.Agent))
	}
	logger.Info("agents routed", "agents", names, "strategy", s.Routing.Strategy)
	p.emit(ctx, sink, s, StageRoute, EventAgentsActivated, agentsActivatedData{
		Agents:    names,
		Strategy:  string(s.Routing.Strategy),
		Reasoning: s.Routing.Reasoning,
	})
}

// routeSafely falls back to every implemented specialist if the router
// misbehaves.
func (p *Pipeline) routeSafely(c classifier.Classification, logger *slog.Logger) (d routing.RoutingDecision) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("routing failed, activating all specialists", "error", r)
			d = routing.RoutingDecision{Strategy: routing.StrategyParallel, Reasoning: "Fallback: All agents"}
			for _, a := range []routing.Agent{routing.AgentMarketCompass, routing.AgentFinancialGuardian, routing.AgentStrategyAnalyst} {
				d.Activations = append(d.Activations, routing.Activation{Agent: a, Priority: routing.PriorityPrimary, Reasoning: "fallback"})
			}
		}
	}()
	return p.deps.AgentRouter.Route(c)
}

func (p *Pipeline) execute(ctx context.Context, s *PipelineState, sink Sink, logger *slog.Logger) {
	in := agents.Input{
		Question:       s.Request.Question,
		UserContext:    s.UserContext,
		Classification: s.Classification,
		Tone:           s.Tone,
	}
	out := p.deps.Executor.Run(ctx, s.Activated(), in, func(r *agents.Result) {
		p.emit(ctx, sink, s, StageExecute, EventAgentComplete, agentCompleteData{
			Agent:     string(r.Agent),
			Success:   r.Success,
			FromCache: r.FromCache,
			Elapsed:   seconds(r.Elapsed),
			Error:     r.Error,
		})
	})
	s.Specialists = out.Results
	s.Failed = out.Failed
	s.ExecuteTime = out.Elapsed
	s.SpecialistsFromCache = out.AllFromCache()

	logger.Info("specialists finished",
		"succeeded", len(out.Results),
		"failed", len(out.Failed),
		"elapsed_ms", out.Elapsed.Milliseconds(),
	)
}

func (p *Pipeline) synthesize(ctx context.Context, s *PipelineState, sink Sink, logger *slog.Logger) {
	results := s.Succeeded()
	if len(results) == 0 {
		logger.Warn("no specialist succeeded, synthesizing directly")
	}
	s.Synthesis = p.deps.Synthesizer.Synthesize(ctx, synthesis.Input{
		Question:       s.Request.Question,
		UserContext:    s.UserContext,
		Classification: s.Classification,
		Tone:           s.Tone,
		Style:          s.Style,
		History:        s.Request.History,
		Results:        results,
	}, func(text string) {
		p.emit(ctx, sink, s, StageSynthesize, EventSynthesisChunk, chunkData{Text: text})
	})
	s.Degraded = s.Synthesis.Degraded
}

func (p *Pipeline) assess(ctx context.Context, s *PipelineState, sink Sink, logger *slog.Logger) {
	elapsed := time.Since(s.StartedAt)
	results := s.Succeeded()

	exempt := s.Synthesis.FromCache && s.SpecialistsFromCache

	s.Quality = p.deps.Gates.Validate(quality.Input{
		Question:    s.Request.Question,
		Narrative:   s.Synthesis.Narrative,
		UserContext: s.UserContext,
		Elapsed:     elapsed,
		Urgency:     s.Classification.Urgency,
		ExemptTime:  exempt,
	})

	s.Confidence = p.deps.Marker.Score(quality.ConfidenceInput{
		Narrative:  s.Synthesis.Narrative,
		Complexity: s.Classification.Complexity,
		Type:       s.Classification.Type,
		Model:      s.Synthesis.Model,
	})
	if s.Degraded {
		s.Confidence = s.Confidence.Degrade("No specialist analysis was available.")
	}

	confidences := make([]string, 0, len(results))
	for _, r := range results {
		confidences = append(confidences, r.ConfidenceText)
	}
	s.PipelineQuality = quality.ScorePipeline(s.Synthesis.Narrative, len(s.Activated()), len(results), confidences)

	logger.Info("quality assessed",
		"passed", s.Quality.Passed,
		"confidence", s.Confidence.Level,
		"percentage", s.Confidence.Percentage,
		"pipeline_score", s.PipelineQuality.Score,
	)
}

func (p *Pipeline) finalize(ctx context.Context, s *PipelineState, sink Sink, logger *slog.Logger) {
	results := s.Succeeded()

	md := Metadata{
		AgentsActivated:   s.Activated(),
		AgentsSucceeded:   []routing.Agent{},
		AgentsFailed:      []routing.Agent{},
		AgentTimings:      make(map[routing.Agent]float64),
		AgentErrors:       s.Failed,
		ExecutionStrategy: s.Routing.Strategy,
		QuestionType:      s.Classification.Type,
		Complexity:        s.Classification.Complexity,
		SynthesisModel:    s.Synthesis.Model,
		FromCache:         s.Synthesis.FromCache,
	}

	var (
		cost  float64
		usage llm.Usage
	)
	for _, r := range results {
		md.AgentsSucceeded = append(md.AgentsSucceeded, r.Agent)
		md.AgentTimings[r.Agent] = seconds(r.Elapsed)
		cost += r.Cost
		usage = usage.Add(r.Usage)
	}
	for _, a := range s.Activated() {
		if _, ok := s.Failed[a]; ok {
			md.AgentsFailed = append(md.AgentsFailed, a)
		}
	}
	cost += s.Synthesis.Cost
	usage = usage.Add(s.Synthesis.Usage)

	s.TotalTime = time.Since(s.StartedAt)
	s.TotalCost = math.Round(cost*1e6) / 1e6
	md.Tokens = usage
	md.TotalTime = seconds(s.TotalTime)
	md.TotalCost = s.TotalCost

	s.Metadata = md
	s.Narrative = s.Synthesis.Narrative
	s.Success = len(results) > 0 && !s.Degraded

	logger.Info("pipeline complete",
		"success", s.Success,
		"total_ms", s.TotalTime.Milliseconds(),
		"total_cost", s.TotalCost,
		"tokens", usage.Total(),
	)
	p.emit(ctx, sink, s, StageFinalize, EventFinal, s)
}

// persist hands the run to every persister and, when the gates failed, to
// the reviewer. None of these can fail the run.
func (p *Pipeline) persist(ctx context.Context, s *PipelineState, logger *slog.Logger) {
	for _, ps := range p.deps.Persisters {
		if err := ps.SaveRun(ctx, s); err != nil {
			logger.Error("failed to persist run", "error", err)
		}
	}
	if p.deps.Reviewer != nil && !s.Quality.Passed {
		if err := p.deps.Reviewer.ReviewRun(ctx, s); err != nil {
			logger.Warn("failed to request review", "error", err)
		}
	}
	p.remember(ctx, s, logger)
}

// remember records the run's topics in user memory when the memory
// supports it. Runs whose analysis fell back to defaults are skipped.
func (p *Pipeline) remember(ctx context.Context, s *PipelineState, logger *slog.Logger) {
	rec, ok := p.deps.Memory.(InteractionRecorder)
	if !ok || s.Request.UserID == "" || s.AnalysisFailed {
		return
	}
	topics := make([]string, len(s.Classification.Domains))
	for i, d := range s.Classification.Domains {
		topics[i] = string(d)
	}
	if err := rec.RecordInteraction(ctx, s.Request.UserID, topics); err != nil {
		logger.Warn("failed to update user memory", "error", err)
	}
}

func seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
