package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/counsel/internal/agents"
	"github.com/MikeSquared-Agency/counsel/internal/cache"
	"github.com/MikeSquared-Agency/counsel/internal/classifier"
	"github.com/MikeSquared-Agency/counsel/internal/llm"
	"github.com/MikeSquared-Agency/counsel/internal/llm/llmtest"
	"github.com/MikeSquared-Agency/counsel/internal/parser"
	"github.com/MikeSquared-Agency/counsel/internal/prompts"
	"github.com/MikeSquared-Agency/counsel/internal/quality"
	"github.com/MikeSquared-Agency/counsel/internal/routing"
	"github.com/MikeSquared-Agency/counsel/internal/synthesis"
)

const pivotQuestion = "Should we pivot to enterprise market?"

const goodNarrative = `You're right to consider enterprise timing carefully. Given your current
runway and team size, here's what matters: The market window is real,
but cash is your constraint. So the real decision isn't "should we pivot?"
but "how do we fund the pivot?" Three paths: raise capital, bootstrap
with different approach, or delay entry. What's your read on which
constraint you can move first?`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedClassifier struct {
	c     classifier.Classification
	panic bool
}

func (f fixedClassifier) Classify(string) classifier.Classification {
	if f.panic {
		panic("classifier exploded")
	}
	return f.c
}

func pivotClassification() classifier.Classification {
	return classifier.Classification{
		Type:       classifier.TypeDecision,
		Domains:    []classifier.Domain{classifier.DomainMarket, classifier.DomainStrategy},
		Urgency:    classifier.UrgencyImportant,
		Complexity: classifier.ComplexityMedium,
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type savedRuns struct {
	mu   sync.Mutex
	runs []*PipelineState
	err  error
}

func (s *savedRuns) SaveRun(_ context.Context, st *PipelineState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, st)
	return s.err
}

func (s *savedRuns) ReviewRun(ctx context.Context, st *PipelineState) error {
	return s.SaveRun(ctx, st)
}

type staticMemory string

func (m staticMemory) UserContext(context.Context, string) (string, error) {
	return string(m), nil
}

// learningMemory also records interactions.
type learningMemory struct {
	staticMemory
	users  []string
	topics [][]string
	err    error
}

func (m *learningMemory) RecordInteraction(_ context.Context, userID string, topics []string) error {
	m.users = append(m.users, userID)
	m.topics = append(m.topics, topics)
	return m.err
}

// newDeps wires real components around scripted providers. cloud answers
// both specialists and synthesis; the local model answers the parser.
func newDeps(cloud *llmtest.Provider) Deps {
	logger := discardLogger()
	local := llmtest.Text(llm.KindOllama, `{"analysis": "structured", "calculation": "structured", "decision_reframe": "structured", "confidence": "🟢 High"}`)
	registry := llm.NewRegistry(cloud, local)
	models := routing.NewModelRouter(nil, registry, logger)
	store := cache.NewMemory(logger)
	loader := prompts.NewLoader("", store, logger)
	p := parser.New(local, routing.ModelOllama, logger)

	return Deps{
		Classifier:  fixedClassifier{c: pivotClassification()},
		AgentRouter: routing.NewAgentRouter(nil, logger),
		Executor:    agents.NewExecutor(agents.NewSpecialists(registry, models, p, loader, store, logger), logger),
		Synthesizer: synthesis.New(registry, models, loader, store, "", logger),
		Gates:       quality.NewGates(0, logger),
		Marker:      quality.NewMarker(logger),
	}
}

func TestRun_HappyPath(t *testing.T) {
	cloud := llmtest.Text(llm.KindAnthropic, goodNarrative)
	p := New(newDeps(cloud), discardLogger())
	rec := &recorder{}

	s, err := p.Run(context.Background(), Request{Question: pivotQuestion, UserContext: "Series A SaaS CEO"}, rec)
	require.NoError(t, err)

	activated := s.Activated()
	require.NotEmpty(t, activated)
	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, StageFinalize, s.Stage)
	assert.True(t, s.Success)
	assert.False(t, s.Degraded)
	assert.Equal(t, goodNarrative, s.Narrative)
	assert.True(t, s.Quality.Passed, "failures: %v", s.Quality.FailureReasons)
	assert.Len(t, s.Specialists, len(activated))
	assert.Empty(t, s.Failed)

	md := s.Metadata
	assert.Equal(t, activated, md.AgentsActivated)
	assert.Len(t, md.AgentsSucceeded, len(activated))
	assert.Empty(t, md.AgentsFailed)
	assert.Equal(t, classifier.TypeDecision, md.QuestionType)
	assert.Equal(t, routing.ModelClaudeSonnet, md.SynthesisModel)
	assert.Greater(t, s.TotalCost, 0.0)
	assert.Equal(t, s.TotalCost, md.TotalCost)
	assert.Greater(t, md.Tokens.Total(), 0)

	types := rec.types()
	require.GreaterOrEqual(t, len(types), 3+len(activated)+1)
	assert.Equal(t, EventClassification, types[0])
	assert.Equal(t, EventAgentsActivated, types[1])
	for i := 0; i < len(activated); i++ {
		assert.Equal(t, EventAgentComplete, types[2+i])
	}
	for _, tp := range types[2+len(activated) : len(types)-1] {
		assert.Equal(t, EventSynthesisChunk, tp)
	}
	assert.Equal(t, EventFinal, types[len(types)-1])

	var streamed strings.Builder
	for _, e := range rec.events {
		if e.Type == EventSynthesisChunk {
			streamed.WriteString(e.Data.(chunkData).Text)
		}
		assert.Equal(t, s.RunID, e.RunID)
	}
	assert.Equal(t, goodNarrative, streamed.String())
}

func TestRun_AllSpecialistsFail(t *testing.T) {
	cloud := llmtest.Fail(llm.KindAnthropic, errors.New("overloaded"))
	p := New(newDeps(cloud), discardLogger())
	rec := &recorder{}

	s, err := p.Run(context.Background(), Request{Question: pivotQuestion}, rec)
	require.NoError(t, err, "failing specialists must not fail the run")

	assert.Empty(t, s.Specialists)
	assert.Len(t, s.Failed, len(s.Activated()))
	assert.True(t, s.Degraded)
	assert.False(t, s.Success)
	assert.NotEmpty(t, s.Narrative)
	assert.LessOrEqual(t, s.Confidence.Percentage, 49)
	assert.Equal(t, quality.LevelSpeculative, s.Confidence.Level)
	assert.ElementsMatch(t, s.Activated(), s.Metadata.AgentsFailed)

	completes := 0
	for _, e := range rec.events {
		if e.Type == EventAgentComplete {
			completes++
			assert.False(t, e.Data.(agentCompleteData).Success)
		}
	}
	assert.Equal(t, len(s.Activated()), completes)
	assert.Equal(t, EventFinal, rec.types()[len(rec.events)-1])
}

func TestRun_DirectSynthesisWhenSpecialistsFail(t *testing.T) {
	logger := discardLogger()
	cloud := llmtest.Fail(llm.KindAnthropic, errors.New("overloaded"))
	gemini := llmtest.Text(llm.KindGemini, goodNarrative)
	local := llmtest.Text(llm.KindOllama, `{"analysis": "x"}`)
	registry := llm.NewRegistry(cloud, gemini, local)
	models := routing.NewModelRouter(nil, registry, logger)
	store := cache.NewMemory(logger)
	loader := prompts.NewLoader("", store, logger)

	deps := newDeps(cloud)
	deps.Executor = agents.NewExecutor(agents.NewSpecialists(registry, models, parser.New(local, routing.ModelOllama, logger), loader, store, logger), logger)
	deps.Synthesizer = synthesis.New(registry, models, loader, store, routing.ModelGeminiFlash, logger)

	s, err := New(deps, logger).Run(context.Background(), Request{Question: pivotQuestion}, nil)
	require.NoError(t, err)

	assert.Equal(t, goodNarrative, s.Narrative)
	assert.True(t, s.Degraded)
	assert.False(t, s.Synthesis.Fallback)
	assert.False(t, s.Success)
	assert.Equal(t, quality.LevelSpeculative, s.Confidence.Level)
	assert.Contains(t, gemini.Calls()[0].Prompt, "none are available")
}

func TestRun_Validation(t *testing.T) {
	p := New(newDeps(llmtest.Text(llm.KindAnthropic, "unused")), discardLogger())

	_, err := p.Run(context.Background(), Request{Question: "   "}, nil)
	assert.ErrorIs(t, err, ErrQuestionRequired)

	_, err = p.Run(context.Background(), Request{Question: strings.Repeat("a", MaxQuestionLength+1)}, nil)
	assert.ErrorIs(t, err, ErrQuestionTooLong)

	_, err = p.Run(context.Background(), Request{Question: pivotQuestion, RunID: "run-42"}, nil)
	assert.ErrorIs(t, err, ErrInvalidRunID)
}

func TestRun_CallerRunIDKept(t *testing.T) {
	p := New(newDeps(llmtest.Text(llm.KindAnthropic, goodNarrative)), discardLogger())
	id := uuid.New()

	s, err := p.Run(context.Background(), Request{Question: pivotQuestion, RunID: strings.ToUpper(id.String())}, nil)
	require.NoError(t, err)
	assert.Equal(t, id.String(), s.RunID)
}

func TestRun_ClassifierPanicFallsBack(t *testing.T) {
	deps := newDeps(llmtest.Text(llm.KindAnthropic, goodNarrative))
	deps.Classifier = fixedClassifier{panic: true}

	s, err := New(deps, discardLogger()).Run(context.Background(), Request{Question: pivotQuestion}, nil)
	require.NoError(t, err)

	assert.True(t, s.AnalysisFailed)
	assert.Equal(t, classifier.TypeExploration, s.Classification.Type)
	assert.Equal(t, []classifier.Domain{classifier.DomainStrategy}, s.Classification.Domains)
	assert.Equal(t, classifier.UrgencyRoutine, s.Classification.Urgency)
	assert.Equal(t, classifier.ComplexityMedium, s.Classification.Complexity)
	assert.NotEmpty(t, s.Narrative)
}

func TestRun_CachedRerunIsTimeExempt(t *testing.T) {
	cloud := llmtest.Text(llm.KindAnthropic, goodNarrative)
	p := New(newDeps(cloud), discardLogger())
	ctx := context.Background()
	req := Request{Question: pivotQuestion, UserContext: "Series A SaaS CEO"}

	first, err := p.Run(ctx, req, nil)
	require.NoError(t, err)
	assert.False(t, first.Quality.TimeLimitExempt)
	assert.False(t, first.SpecialistsFromCache)
	calls := cloud.CallCount()

	second, err := p.Run(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, calls, cloud.CallCount(), "rerun should be served from cache")
	assert.True(t, second.Synthesis.FromCache)
	assert.True(t, second.SpecialistsFromCache)
	assert.True(t, second.Metadata.FromCache)
	assert.True(t, second.Quality.TimeLimitExempt)
	assert.Equal(t, first.Narrative, second.Narrative)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_MemorySuppliesUserContext(t *testing.T) {
	cloud := llmtest.Text(llm.KindAnthropic, goodNarrative)
	deps := newDeps(cloud)
	deps.Memory = staticMemory("Bootstrapped founder, 6 months runway")

	s, err := New(deps, discardLogger()).Run(context.Background(), Request{Question: pivotQuestion, UserID: "u-1"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Bootstrapped founder, 6 months runway", s.UserContext)
	assert.Empty(t, s.Request.UserContext, "the request is left as received")
	assert.Contains(t, cloud.Calls()[0].Prompt, "Bootstrapped founder")
}

func TestRun_RequestContextWinsOverMemory(t *testing.T) {
	cloud := llmtest.Text(llm.KindAnthropic, goodNarrative)
	deps := newDeps(cloud)
	deps.Memory = staticMemory("from memory")

	s, err := New(deps, discardLogger()).Run(context.Background(), Request{Question: pivotQuestion, UserID: "u-1", UserContext: "from request"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "from request", s.UserContext)
	assert.NotContains(t, cloud.Calls()[0].Prompt, "from memory")
}

func TestRun_RecordsInteractionInMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("domains are remembered for the user", func(t *testing.T) {
		deps := newDeps(llmtest.Text(llm.KindAnthropic, goodNarrative))
		deps.Classifier = fixedClassifier{c: pivotClassification()}
		mem := &learningMemory{staticMemory: "Series A CEO", err: errors.New("db down")}
		deps.Memory = mem

		_, err := New(deps, discardLogger()).Run(ctx, Request{Question: pivotQuestion, UserID: "u-1"}, nil)
		require.NoError(t, err, "memory errors are logged only")

		assert.Equal(t, []string{"u-1"}, mem.users)
		assert.Equal(t, [][]string{{"market", "strategy"}}, mem.topics)
	})

	t.Run("anonymous and fallback runs are not remembered", func(t *testing.T) {
		deps := newDeps(llmtest.Text(llm.KindAnthropic, goodNarrative))
		mem := &learningMemory{}
		deps.Memory = mem

		_, err := New(deps, discardLogger()).Run(ctx, Request{Question: pivotQuestion}, nil)
		require.NoError(t, err)

		deps.Classifier = fixedClassifier{panic: true}
		_, err = New(deps, discardLogger()).Run(ctx, Request{Question: pivotQuestion, UserID: "u-1"}, nil)
		require.NoError(t, err)

		assert.Empty(t, mem.users)
	})
}

func TestRun_PersistersAndReviewer(t *testing.T) {
	ctx := context.Background()

	t.Run("passing run is saved but not reviewed", func(t *testing.T) {
		deps := newDeps(llmtest.Text(llm.KindAnthropic, goodNarrative))
		saved, reviewed := &savedRuns{err: errors.New("db down")}, &savedRuns{}
		deps.Persisters = []Persister{saved}
		deps.Reviewer = reviewed

		s, err := New(deps, discardLogger()).Run(ctx, Request{Question: pivotQuestion}, nil)
		require.NoError(t, err, "persistence errors are logged only")
		require.Len(t, saved.runs, 1)
		assert.Same(t, s, saved.runs[0])
		assert.Empty(t, reviewed.runs)
	})

	t.Run("failing gates trigger review", func(t *testing.T) {
		deps := newDeps(llmtest.Text(llm.KindAnthropic, "You should definitely do it. You must act now."))
		reviewed := &savedRuns{}
		deps.Reviewer = reviewed

		s, err := New(deps, discardLogger()).Run(ctx, Request{Question: pivotQuestion}, nil)
		require.NoError(t, err)
		assert.False(t, s.Quality.Passed)
		require.Len(t, reviewed.runs, 1)
	})
}

func TestRun_StagePanicBecomesStageError(t *testing.T) {
	deps := newDeps(llmtest.Text(llm.KindAnthropic, goodNarrative))
	deps.Synthesizer = nil
	rec := &recorder{}

	s, err := New(deps, discardLogger()).Run(context.Background(), Request{Question: pivotQuestion}, rec)
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageSynthesize, se.Stage)
	assert.Equal(t, StageExecute, s.Stage, "state records the last completed stage")

	types := rec.types()
	assert.Equal(t, EventError, types[len(types)-1])
	assert.NotContains(t, types, EventFinal)
}

func TestMultiSink(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	var calls int
	sink := MultiSink{a, nil, b, SinkFunc(func(context.Context, Event) { calls++ })}

	sink.Publish(context.Background(), Event{Type: EventFinal})

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.Equal(t, 1, calls)
}
