package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/counsel/internal/orchestrator"
)

// runRecord is one counsel_runs row.
type runRecord struct {
	ID               uuid.UUID
	UserID           string
	WorkspaceID      string
	Question         string
	QuestionType     string
	Domains          []string
	Urgency          string
	Complexity       string
	EmotionalState   string
	Narrative        string
	SynthesisModel   string
	Success          bool
	Degraded         bool
	QualityPassed    bool
	FailureReasons   []string
	ConfidenceLevel  string
	ConfidencePct    int
	PipelineScore    float64
	PromptTokens     int
	CompletionTokens int
	TotalCost        float64
	TotalTime        float64
	StartedAt        time.Time
}

// specialistRecord is one specialist_results row. Failed agents get a row
// too, with Success false and the error.
type specialistRecord struct {
	Agent          string
	Success        bool
	SubType        string
	Model          string
	ConfidenceText string
	Structured     []byte
	Error          string
	FromCache      bool
	Cost           float64
	Elapsed        float64
}

func newRunRecord(s *orchestrator.PipelineState) (runRecord, error) {
	id, err := uuid.Parse(s.RunID)
	if err != nil {
		return runRecord{}, fmt.Errorf("run id %q: %w", s.RunID, err)
	}
	domains := make([]string, len(s.Classification.Domains))
	for i, d := range s.Classification.Domains {
		domains[i] = string(d)
	}
	failures := s.Quality.FailureReasons
	if failures == nil {
		failures = []string{}
	}
	return runRecord{
		ID:               id,
		UserID:           s.Request.UserID,
		WorkspaceID:      s.Request.WorkspaceID,
		Question:         s.Request.Question,
		QuestionType:     string(s.Classification.Type),
		Domains:          domains,
		Urgency:          string(s.Classification.Urgency),
		Complexity:       string(s.Classification.Complexity),
		EmotionalState:   string(s.Tone.State),
		Narrative:        s.Narrative,
		SynthesisModel:   s.Metadata.SynthesisModel,
		Success:          s.Success,
		Degraded:         s.Degraded,
		QualityPassed:    s.Quality.Passed,
		FailureReasons:   failures,
		ConfidenceLevel:  string(s.Confidence.Level),
		ConfidencePct:    s.Confidence.Percentage,
		PipelineScore:    s.PipelineQuality.Score,
		PromptTokens:     s.Metadata.Tokens.Prompt,
		CompletionTokens: s.Metadata.Tokens.Completion,
		TotalCost:        s.TotalCost,
		TotalTime:        s.Metadata.TotalTime,
		StartedAt:        s.StartedAt,
	}, nil
}

func newSpecialistRecords(s *orchestrator.PipelineState) []specialistRecord {
	var out []specialistRecord
	for _, agent := range s.Activated() {
		if r, ok := s.Specialists[agent]; ok {
			out = append(out, specialistRecord{
				Agent:          string(agent),
				Success:        true,
				SubType:        r.SubType,
				Model:          r.Model,
				ConfidenceText: r.ConfidenceText,
				Structured:     []byte(r.Analysis.JSON()),
				FromCache:      r.FromCache,
				Cost:           r.Cost,
				Elapsed:        r.Elapsed.Seconds(),
			})
			continue
		}
		if msg, ok := s.Failed[agent]; ok {
			out = append(out, specialistRecord{Agent: string(agent), Error: msg})
		}
	}
	return out
}

// SaveRun writes the run and its specialist outcomes in one transaction.
// It satisfies orchestrator.Persister.
func (s *Store) SaveRun(ctx context.Context, st *orchestrator.PipelineState) error {
	run, err := newRunRecord(st)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO counsel_runs (id, user_id, workspace_id, question, question_type, domains, urgency, complexity,
			emotional_state, narrative, synthesis_model, success, degraded, quality_passed, failure_reasons,
			confidence_level, confidence_pct, pipeline_score, prompt_tokens, completion_tokens, total_cost,
			total_time_seconds, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (id) DO NOTHING`,
		run.ID, run.UserID, run.WorkspaceID, run.Question, run.QuestionType, run.Domains, run.Urgency, run.Complexity,
		run.EmotionalState, run.Narrative, run.SynthesisModel, run.Success, run.Degraded, run.QualityPassed, run.FailureReasons,
		run.ConfidenceLevel, run.ConfidencePct, run.PipelineScore, run.PromptTokens, run.CompletionTokens, run.TotalCost,
		run.TotalTime, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, r := range newSpecialistRecords(st) {
		var structured any
		if r.Structured != nil {
			structured = r.Structured
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO specialist_results (id, run_id, agent, success, sub_type, model, confidence_text, structured,
				error, from_cache, cost, elapsed_seconds)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			uuid.New(), run.ID, r.Agent, r.Success, r.SubType, r.Model, r.ConfidenceText, structured,
			r.Error, r.FromCache, r.Cost, r.Elapsed,
		)
		if err != nil {
			return fmt.Errorf("insert specialist result: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RunSummary is a compact view of a stored run.
type RunSummary struct {
	ID              uuid.UUID `json:"run_id"`
	Question        string    `json:"question"`
	QuestionType    string    `json:"question_type"`
	Success         bool      `json:"success"`
	QualityPassed   bool      `json:"quality_passed"`
	ConfidenceLevel string    `json:"confidence"`
	TotalCost       float64   `json:"total_cost"`
	CreatedAt       time.Time `json:"created_at"`
}

// RecentRuns lists a user's latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, userID string, limit int) ([]RunSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, question, question_type, success, quality_passed, confidence_level, total_cost, created_at
		FROM counsel_runs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Question, &r.QuestionType, &r.Success, &r.QualityPassed, &r.ConfidenceLevel, &r.TotalCost, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
