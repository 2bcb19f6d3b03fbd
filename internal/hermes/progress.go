package hermes

import (
	"context"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/counsel/internal/orchestrator"
)

// ProgressSink publishes pipeline events on counsel.progress.<run_id>.
type ProgressSink struct {
	pub    Publisher
	logger *slog.Logger
}

func NewProgressSink(pub Publisher, logger *slog.Logger) *ProgressSink {
	return &ProgressSink{pub: pub, logger: logger}
}

// Publish never blocks the pipeline on a broker failure.
func (s *ProgressSink) Publish(_ context.Context, e orchestrator.Event) {
	if err := s.pub.Publish(ProgressSubject(e.RunID), e); err != nil {
		s.logger.Warn("failed to publish progress", "run_id", e.RunID, "type", e.Type, "error", err)
	}
}

// RunCompleted is the summary announced on counsel.run.completed.
type RunCompleted struct {
	RunID          string   `json:"run_id"`
	UserID         string   `json:"user_id,omitempty"`
	WorkspaceID    string   `json:"workspace_id,omitempty"`
	Success        bool     `json:"success"`
	Degraded       bool     `json:"degraded"`
	QualityPassed  bool     `json:"quality_passed"`
	FailureReasons []string `json:"failure_reasons,omitempty"`
	Confidence     string   `json:"confidence"`
	Percentage     int      `json:"confidence_percentage"`
	Agents         []string `json:"agents_succeeded"`
	SynthesisModel string   `json:"synthesis_model"`
	TotalCost      float64  `json:"total_cost"`
	TotalTime      float64  `json:"total_time"`
	CompletedAt    string   `json:"completed_at"`
}

func NewRunCompleted(s *orchestrator.PipelineState) RunCompleted {
	agents := make([]string, 0, len(s.Metadata.AgentsSucceeded))
	for _, a := range s.Metadata.AgentsSucceeded {
		agents = append(agents, string(a))
	}
	return RunCompleted{
		RunID:          s.RunID,
		UserID:         s.Request.UserID,
		WorkspaceID:    s.Request.WorkspaceID,
		Success:        s.Success,
		Degraded:       s.Degraded,
		QualityPassed:  s.Quality.Passed,
		FailureReasons: s.Quality.FailureReasons,
		Confidence:     string(s.Confidence.Level),
		Percentage:     s.Confidence.Percentage,
		Agents:         agents,
		SynthesisModel: s.Metadata.SynthesisModel,
		TotalCost:      s.TotalCost,
		TotalTime:      s.Metadata.TotalTime,
		CompletedAt:    time.Now().UTC().Format(time.RFC3339),
	}
}

// Announcer publishes a RunCompleted for every saved run. It satisfies
// orchestrator.Persister.
type Announcer struct {
	pub Publisher
}

func NewAnnouncer(pub Publisher) *Announcer {
	return &Announcer{pub: pub}
}

func (a *Announcer) SaveRun(_ context.Context, s *orchestrator.PipelineState) error {
	return a.pub.Publish(SubjectRunCompleted, NewRunCompleted(s))
}
