package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/counsel/internal/orchestrator"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// maxThreadChars keeps the narrative reply under Slack's message limit.
const maxThreadChars = 3500

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// ReviewRun posts a run that failed its quality gates to the review
// channel, with the narrative in a thread reply. It satisfies
// orchestrator.Reviewer.
func (p *Poster) ReviewRun(ctx context.Context, s *orchestrator.PipelineState) error {
	text := formatReviewMessage(s)

	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": "Run `" + s.RunID + "` | React: :+1: acceptable | :-1: needs prompt work",
					},
				},
			},
		},
	})
	if err != nil {
		return err
	}
	p.logger.Info("posted review to slack", "ts", ts, "run_id", s.RunID)

	if s.Narrative != "" {
		if err := p.PostThread(ctx, ts, truncate(s.Narrative, maxThreadChars)); err != nil {
			p.logger.Warn("failed to post narrative thread", "run_id", s.RunID, "error", err)
		}
	}
	return nil
}

// PostThread posts a threaded reply to a message.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	_, err := p.post(ctx, map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	return err
}

// post sends one chat.postMessage call and returns the message timestamp.
func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatReviewMessage(s *orchestrator.PipelineState) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Quality gate failed* for run %s\n", s.RunID)
	fmt.Fprintf(&sb, "*Question:* %s\n", truncate(s.Request.Question, 300))
	fmt.Fprintf(&sb, "*Type:* %s | *Urgency:* %s | *Complexity:* %s\n",
		s.Classification.Type, s.Classification.Urgency, s.Classification.Complexity)

	if len(s.Quality.FailureReasons) > 0 {
		fmt.Fprintf(&sb, "*Failed checks:* %s\n", strings.Join(s.Quality.FailureReasons, ", "))
	}
	fmt.Fprintf(&sb, "*Confidence:* %s (%d%%)\n", s.Confidence.Level, s.Confidence.Percentage)

	md := s.Metadata
	fmt.Fprintf(&sb, "*Agents:* %d/%d succeeded", len(md.AgentsSucceeded), len(md.AgentsActivated))
	if len(md.AgentsFailed) > 0 {
		failed := make([]string, len(md.AgentsFailed))
		for i, a := range md.AgentsFailed {
			failed[i] = a.DisplayName()
		}
		fmt.Fprintf(&sb, " (failed: %s)", strings.Join(failed, ", "))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "*Time:* %.2fs | *Cost:* $%.4f | *Model:* %s", md.TotalTime, s.TotalCost, md.SynthesisModel)

	if s.Degraded {
		sb.WriteString("\n_Degraded: no specialist analysis was available._")
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
