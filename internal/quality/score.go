package quality

import (
	"fmt"
	"math"
	"strings"
)

// PipelineQuality is the run-level score reported next to the gates. It
// looks at how much of the pipeline delivered, not at the narrative's wording.
type PipelineQuality struct {
	Score    float64  `json:"quality_score"`
	Level    string   `json:"confidence_level"`
	Complete bool     `json:"completeness"`
	Issues   []string `json:"quality_issues"`
}

// ScorePipeline weighs narrative length (0.3), specialist completion (0.3,
// half for a partial set) and the share of specialists reporting high
// confidence (0.4).
func ScorePipeline(narrative string, activated, succeeded int, confidences []string) PipelineQuality {
	q := PipelineQuality{Issues: []string{}}

	if len(narrative) > 100 {
		q.Score += 0.3
	} else {
		q.Issues = append(q.Issues, "Synthesis too short")
	}

	switch {
	case activated > 0 && succeeded == activated:
		q.Score += 0.3
		q.Complete = true
	case succeeded > 0:
		q.Score += 0.15
		q.Issues = append(q.Issues, fmt.Sprintf("Only %d/%d agents succeeded", succeeded, activated))
	default:
		q.Issues = append(q.Issues, "No agents succeeded")
	}

	if len(confidences) > 0 {
		high := 0
		for _, c := range confidences {
			if strings.Contains(c, "🟢") || strings.Contains(c, "High") {
				high++
			}
		}
		q.Score += 0.4 * float64(high) / float64(len(confidences))
	}
	q.Score = math.Round(q.Score*1000) / 1000

	switch {
	case q.Score >= 0.8:
		q.Level = "🟢 High"
	case q.Score >= 0.6:
		q.Level = "🟡 Medium"
	case q.Score >= 0.4:
		q.Level = "🟠 Low"
	default:
		q.Level = "🔴 Very Low"
	}
	return q
}
