package analysis

import (
	"strings"

	"outreach-platform/internal/calls"
)

// Heuristic computes the deterministic non-LLM analysis.
//
// Scoring:
//   base 0.5
//   +0.2 duration > 120s
//   +0.1 transcript present
//   +0.2 sentiment positive
// Qualified when the resulting score >= 0.7.
// Outcome is "interested" when duration > 30s, else "not_interested".
func Heuristic(c calls.Call) Result {
	score := 0.5
	if c.DurationSeconds > 120 {
		score += 0.2
	}
	if c.Transcript != "" {
		score += 0.1
	}
	if strings.Contains(strings.ToLower(c.Sentiment), "positive") {
		score += 0.2
	}
	score = calls.ClampScore(score)

	outcome := "not_interested"
	if c.DurationSeconds > 30 {
		outcome = "interested"
	}

	r := Result{
		Outcome:         outcome,
		Sentiment:       c.Sentiment,
		Summary:         c.Summary,
		ConfidenceScore: score,
		IsQualifiedLead: score >= 0.7,
	}
	r.Normalize()
	return r
}
