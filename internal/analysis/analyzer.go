package analysis

import (
	"context"

	"outreach-platform/internal/calls"
	"outreach-platform/pkg/logger"
)

// TranscriptAnalyzer produces a structured analysis for a finished call.
// Implementations must always return a Result; analysis errors are absorbed
// into the heuristic fallback, not propagated.
type TranscriptAnalyzer interface {
	Analyze(ctx context.Context, c calls.Call) Result
}

// LLMBackend is the slice of LLMClient the analyzer depends on, kept as an
// interface so tests can substitute failures.
type LLMBackend interface {
	Available() bool
	AnalyzeTranscript(ctx context.Context, transcript string, durationSeconds int, priorSummary string) (Result, error)
}

// Analyzer tries the language model first and degrades to the deterministic
// heuristic when the model is unconfigured, unreachable, or returns a payload
// that does not parse.
type Analyzer struct {
	llm LLMBackend
}

func NewAnalyzer(llm LLMBackend) *Analyzer {
	return &Analyzer{llm: llm}
}

func (a *Analyzer) Analyze(ctx context.Context, c calls.Call) Result {
	if a.llm == nil || !a.llm.Available() || c.Transcript == "" {
		return Heuristic(c)
	}

	res, err := a.llm.AnalyzeTranscript(ctx, c.Transcript, c.DurationSeconds, c.Summary)
	if err != nil {
		logger.From(ctx).Warn("llm analysis failed, using heuristic",
			"call_id", c.ID, "err", err)
		return Heuristic(c)
	}
	return res
}
