package qualify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"outreach-platform/internal/analysis"
	"outreach-platform/internal/calls"
	"outreach-platform/internal/leads"
	"outreach-platform/pkg/logger"
)

// Engine converts a call plus its analysis into a qualification decision.
//
// Priority of signals (additive, applied in order):
//  1) duration bracket (longest wins)
//  2) call outcome
//  3) sentiment containment
//  4) summary keyword scan
//  5) buying-signal bonus
//
// The engine returns the decision AND persists it; a computed-but-unrecorded
// qualification leaves the call inconsistent, so persistence failures are
// surfaced to the caller rather than swallowed.
//
// The summary keyword scan is literal string containment by documented
// behavior; thresholds and phrases below are part of the external contract.

type Decision struct {
	Score          float64                   `json:"score"`
	Recommendation calls.Recommendation      `json:"recommendation"`
	Status         calls.QualificationStatus `json:"status"`
}

// Materializer creates-or-updates the lead for an accepted call.
// Implemented by leads.Materializer; kept as a local interface so the engine
// is testable without the store.
type Materializer interface {
	Materialize(ctx context.Context, c calls.Call, r analysis.Result) (leadID string, err error)
}

// AlertPublisher receives compliance alerts (e.g. a "do not call" request
// detected in the call summary). Best-effort; failures are not returned.
type AlertPublisher interface {
	ComplianceAlert(ctx context.Context, organizationID, callID, reason string)
}

// ComplianceAuditor writes the durable audit record that accompanies a
// compliance alert. Implemented by audit.Service. Best-effort, like the
// alert itself.
type ComplianceAuditor interface {
	LogCompliance(ctx context.Context, organizationID, campaignID, callID, message string) error
}

type Engine struct {
	repo         calls.Repository
	materializer Materializer
	alerts       AlertPublisher
	auditor      ComplianceAuditor
}

var ErrNotConfigured = errors.New("qualify: repository not configured")

func NewEngine(repo calls.Repository, m Materializer, alerts AlertPublisher) *Engine {
	return &Engine{repo: repo, materializer: m, alerts: alerts}
}

// SetAuditor installs the audit trail for compliance detections.
func (e *Engine) SetAuditor(a ComplianceAuditor) { e.auditor = a }

// Qualify scores the call, persists the decision, and (for auto-accepted
// calls) synchronously materializes the lead.
func (e *Engine) Qualify(ctx context.Context, c calls.Call, r analysis.Result) (Decision, error) {
	if e.repo == nil {
		return Decision{}, ErrNotConfigured
	}
	if c.ID == "" || c.OrganizationID == "" {
		return Decision{}, calls.ErrInvalidArgument
	}

	d := Decide(c)

	if strings.Contains(strings.ToLower(c.Summary), "do not call") {
		const reason = "prospect requested do-not-call"
		if e.alerts != nil {
			e.alerts.ComplianceAlert(ctx, c.OrganizationID, c.ID, reason)
		}
		if e.auditor != nil {
			if err := e.auditor.LogCompliance(ctx, c.OrganizationID, c.CampaignID, c.ID, reason); err != nil {
				logger.From(ctx).Warn("compliance audit record failed", "call_id", c.ID, "error", err)
			}
		}
	}

	if err := e.repo.SaveQualification(ctx, c.OrganizationID, c.ID, d.Score, d.Recommendation, d.Status); err != nil {
		return Decision{}, fmt.Errorf("qualify: persist decision for call %s: %w", c.ID, err)
	}

	if d.Status == calls.QualificationAutoAccepted && e.materializer != nil {
		c.AIConfidenceScore = d.Score
		c.QualificationStatus = d.Status
		c.Recommendation = d.Recommendation
		if _, err := e.materializer.Materialize(ctx, c, r); err != nil {
			// Missing phone is a business-rule outcome already recorded on the
			// call; anything else bubbles up for retry.
			if !errors.Is(err, leads.ErrMissingPhone) {
				return d, err
			}
			logger.From(ctx).Info("auto-accepted call had no phone number", "call_id", c.ID)
		}
	}

	return d, nil
}

// Decide is the pure scoring function: deterministic given a Call, no side
// effects, always returns a score in [0,1].
func Decide(c calls.Call) Decision {
	score := c.AIConfidenceScore
	if score == 0 {
		score = computeScore(c)
	}
	score = calls.ClampScore(score)

	rec := recommend(score, c.BuyingSignals)
	return Decision{
		Score:          score,
		Recommendation: rec,
		Status:         status(score, rec),
	}
}

func computeScore(c calls.Call) float64 {
	score := 0.5

	// Duration brackets are mutually exclusive; the longest wins.
	switch {
	case c.DurationSeconds > 180:
		score += 0.2
	case c.DurationSeconds > 120:
		score += 0.15
	case c.DurationSeconds > 60:
		score += 0.1
	case c.DurationSeconds < 30:
		score -= 0.2
	}

	switch c.Status {
	case calls.CallStatusAnswered, calls.CallStatusCompleted:
		score += 0.1
	case calls.CallStatusVoicemail, calls.CallStatusNoAnswer:
		score -= 0.3
	}

	sentiment := strings.ToLower(c.Sentiment)
	if strings.Contains(sentiment, "positive") || strings.Contains(sentiment, "interested") {
		score += 0.2
	}
	if strings.Contains(sentiment, "negative") || strings.Contains(sentiment, "not interested") {
		score -= 0.3
	}

	summary := strings.ToLower(c.Summary)
	for _, kw := range summaryKeywords {
		if strings.Contains(summary, kw.phrase) {
			score += kw.weight
		}
	}
	if strings.Contains(summary, "follow up") || strings.Contains(summary, "callback") {
		score += 0.1
	}

	if len(c.BuyingSignals) > 10 {
		score += 0.2
	}

	return calls.ClampScore(score)
}

var summaryKeywords = []struct {
	phrase string
	weight float64
}{
	{"interested", 0.15},
	{"budget", 0.1},
	{"timeline", 0.1},
	{"decision maker", 0.15},
	{"not interested", -0.3},
	{"no budget", -0.2},
	{"already has", -0.15},
	{"do not call", -0.5},
}

func recommend(score float64, buyingSignals string) calls.Recommendation {
	if score >= 0.8 {
		return calls.RecommendationAccept
	}
	if score < 0.4 {
		if buyingSignals == "" {
			return calls.RecommendationDecline
		}
		return calls.RecommendationReview
	}
	return calls.RecommendationReview
}

func status(score float64, rec calls.Recommendation) calls.QualificationStatus {
	if score >= 0.9 && rec == calls.RecommendationAccept {
		return calls.QualificationAutoAccepted
	}
	if score < 0.3 && rec == calls.RecommendationDecline {
		return calls.QualificationAutoDeclined
	}
	return calls.QualificationPending
}
