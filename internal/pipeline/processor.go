package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"outreach-platform/internal/analysis"
	"outreach-platform/internal/calls"
	"outreach-platform/internal/leads"
	"outreach-platform/internal/qualify"
	"outreach-platform/internal/reporting"
	"outreach-platform/pkg/logger"
	"outreach-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// ErrBusy means the organization is at its analysis concurrency cap. Callers
// should retry; the webhook surface maps this to 429.
var ErrBusy = errors.New("pipeline: organization analysis cap reached")

// analysisCapTTL bounds how long a stuck slot can block an organization.
const analysisCapTTL = 2 * time.Minute

// EventSink is the slice of the event publisher the processor needs.
type EventSink interface {
	CallUpdated(ctx context.Context, c calls.Call)
	LeadUpdated(ctx context.Context, l leads.Lead)
	CampaignMetrics(ctx context.Context, organizationID, campaignID string, metrics any)
}

// Processor runs the post-call pipeline: analyze, qualify, materialize,
// notify. The whole run is idempotent; redelivered webhooks reprocess the
// call and converge on the same state.
type Processor struct {
	repo      calls.Repository
	leadRepo  leads.Repository
	analyzer  analysis.TranscriptAnalyzer
	engine    *qualify.Engine
	reporting *reporting.Service
	events    EventSink

	rdb      *redis.Client
	capLimit int
}

func NewProcessor(
	repo calls.Repository,
	leadRepo leads.Repository,
	analyzer analysis.TranscriptAnalyzer,
	engine *qualify.Engine,
	reportingSvc *reporting.Service,
	events EventSink,
	rdb *redis.Client,
	capLimit int,
) *Processor {
	return &Processor{
		repo:      repo,
		leadRepo:  leadRepo,
		analyzer:  analyzer,
		engine:    engine,
		reporting: reportingSvc,
		events:    events,
		rdb:       rdb,
		capLimit:  capLimit,
	}
}

// ProcessCompletedCall drives one call through analysis and qualification.
//
// The analyzer only runs when a transcript exists; a voicemail or unanswered
// call is qualified straight from its metadata. Events are published
// best-effort after the state is durably saved.
func (p *Processor) ProcessCompletedCall(ctx context.Context, organizationID, callID string) error {
	if organizationID == "" || callID == "" {
		return calls.ErrInvalidArgument
	}
	if p.repo == nil || p.engine == nil {
		return errors.New("pipeline: processor not configured")
	}

	c, err := p.repo.GetByID(ctx, organizationID, callID)
	if err != nil {
		return fmt.Errorf("pipeline: load call %s: %w", callID, err)
	}

	release, err := p.acquireSlot(ctx, organizationID)
	if err != nil {
		return err
	}
	defer release()

	var result analysis.Result
	if strings.TrimSpace(c.Transcript) != "" && p.analyzer != nil {
		result = p.analyzer.Analyze(ctx, c)
		c = applyAnalysis(c, result)
		if err := p.repo.SaveAnalysis(ctx, c); err != nil {
			return fmt.Errorf("pipeline: save analysis for call %s: %w", callID, err)
		}
	}

	d, err := p.engine.Qualify(ctx, c, result)
	if err != nil {
		return err
	}

	// Re-read so published events carry the persisted state, lead link
	// included.
	final, err := p.repo.GetByID(ctx, organizationID, callID)
	if err != nil {
		return err
	}
	p.publish(ctx, final)

	logger.From(ctx).Info("call processed",
		"call_id", callID,
		"organization_id", organizationID,
		"score", d.Score,
		"status", string(d.Status))
	return nil
}

func (p *Processor) acquireSlot(ctx context.Context, organizationID string) (func(), error) {
	if p.rdb == nil || p.capLimit <= 0 {
		return func() {}, nil
	}
	key := "analysis:cap:" + organizationID
	ok, err := utils.AcquireConcurrencyCap(ctx, p.rdb, key, p.capLimit, analysisCapTTL)
	if err != nil {
		// Redis being down must not stall the pipeline; proceed uncapped.
		logger.From(ctx).Warn("analysis cap unavailable, proceeding", "error", err)
		return func() {}, nil
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() {
		if err := utils.ReleaseConcurrencyCap(context.WithoutCancel(ctx), p.rdb, key); err != nil {
			logger.From(ctx).Warn("analysis cap release failed", "error", err)
		}
	}, nil
}

func (p *Processor) publish(ctx context.Context, c calls.Call) {
	if p.events == nil {
		return
	}
	p.events.CallUpdated(ctx, c)
	if c.LeadID != "" && p.leadRepo != nil {
		if l, err := p.leadRepo.GetByID(ctx, c.OrganizationID, c.LeadID); err == nil {
			p.events.LeadUpdated(ctx, l)
		}
	}
	if p.reporting != nil && c.CampaignID != "" {
		if m, err := p.reporting.CampaignMetrics(ctx, c.OrganizationID, c.CampaignID); err == nil {
			p.events.CampaignMetrics(ctx, c.OrganizationID, c.CampaignID, m)
		}
	}
}

// applyAnalysis copies analyzer output onto the call record for persistence.
func applyAnalysis(c calls.Call, r analysis.Result) calls.Call {
	c.Summary = r.Summary
	c.Sentiment = r.Sentiment
	c.Outcome = r.Outcome
	c.KeyPoints = r.KeyPoints
	c.BuyingSignals = strings.Join(r.BuyingSignals, "; ")
	c.AIConfidenceScore = calls.ClampScore(r.ConfidenceScore)
	return c
}
