package events

import (
	"context"
	"encoding/json"
	"time"

	"outreach-platform/internal/calls"
	"outreach-platform/internal/leads"
	"outreach-platform/pkg/logger"
)

// Envelope is the wire shape of every published event. Routing fields sit at
// the top level so consumers can fan out to topics without decoding Payload.
type Envelope struct {
	Type           string          `json:"type"`
	OrganizationID string          `json:"organization_id"`
	CampaignID     string          `json:"campaign_id,omitempty"`
	CallID         string          `json:"call_id,omitempty"`
	LeadID         string          `json:"lead_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Event type names carried in Envelope.Type. These double as the outbound
// websocket message types.
const (
	TypeCallUpdate      = "call_update"
	TypeLeadUpdate      = "lead_update"
	TypeCampaignMetrics = "campaign_metrics_update"
	TypeComplianceAlert = "compliance_alert"
	TypeExportUpdate    = "export_update"
	TypeAnalyticsUpdate = "analytics_update"
)

// Publisher emits typed domain events onto the bus. Publishing is
// fire-and-forget: failures are logged and dropped, the pipeline never fails
// because an observer is down.
type Publisher struct {
	bus   Bus
	clock func() time.Time
}

func NewPublisher(bus Bus) *Publisher {
	return &Publisher{bus: bus, clock: time.Now}
}

func (p *Publisher) CallUpdated(ctx context.Context, c calls.Call) {
	p.emit(ctx, ChannelCalls, Envelope{
		Type:           TypeCallUpdate,
		OrganizationID: c.OrganizationID,
		CampaignID:     c.CampaignID,
		CallID:         c.ID,
		LeadID:         c.LeadID,
	}, c)
}

func (p *Publisher) LeadUpdated(ctx context.Context, l leads.Lead) {
	p.emit(ctx, ChannelLeads, Envelope{
		Type:           TypeLeadUpdate,
		OrganizationID: l.OrganizationID,
		CampaignID:     l.CampaignID,
		LeadID:         l.ID,
	}, l)
}

func (p *Publisher) CampaignMetrics(ctx context.Context, organizationID, campaignID string, metrics any) {
	p.emit(ctx, ChannelCampaigns, Envelope{
		Type:           TypeCampaignMetrics,
		OrganizationID: organizationID,
		CampaignID:     campaignID,
	}, metrics)
}

// ComplianceAlert satisfies the qualification engine's alert hook.
func (p *Publisher) ComplianceAlert(ctx context.Context, organizationID, callID, reason string) {
	p.emit(ctx, ChannelCompliance, Envelope{
		Type:           TypeComplianceAlert,
		OrganizationID: organizationID,
		CallID:         callID,
	}, map[string]string{"reason": reason})
}

func (p *Publisher) ExportStatus(ctx context.Context, organizationID, exportID, status string) {
	p.emit(ctx, ChannelExports, Envelope{
		Type:           TypeExportUpdate,
		OrganizationID: organizationID,
	}, map[string]string{"export_id": exportID, "status": status})
}

func (p *Publisher) AnalyticsUpdate(ctx context.Context, organizationID string, payload any) {
	p.emit(ctx, ChannelAnalytics, Envelope{
		Type:           TypeAnalyticsUpdate,
		OrganizationID: organizationID,
	}, payload)
}

func (p *Publisher) emit(ctx context.Context, channel string, env Envelope, payload any) {
	if p.bus == nil {
		return
	}
	env.Timestamp = p.clock().UTC()

	body, err := json.Marshal(payload)
	if err != nil {
		logger.From(ctx).Error("event payload marshal failed", "channel", channel, "type", env.Type, "error", err)
		return
	}
	env.Payload = body

	raw, err := json.Marshal(env)
	if err != nil {
		logger.From(ctx).Error("event envelope marshal failed", "channel", channel, "type", env.Type, "error", err)
		return
	}
	if err := p.bus.Publish(ctx, channel, raw); err != nil {
		logger.From(ctx).Warn("event publish failed", "channel", channel, "type", env.Type, "error", err)
	}
}
