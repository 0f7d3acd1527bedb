package httpapi

import (
	"context"
	"errors"

	"outreach-platform/internal/audit"
	"outreach-platform/internal/calls"
	"outreach-platform/internal/events"
	"outreach-platform/internal/leads"
	"outreach-platform/internal/reporting"
	"outreach-platform/pkg/logger"

	"github.com/google/uuid"
)

// RealtimeQueries answers websocket data requests with the same services the
// REST endpoints use, so both surfaces return identical shapes.
type RealtimeQueries struct {
	Calls     calls.Repository
	Leads     leads.Repository
	Reporting *reporting.Service
	Audit     *audit.Service
	Publisher *events.Publisher
}

func (q *RealtimeQueries) ActiveCalls(ctx context.Context, organizationID string) (any, error) {
	rows, err := q.Calls.ListActive(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"calls": rows}, nil
}

func (q *RealtimeQueries) QualifiedLeads(ctx context.Context, organizationID, campaignID string) (any, error) {
	rows, err := q.Leads.ListQualified(ctx, organizationID, campaignID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"leads": rows}, nil
}

func (q *RealtimeQueries) CampaignMetrics(ctx context.Context, organizationID, campaignID string) (any, error) {
	return q.Reporting.CampaignMetrics(ctx, organizationID, campaignID)
}

func (q *RealtimeQueries) TriggerExport(ctx context.Context, organizationID, userID, kind, campaignID string) (string, error) {
	if kind == "" {
		return "", errors.New("httpapi: export kind required")
	}
	exportID := uuid.NewString()
	if q.Audit != nil {
		if err := q.Audit.LogExport(ctx, organizationID, userID, "", exportID, campaignID, "export: "+kind); err != nil {
			logger.From(ctx).Warn("export audit failed", "export_id", exportID, "error", err)
		}
	}
	if q.Publisher != nil {
		q.Publisher.ExportStatus(ctx, organizationID, exportID, "queued")
	}
	return exportID, nil
}
