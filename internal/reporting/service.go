package reporting

import (
	"context"
	"errors"
	"time"

	"outreach-platform/internal/calls"
	"outreach-platform/internal/leads"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// metricsWindow bounds how far back a snapshot looks. Dashboards show the
// running campaign, not all history.
const metricsWindow = 30 * 24 * time.Hour

// Service aggregates call and lead data into campaign metrics.
//
// IMPORTANT:
// - All reads enforce organization filtering through the repositories.
// - Aggregation is read-only; the service never mutates rows.
type Service struct {
	calls calls.Repository
	leads leads.Repository
	clock func() time.Time
}

func NewService(callRepo calls.Repository, leadRepo leads.Repository) *Service {
	return &Service{calls: callRepo, leads: leadRepo, clock: time.Now}
}

// CampaignMetrics aggregates the recent window for one campaign, or the whole
// organization when campaignID is empty.
func (s *Service) CampaignMetrics(ctx context.Context, organizationID, campaignID string) (CampaignMetrics, error) {
	if organizationID == "" {
		return CampaignMetrics{}, ErrInvalidRequest
	}
	if s.calls == nil || s.leads == nil {
		return CampaignMetrics{}, errors.New("reporting: repositories not configured")
	}

	now := s.clock().UTC()
	rows, err := s.calls.ListByCampaign(ctx, organizationID, campaignID, now.Add(-metricsWindow), now)
	if err != nil {
		return CampaignMetrics{}, err
	}

	out := CampaignMetrics{
		OrganizationID: organizationID,
		CampaignID:     campaignID,
		GeneratedAt:    now,
	}
	for _, c := range rows {
		out.CallsAttempted++
		out.TotalDurationSeconds += c.DurationSeconds
		switch c.Status {
		case calls.CallStatusCompleted, calls.CallStatusAnswered:
			out.CallsConnected++
		}
		switch c.QualificationStatus {
		case calls.QualificationAutoAccepted:
			out.CallsQualified++
		case calls.QualificationAutoDeclined:
			out.CallsDeclined++
		}
	}
	if out.CallsAttempted > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.CallsAttempted
	}

	qualified, err := s.leads.ListQualified(ctx, organizationID, campaignID)
	if err != nil {
		return CampaignMetrics{}, err
	}
	out.LeadsCreated = len(qualified)
	if out.CallsAttempted > 0 {
		out.ConversionRate = float64(out.LeadsCreated) / float64(out.CallsAttempted)
	}
	return out, nil
}
