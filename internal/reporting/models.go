package reporting

import "time"

// CampaignMetrics is the per-campaign snapshot served to dashboards, both on
// request and as the subscribe-time snapshot for campaign topics.
type CampaignMetrics struct {
	OrganizationID string `json:"organization_id"`
	CampaignID     string `json:"campaign_id,omitempty"`

	CallsAttempted int `json:"calls_attempted"`
	CallsConnected int `json:"calls_connected"`
	CallsQualified int `json:"calls_qualified"`
	CallsDeclined  int `json:"calls_declined"`
	LeadsCreated   int `json:"leads_created"`

	TotalDurationSeconds   int     `json:"total_duration_seconds"`
	AverageDurationSeconds int     `json:"average_duration_seconds"`
	ConversionRate         float64 `json:"conversion_rate"`

	GeneratedAt time.Time `json:"generated_at"`
}
