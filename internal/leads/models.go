package leads

import "time"

// Lead represents a prospect in the CRM surface.
//
// Invariant: at most one Lead per (organization_id, phone) pair. The storage
// layer enforces this with a unique constraint; everything above it treats a
// constraint violation as "someone else created it first, update instead".
type Lead struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	CampaignID     string `json:"campaign_id,omitempty" db:"campaign_id"`

	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name,omitempty" db:"last_name"`

	// Phone is required and is the uniqueness key within an organization.
	Phone   string `json:"phone" db:"phone"`
	Email   string `json:"email,omitempty" db:"email"`
	Company string `json:"company,omitempty" db:"company"`
	Address string `json:"address,omitempty" db:"address"`

	Status Status `json:"status" db:"status"`

	// Score is 0-100, derived from the call's confidence score.
	Score int `json:"score" db:"score"`

	Notes        string            `json:"notes,omitempty" db:"notes"`
	CustomFields map[string]string `json:"custom_fields,omitempty" db:"custom_fields"`

	// Source records where the lead came from (e.g. "ai_call_analysis").
	Source string `json:"source,omitempty" db:"source"`

	LastContactAt time.Time `json:"last_contact_at" db:"last_contact_at"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusNew       Status = "new"
	StatusQualified Status = "qualified"
	StatusContacted Status = "contacted"
	StatusConverted Status = "converted"
	StatusDead      Status = "dead"
)
