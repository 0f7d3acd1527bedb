package calls

import "time"

// Call represents one tenant-scoped outbound phone session.
//
// Multi-tenant invariant: OrganizationID is required on every row.
//
// Lifecycle: created when the call is initiated/synced from the voice
// provider; mutated once by the analysis pipeline after the call ends and a
// transcript is available; never deleted, only appended-to with new analysis
// fields.
//
// Invariant: AIConfidenceScore is always clamped to [0,1].

type Call struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	CampaignID     string `json:"campaign_id,omitempty" db:"campaign_id"`

	CustomerPhone string `json:"customer_phone" db:"customer_phone"`
	CustomerName  string `json:"customer_name,omitempty" db:"customer_name"`

	Status CallStatus `json:"status" db:"status"`

	// DurationSeconds is the call duration in seconds.
	DurationSeconds int `json:"duration" db:"duration"`

	Transcript string `json:"transcript,omitempty" db:"transcript"`

	// Analysis fields, populated by the pipeline after the call ends.
	Summary       string   `json:"summary,omitempty" db:"summary"`
	Sentiment     string   `json:"sentiment,omitempty" db:"sentiment"`
	Outcome       string   `json:"outcome,omitempty" db:"outcome"`
	KeyPoints     []string `json:"key_points,omitempty" db:"key_points"`
	BuyingSignals string   `json:"buying_signals,omitempty" db:"buying_signals"`

	AIConfidenceScore   float64             `json:"ai_confidence_score" db:"ai_confidence_score"`
	QualificationStatus QualificationStatus `json:"qualification_status,omitempty" db:"qualification_status"`
	Recommendation      Recommendation      `json:"recommendation,omitempty" db:"recommendation"`

	// CRMStatus records the observable outcome of lead materialization.
	CRMStatus CRMStatus `json:"crm_status,omitempty" db:"crm_status"`
	// LeadID back-links the call to the lead it created or updated.
	LeadID string `json:"lead_id,omitempty" db:"lead_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusAnswered   CallStatus = "answered"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no_answer"
	CallStatusVoicemail  CallStatus = "voicemail"
	CallStatusBusy       CallStatus = "busy"
	CallStatusCanceled   CallStatus = "canceled"
)

// IsTerminal reports whether no further provider events are expected.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusAnswered, CallStatusFailed,
		CallStatusNoAnswer, CallStatusVoicemail, CallStatusBusy, CallStatusCanceled:
		return true
	default:
		return false
	}
}

type QualificationStatus string

const (
	QualificationPending      QualificationStatus = "pending"
	QualificationAutoAccepted QualificationStatus = "auto_accepted"
	QualificationAutoDeclined QualificationStatus = "auto_declined"
)

type Recommendation string

const (
	RecommendationAccept  Recommendation = "accept"
	RecommendationDecline Recommendation = "decline"
	RecommendationReview  Recommendation = "review"
)

// CRMStatus makes business-rule failures queryable instead of silently dropped.
type CRMStatus string

const (
	CRMStatusAddedToCRM   CRMStatus = "added_to_crm"
	CRMStatusMissingPhone CRMStatus = "missing_phone_number"
)

// ClampScore bounds a confidence score into [0,1].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
