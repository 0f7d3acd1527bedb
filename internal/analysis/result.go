package analysis

import "outreach-platform/internal/calls"

// Result is the structured analysis of one finished call.
//
// It is an ephemeral value object: derived fresh from a transcript, never
// persisted independently, never mutated after Normalize. The JSON shape
// matches what the language model is asked to produce; every field is
// optional on the wire and defaulted in exactly one place (Normalize), so
// business logic never does ad hoc existence checks.
type Result struct {
	ContactInfo   ContactInfo   `json:"contact_info"`
	Qualification Qualification `json:"qualification"`

	Outcome   string `json:"outcome"`
	Sentiment string `json:"sentiment"`
	Summary   string `json:"summary"`

	KeyPoints     []string `json:"key_points"`
	BuyingSignals []string `json:"buying_signals"`
	Objections    []string `json:"objections"`
	Questions     []string `json:"questions"`
	NextSteps     []string `json:"next_steps"`

	ConfidenceScore float64 `json:"confidence_score"`
	IsQualifiedLead bool    `json:"is_qualified_lead"`
}

type ContactInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Company  string `json:"company"`
	JobTitle string `json:"job_title"`
	Address  string `json:"address"`
}

type Qualification struct {
	// InterestLevel is 0-10.
	InterestLevel     int      `json:"interest_level"`
	PainPoints        []string `json:"pain_points"`
	Budget            string   `json:"budget"`
	Timeline          string   `json:"timeline"`
	DecisionAuthority string   `json:"decision_authority"`
}

// Normalize applies boundary defaulting once, right after parsing.
func (r *Result) Normalize() {
	if r.Outcome == "" {
		r.Outcome = "unknown"
	}
	if r.Sentiment == "" {
		r.Sentiment = "neutral"
	}
	if r.KeyPoints == nil {
		r.KeyPoints = []string{}
	}
	if r.BuyingSignals == nil {
		r.BuyingSignals = []string{}
	}
	if r.Objections == nil {
		r.Objections = []string{}
	}
	if r.Questions == nil {
		r.Questions = []string{}
	}
	if r.NextSteps == nil {
		r.NextSteps = []string{}
	}
	if r.Qualification.PainPoints == nil {
		r.Qualification.PainPoints = []string{}
	}
	if r.Qualification.InterestLevel < 0 {
		r.Qualification.InterestLevel = 0
	}
	if r.Qualification.InterestLevel > 10 {
		r.Qualification.InterestLevel = 10
	}
	r.ConfidenceScore = calls.ClampScore(r.ConfidenceScore)
}
