package leads

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"outreach-platform/internal/analysis"
	"outreach-platform/internal/calls"
	"outreach-platform/pkg/logger"

	"github.com/google/uuid"
)

// ErrMissingPhone means a qualified call had no phone number to key the lead
// on. It is a business-rule failure, recorded on the call, not a system error.
var ErrMissingPhone = errors.New("leads: no phone number available")

const sourceAICallAnalysis = "ai_call_analysis"

// Materializer performs the idempotent create-or-update of a lead from a
// qualified call.
//
// Idempotence: the (organization_id, phone) unique constraint at the store is
// the authoritative de-duplication point. The pre-insert lookup is only an
// optimization; an ErrDuplicate from Insert (two materializations racing) is
// converted into an update, never surfaced as a failure.
type Materializer struct {
	leads Repository
	calls calls.Repository
	clock func() time.Time
	newID func() string
}

func NewMaterializer(leadRepo Repository, callRepo calls.Repository) *Materializer {
	return &Materializer{
		leads: leadRepo,
		calls: callRepo,
		clock: time.Now,
		newID: uuid.NewString,
	}
}

// Materialize writes the lead for an accepted call and back-links the call.
// Returns the lead id.
func (m *Materializer) Materialize(ctx context.Context, c calls.Call, r analysis.Result) (string, error) {
	if m.leads == nil || m.calls == nil {
		return "", errors.New("leads: materializer not configured")
	}
	if c.ID == "" || c.OrganizationID == "" {
		return "", ErrInvalidArgument
	}

	phone := strings.TrimSpace(r.ContactInfo.Phone)
	if phone == "" {
		phone = strings.TrimSpace(c.CustomerPhone)
	}
	if phone == "" {
		if err := m.calls.MarkCRMStatus(ctx, c.OrganizationID, c.ID, calls.CRMStatusMissingPhone, ""); err != nil {
			return "", err
		}
		return "", ErrMissingPhone
	}

	now := m.clock().UTC()
	score := int(math.Round(c.AIConfidenceScore * 100))

	lead, err := m.leads.FindByOrgAndPhone(ctx, c.OrganizationID, phone)
	switch {
	case err == nil:
		lead = m.applyAnalysis(lead, c, r, score, now)
		lead, err = m.leads.Update(ctx, lead)
		if err != nil {
			return "", err
		}
	case errors.Is(err, ErrNotFound):
		lead, err = m.insertOrUpdate(ctx, c, r, phone, score, now)
		if err != nil {
			return "", err
		}
	default:
		return "", err
	}

	if err := m.calls.MarkCRMStatus(ctx, c.OrganizationID, c.ID, calls.CRMStatusAddedToCRM, lead.ID); err != nil {
		return "", err
	}
	return lead.ID, nil
}

func (m *Materializer) insertOrUpdate(ctx context.Context, c calls.Call, r analysis.Result, phone string, score int, now time.Time) (Lead, error) {
	first, last := splitName(bestName(r, c))

	lead := Lead{
		ID:             m.newID(),
		OrganizationID: c.OrganizationID,
		CampaignID:     c.CampaignID,
		FirstName:      first,
		LastName:       last,
		Phone:          phone,
		Email:          r.ContactInfo.Email,
		Company:        r.ContactInfo.Company,
		Address:        r.ContactInfo.Address,
		Status:         StatusQualified,
		Score:          score,
		Notes:          buildNotes(r),
		CustomFields:   analysisFields(c, r),
		Source:         sourceAICallAnalysis,
		LastContactAt:  now,
	}

	created, err := m.leads.Insert(ctx, lead)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, ErrDuplicate) {
		return Lead{}, err
	}

	// Lost the insert race: someone else created the lead between the lookup
	// and our insert. Treat as update.
	logger.From(ctx).Debug("lead insert raced, converting to update",
		"organization_id", c.OrganizationID, "call_id", c.ID)
	existing, err := m.leads.FindByOrgAndPhone(ctx, c.OrganizationID, phone)
	if err != nil {
		return Lead{}, err
	}
	return m.leads.Update(ctx, m.applyAnalysis(existing, c, r, score, now))
}

// applyAnalysis folds a fresh materialization into an existing lead: status,
// score, last contact, merged custom fields.
func (m *Materializer) applyAnalysis(lead Lead, c calls.Call, r analysis.Result, score int, now time.Time) Lead {
	lead.Status = StatusQualified
	lead.Score = score
	lead.LastContactAt = now
	if lead.CampaignID == "" {
		lead.CampaignID = c.CampaignID
	}
	if r.ContactInfo.Email != "" {
		lead.Email = r.ContactInfo.Email
	}
	if r.ContactInfo.Company != "" {
		lead.Company = r.ContactInfo.Company
	}
	if lead.CustomFields == nil {
		lead.CustomFields = map[string]string{}
	}
	for k, v := range analysisFields(c, r) {
		lead.CustomFields[k] = v
	}
	return lead
}

func bestName(r analysis.Result, c calls.Call) string {
	if n := strings.TrimSpace(r.ContactInfo.Name); n != "" {
		return n
	}
	if n := strings.TrimSpace(c.CustomerName); n != "" {
		return n
	}
	return "Unknown"
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "Unknown", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func analysisFields(c calls.Call, r analysis.Result) map[string]string {
	out := map[string]string{
		"source_call_id": c.ID,
		"interest_level": strconv.Itoa(r.Qualification.InterestLevel),
	}
	if r.Qualification.Budget != "" {
		out["budget"] = r.Qualification.Budget
	}
	if r.Qualification.Timeline != "" {
		out["timeline"] = r.Qualification.Timeline
	}
	if r.Qualification.DecisionAuthority != "" {
		out["decision_authority"] = r.Qualification.DecisionAuthority
	}
	if r.ContactInfo.JobTitle != "" {
		out["job_title"] = r.ContactInfo.JobTitle
	}
	return out
}

// buildNotes renders a human-readable qualification rationale for agents.
func buildNotes(r analysis.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Qualified from AI call analysis (confidence %.2f).\n", r.ConfidenceScore)
	writeSection(&b, "Pain points", r.Qualification.PainPoints)
	writeSection(&b, "Buying signals", r.BuyingSignals)
	writeSection(&b, "Objections", r.Objections)
	writeSection(&b, "Next steps", r.NextSteps)
	if r.Summary != "" {
		b.WriteString("Summary: ")
		b.WriteString(r.Summary)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func writeSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title)
	b.WriteString(":\n")
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteString("\n")
	}
}
