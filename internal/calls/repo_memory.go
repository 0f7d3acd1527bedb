package calls

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory call repository for tests and early development.
// It enforces organization isolation on reads.
type MemoryRepo struct {
	mu    sync.Mutex
	rows  map[string]Call
	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]Call{}, clock: time.Now}
}

func (r *MemoryRepo) GetByID(ctx context.Context, organizationID, callID string) (Call, error) {
	if organizationID == "" || callID == "" {
		return Call{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[callID]
	if !ok || c.OrganizationID != organizationID {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, c Call) (Call, error) {
	if c.ID == "" || c.OrganizationID == "" {
		return Call{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock().UTC()
	existing, ok := r.rows[c.ID]
	if !ok {
		c.CreatedAt = now
		c.UpdatedAt = now
		r.rows[c.ID] = c
		return c, nil
	}

	existing.Status = c.Status
	existing.DurationSeconds = c.DurationSeconds
	if c.Transcript != "" {
		existing.Transcript = c.Transcript
	}
	if c.CustomerPhone != "" {
		existing.CustomerPhone = c.CustomerPhone
	}
	if c.CustomerName != "" {
		existing.CustomerName = c.CustomerName
	}
	existing.UpdatedAt = now
	r.rows[c.ID] = existing
	return existing, nil
}

func (r *MemoryRepo) SaveAnalysis(ctx context.Context, c Call) error {
	if c.ID == "" || c.OrganizationID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[c.ID]
	if !ok || existing.OrganizationID != c.OrganizationID {
		return ErrNotFound
	}
	existing.Summary = c.Summary
	existing.Sentiment = c.Sentiment
	existing.Outcome = c.Outcome
	existing.KeyPoints = c.KeyPoints
	existing.BuyingSignals = c.BuyingSignals
	existing.AIConfidenceScore = ClampScore(c.AIConfidenceScore)
	existing.UpdatedAt = r.clock().UTC()
	r.rows[c.ID] = existing
	return nil
}

func (r *MemoryRepo) SaveQualification(ctx context.Context, organizationID, callID string, score float64, rec Recommendation, status QualificationStatus) error {
	if organizationID == "" || callID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[callID]
	if !ok || existing.OrganizationID != organizationID {
		return ErrNotFound
	}
	existing.AIConfidenceScore = ClampScore(score)
	existing.Recommendation = rec
	existing.QualificationStatus = status
	existing.UpdatedAt = r.clock().UTC()
	r.rows[callID] = existing
	return nil
}

func (r *MemoryRepo) MarkCRMStatus(ctx context.Context, organizationID, callID string, status CRMStatus, leadID string) error {
	if organizationID == "" || callID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[callID]
	if !ok || existing.OrganizationID != organizationID {
		return ErrNotFound
	}
	existing.CRMStatus = status
	if leadID != "" {
		existing.LeadID = leadID
	}
	existing.UpdatedAt = r.clock().UTC()
	r.rows[callID] = existing
	return nil
}

func (r *MemoryRepo) ListActive(ctx context.Context, organizationID string) ([]Call, error) {
	if organizationID == "" {
		return nil, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range r.rows {
		if c.OrganizationID != organizationID {
			continue
		}
		switch c.Status {
		case CallStatusQueued, CallStatusRinging, CallStatusInProgress:
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListByCampaign(ctx context.Context, organizationID, campaignID string, from, to time.Time) ([]Call, error) {
	if organizationID == "" {
		return nil, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range r.rows {
		if c.OrganizationID != organizationID {
			continue
		}
		if campaignID != "" && c.CampaignID != campaignID {
			continue
		}
		if !c.CreatedAt.IsZero() && !from.IsZero() {
			if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}
