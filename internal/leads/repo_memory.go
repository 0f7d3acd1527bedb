package leads

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory lead repository for tests and early development.
// It enforces the same (organization_id, phone) uniqueness as Postgres,
// surfacing ErrDuplicate from Insert.
type MemoryRepo struct {
	mu      sync.Mutex
	byID    map[string]Lead
	byPhone map[string]string // organization_id|phone -> lead id
	clock   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:    map[string]Lead{},
		byPhone: map[string]string{},
		clock:   time.Now,
	}
}

func phoneKey(organizationID, phone string) string { return organizationID + "|" + phone }

func (r *MemoryRepo) GetByID(ctx context.Context, organizationID, leadID string) (Lead, error) {
	if organizationID == "" || leadID == "" {
		return Lead{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.byID[leadID]
	if !ok || l.OrganizationID != organizationID {
		return Lead{}, ErrNotFound
	}
	return l, nil
}

func (r *MemoryRepo) FindByOrgAndPhone(ctx context.Context, organizationID, phone string) (Lead, error) {
	if organizationID == "" || phone == "" {
		return Lead{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPhone[phoneKey(organizationID, phone)]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepo) Insert(ctx context.Context, l Lead) (Lead, error) {
	if l.ID == "" || l.OrganizationID == "" || l.Phone == "" {
		return Lead{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := phoneKey(l.OrganizationID, l.Phone)
	if _, exists := r.byPhone[key]; exists {
		return Lead{}, ErrDuplicate
	}

	now := r.clock().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	r.byID[l.ID] = l
	r.byPhone[key] = l.ID
	return l, nil
}

func (r *MemoryRepo) Update(ctx context.Context, l Lead) (Lead, error) {
	if l.ID == "" || l.OrganizationID == "" {
		return Lead{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[l.ID]
	if !ok || existing.OrganizationID != l.OrganizationID {
		return Lead{}, ErrNotFound
	}

	l.Phone = existing.Phone // phone is the identity key; updates never move it
	l.CreatedAt = existing.CreatedAt
	l.UpdatedAt = r.clock().UTC()
	r.byID[l.ID] = l
	return l, nil
}

func (r *MemoryRepo) ListQualified(ctx context.Context, organizationID, campaignID string) ([]Lead, error) {
	if organizationID == "" {
		return nil, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Lead, 0)
	for _, l := range r.byID {
		if l.OrganizationID != organizationID {
			continue
		}
		if campaignID != "" && l.CampaignID != campaignID {
			continue
		}
		if l.Status == StatusQualified || l.Status == StatusConverted {
			out = append(out, l)
		}
	}
	return out, nil
}

// Count reports the number of stored leads; test helper.
func (r *MemoryRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
