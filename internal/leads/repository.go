package leads

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("leads: not found")
	ErrDuplicate       = errors.New("leads: lead already exists for phone")
	ErrInvalidArgument = errors.New("leads: invalid argument")
)

// Repository is the persistence contract for leads.
//
// Insert MUST surface a (organization_id, phone) unique violation as
// ErrDuplicate; the materializer relies on that to convert races into updates.
type Repository interface {
	GetByID(ctx context.Context, organizationID, leadID string) (Lead, error)
	FindByOrgAndPhone(ctx context.Context, organizationID, phone string) (Lead, error)
	Insert(ctx context.Context, l Lead) (Lead, error)
	Update(ctx context.Context, l Lead) (Lead, error)
	ListQualified(ctx context.Context, organizationID, campaignID string) ([]Lead, error)
}
