package calls

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("calls: not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
)

// Repository is the persistence contract for calls.
//
// All methods enforce organization filtering. Analysis writes are append-only
// in spirit: they add analysis/qualification fields, they never erase the
// transcript or base call data.
type Repository interface {
	GetByID(ctx context.Context, organizationID, callID string) (Call, error)

	// Upsert creates the call row or refreshes base fields delivered by the
	// voice provider (status, duration, transcript, customer info).
	Upsert(ctx context.Context, c Call) (Call, error)

	// SaveAnalysis persists analyzer output onto the call.
	SaveAnalysis(ctx context.Context, c Call) error

	// SaveQualification persists the qualification triple. A failure here must
	// surface to the caller; a computed-but-unrecorded qualification leaves the
	// call inconsistent.
	SaveQualification(ctx context.Context, organizationID, callID string, score float64, rec Recommendation, status QualificationStatus) error

	// MarkCRMStatus records the materialization outcome and back-links the lead.
	MarkCRMStatus(ctx context.Context, organizationID, callID string, status CRMStatus, leadID string) error

	ListActive(ctx context.Context, organizationID string) ([]Call, error)
	ListByCampaign(ctx context.Context, organizationID, campaignID string, from, to time.Time) ([]Call, error)
}
