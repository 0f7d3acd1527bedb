package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.OrganizationID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogCompliance records a compliance-relevant detection on a call, such as a
// do-not-call request found in the transcript summary.
func (s *Service) LogCompliance(ctx context.Context, organizationID, campaignID, callID, message string) error {
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeCompliance,
		CampaignID:     campaignID,
		CallID:         callID,
		Message:        message,
	})
}

// LogExport records who triggered a data export and what it covered.
func (s *Service) LogExport(ctx context.Context, organizationID, actorUserID, actorRole, exportID, campaignID, message string) error {
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeExport,
		ActorUserID:    actorUserID,
		ActorRole:      actorRole,
		ExportID:       exportID,
		CampaignID:     campaignID,
		Message:        message,
	})
}

// LogAdminAction records an admin action.
func (s *Service) LogAdminAction(ctx context.Context, organizationID, actorUserID, actorRole, ip, message, metadata string) error {
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeAdminAction,
		ActorUserID:    actorUserID,
		ActorRole:      actorRole,
		IPAddress:      ip,
		Message:        message,
		Metadata:       metadata,
	})
}
