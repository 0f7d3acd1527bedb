package calls

import (
	"context"
	"testing"
)

func TestClampScore(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{-3.0, 0},
		{-0.001, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.5, 1},
		{99, 1},
	}
	for _, tc := range cases {
		if got := ClampScore(tc.in); got != tc.want {
			t.Fatalf("ClampScore(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCallStatusIsTerminal(t *testing.T) {
	if CallStatusInProgress.IsTerminal() || CallStatusQueued.IsTerminal() {
		t.Fatalf("live statuses must not be terminal")
	}
	for _, s := range []CallStatus{CallStatusCompleted, CallStatusVoicemail, CallStatusNoAnswer, CallStatusFailed} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
}

func TestMemoryRepo_UpsertKeepsTranscriptOnEmptyRedelivery(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	_, err := repo.Upsert(ctx, Call{ID: "c1", OrganizationID: "org", Status: CallStatusCompleted, Transcript: "hello"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Redelivered webhook without transcript must not erase it.
	_, err = repo.Upsert(ctx, Call{ID: "c1", OrganizationID: "org", Status: CallStatusCompleted})
	if err != nil {
		t.Fatalf("upsert redelivery: %v", err)
	}

	c, err := repo.GetByID(ctx, "org", "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Transcript != "hello" {
		t.Fatalf("transcript lost on redelivery: %q", c.Transcript)
	}
}

func TestMemoryRepo_EnforcesOrganizationIsolation(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	if _, err := repo.Upsert(ctx, Call{ID: "c1", OrganizationID: "org-a", Status: CallStatusCompleted}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := repo.GetByID(ctx, "org-b", "c1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound across orgs, got %v", err)
	}
	if err := repo.SaveQualification(ctx, "org-b", "c1", 0.5, RecommendationReview, QualificationPending); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound across orgs, got %v", err)
	}
}

func TestMemoryRepo_SaveQualificationClampsScore(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	if _, err := repo.Upsert(ctx, Call{ID: "c1", OrganizationID: "org", Status: CallStatusCompleted}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.SaveQualification(ctx, "org", "c1", 3.7, RecommendationAccept, QualificationAutoAccepted); err != nil {
		t.Fatalf("save: %v", err)
	}
	c, _ := repo.GetByID(ctx, "org", "c1")
	if c.AIConfidenceScore != 1 {
		t.Fatalf("expected clamped score 1, got %v", c.AIConfidenceScore)
	}
}
