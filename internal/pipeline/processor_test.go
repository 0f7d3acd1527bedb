package pipeline

import (
	"context"
	"errors"
	"testing"

	"outreach-platform/internal/analysis"
	"outreach-platform/internal/calls"
	"outreach-platform/internal/leads"
	"outreach-platform/internal/qualify"
	"outreach-platform/internal/reporting"
)

type fixture struct {
	proc     *Processor
	calls    *calls.MemoryRepo
	leads    *leads.MemoryRepo
	analyzer *fakeAnalyzer
	sink     *fakeSink
}

func newFixture(t *testing.T, result analysis.Result) *fixture {
	t.Helper()
	callRepo := calls.NewMemoryRepo()
	leadRepo := leads.NewMemoryRepo()
	mat := leads.NewMaterializer(leadRepo, callRepo)
	engine := qualify.NewEngine(callRepo, mat, nil)
	rep := reporting.NewService(callRepo, leadRepo)
	an := &fakeAnalyzer{result: result}
	sink := &fakeSink{}
	return &fixture{
		proc:     NewProcessor(callRepo, leadRepo, an, engine, rep, sink, nil, 0),
		calls:    callRepo,
		leads:    leadRepo,
		analyzer: an,
		sink:     sink,
	}
}

func seed(t *testing.T, repo *calls.MemoryRepo, c calls.Call) {
	t.Helper()
	if _, err := repo.Upsert(context.Background(), c); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestProcess_HighConfidenceCallCreatesLead(t *testing.T) {
	result := analysis.Result{
		ContactInfo:     analysis.ContactInfo{Name: "Grace Hopper"},
		Outcome:         "interested",
		Sentiment:       "positive",
		Summary:         "Strong interest, wants a demo",
		ConfidenceScore: 0.95,
		IsQualifiedLead: true,
	}
	result.Normalize()
	f := newFixture(t, result)
	ctx := context.Background()

	seed(t, f.calls, calls.Call{
		ID: "c1", OrganizationID: "org", CampaignID: "camp",
		CustomerPhone: "+15550001111", Status: calls.CallStatusCompleted,
		DurationSeconds: 300, Transcript: "long productive conversation",
	})

	if err := f.proc.ProcessCompletedCall(ctx, "org", "c1"); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := f.calls.GetByID(ctx, "org", "c1")
	if got.QualificationStatus != calls.QualificationAutoAccepted {
		t.Fatalf("status = %s (score %v)", got.QualificationStatus, got.AIConfidenceScore)
	}
	if got.Summary != result.Summary || got.Sentiment != "positive" {
		t.Fatalf("analysis not persisted: %+v", got)
	}
	if got.LeadID == "" || got.CRMStatus != calls.CRMStatusAddedToCRM {
		t.Fatalf("lead not materialized: %+v", got)
	}
	if f.leads.Count() != 1 {
		t.Fatalf("lead count = %d", f.leads.Count())
	}

	if len(f.sink.callUpdates) != 1 || f.sink.callUpdates[0].LeadID != got.LeadID {
		t.Fatalf("call_update events %+v", f.sink.callUpdates)
	}
	if len(f.sink.leadUpdates) != 1 || f.sink.leadUpdates[0].ID != got.LeadID {
		t.Fatalf("lead_update events %+v", f.sink.leadUpdates)
	}
	if len(f.sink.metrics) != 1 {
		t.Fatalf("campaign metrics events %d", len(f.sink.metrics))
	}
}

func TestProcess_VoicemailSkipsAnalyzerAndAutoDeclines(t *testing.T) {
	f := newFixture(t, analysis.Result{ConfidenceScore: 0.99})
	ctx := context.Background()

	seed(t, f.calls, calls.Call{
		ID: "c1", OrganizationID: "org", CampaignID: "camp",
		CustomerPhone: "+15550001111", Status: calls.CallStatusVoicemail,
		DurationSeconds: 10,
	})

	if err := f.proc.ProcessCompletedCall(ctx, "org", "c1"); err != nil {
		t.Fatalf("process: %v", err)
	}

	if f.analyzer.calls != 0 {
		t.Fatalf("analyzer ran without a transcript")
	}
	got, _ := f.calls.GetByID(ctx, "org", "c1")
	if got.QualificationStatus != calls.QualificationAutoDeclined {
		t.Fatalf("status = %s (score %v)", got.QualificationStatus, got.AIConfidenceScore)
	}
	if f.leads.Count() != 0 {
		t.Fatalf("declined call produced a lead")
	}
	if len(f.sink.callUpdates) != 1 {
		t.Fatalf("expected call_update even for declined calls")
	}
}

func TestProcess_RedeliveryConvergesOnOneLead(t *testing.T) {
	result := analysis.Result{ConfidenceScore: 0.95}
	result.Normalize()
	f := newFixture(t, result)
	ctx := context.Background()

	seed(t, f.calls, calls.Call{
		ID: "c1", OrganizationID: "org", CustomerPhone: "+15550002222",
		Status: calls.CallStatusCompleted, DurationSeconds: 200,
		Transcript: "hello",
	})

	if err := f.proc.ProcessCompletedCall(ctx, "org", "c1"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := f.proc.ProcessCompletedCall(ctx, "org", "c1"); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if f.leads.Count() != 1 {
		t.Fatalf("redelivery created %d leads", f.leads.Count())
	}
}

func TestProcess_UnknownCall(t *testing.T) {
	f := newFixture(t, analysis.Result{})
	err := f.proc.ProcessCompletedCall(context.Background(), "org", "ghost")
	if !errors.Is(err, calls.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type fakeAnalyzer struct {
	result analysis.Result
	calls  int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, c calls.Call) analysis.Result {
	f.calls++
	return f.result
}

type fakeSink struct {
	callUpdates []calls.Call
	leadUpdates []leads.Lead
	metrics     []any
}

func (s *fakeSink) CallUpdated(ctx context.Context, c calls.Call) {
	s.callUpdates = append(s.callUpdates, c)
}

func (s *fakeSink) LeadUpdated(ctx context.Context, l leads.Lead) {
	s.leadUpdates = append(s.leadUpdates, l)
}

func (s *fakeSink) CampaignMetrics(ctx context.Context, organizationID, campaignID string, m any) {
	s.metrics = append(s.metrics, m)
}
