package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"outreach-platform/internal/analysis"
	"outreach-platform/internal/audit"
	"outreach-platform/internal/auth"
	"outreach-platform/internal/calls"
	"outreach-platform/internal/events"
	"outreach-platform/internal/leads"
	"outreach-platform/internal/pipeline"
	"outreach-platform/internal/qualify"
	"outreach-platform/internal/reporting"

	"github.com/gin-gonic/gin"
)

type env struct {
	router *gin.Engine
	calls  *calls.MemoryRepo
	leads  *leads.MemoryRepo
	audit  *audit.MemoryRepo
	bus    *events.MemoryBus
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	callRepo := calls.NewMemoryRepo()
	leadRepo := leads.NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()
	bus := events.NewMemoryBus()
	pub := events.NewPublisher(bus)

	mat := leads.NewMaterializer(leadRepo, callRepo)
	engine := qualify.NewEngine(callRepo, mat, pub)
	rep := reporting.NewService(callRepo, leadRepo)
	proc := pipeline.NewProcessor(callRepo, leadRepo, analysis.NewAnalyzer(nil), engine, rep, pub, nil, 0)

	h := Handlers{
		Calls:     callRepo,
		Leads:     leadRepo,
		Reporting: rep,
		Audit:     audit.NewService(auditRepo),
		Publisher: pub,
		Processor: proc,
	}

	r := gin.New()
	r.POST("/webhooks/voice/call-status", h.CallStatusWebhook)

	// Identity injection stands in for the JWT middleware.
	identified := r.Group("/v1", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u1", "org", "agent")
		c.Request = c.Request.WithContext(ctx)
	})
	identified.GET("/calls/active", h.GetActiveCalls)
	identified.GET("/leads/qualified", h.GetQualifiedLeads)
	identified.GET("/campaigns/:campaign_id/metrics", h.GetCampaignMetrics)
	identified.POST("/exports", h.CreateExport)

	return &env{router: r, calls: callRepo, leads: leadRepo, audit: auditRepo, bus: bus}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func webhookBody(callID, status string, duration int, transcript string) map[string]any {
	return map[string]any{
		"call_id":          callID,
		"organization_id":  "org",
		"campaign_id":      "camp",
		"status":           status,
		"duration_seconds": duration,
		"transcript":       transcript,
		"customer":         map[string]string{"phone": "+15550001111", "name": "Grace Hopper"},
	}
}

func TestWebhook_TerminalStatusRunsPipeline(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/webhooks/voice/call-status",
		webhookBody("c1", "completed", 200, "a long conversation about pricing"))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	got, err := e.calls.GetByID(context.Background(), "org", "c1")
	if err != nil {
		t.Fatalf("call not stored: %v", err)
	}
	// No LLM configured: heuristic scores 0.5 +0.2 (>120s) +0.1 (transcript).
	if got.QualificationStatus != calls.QualificationPending {
		t.Fatalf("pipeline did not qualify: %+v", got)
	}
	if diff := got.AIConfidenceScore - 0.8; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("score = %v, want 0.8", got.AIConfidenceScore)
	}
	if got.Outcome != "interested" || got.Summary == "" && got.Transcript == "" {
		t.Fatalf("analysis fields not persisted: %+v", got)
	}
}

func TestWebhook_NonTerminalStatusOnlyUpserts(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/webhooks/voice/call-status",
		webhookBody("c1", "in_progress", 0, ""))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	got, err := e.calls.GetByID(context.Background(), "org", "c1")
	if err != nil {
		t.Fatalf("call not stored: %v", err)
	}
	if got.QualificationStatus != "" && got.QualificationStatus != "pending" {
		t.Fatalf("in-progress call was qualified: %+v", got)
	}
}

func TestWebhook_ShortVoicemailAutoDeclines(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/webhooks/voice/call-status",
		webhookBody("c1", "voicemail", 10, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	got, _ := e.calls.GetByID(context.Background(), "org", "c1")
	if got.QualificationStatus != calls.QualificationAutoDeclined {
		t.Fatalf("status = %s, score %v", got.QualificationStatus, got.AIConfidenceScore)
	}
	if e.leads.Count() != 0 {
		t.Fatalf("voicemail produced a lead")
	}
}

func TestWebhook_RejectsMalformedPayloads(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/webhooks/voice/call-status", map[string]any{"status": "completed"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing ids accepted: %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice/call-status",
		bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json accepted: %d", rec.Code)
	}
}

func TestWebhook_RedeliveryIsIdempotent(t *testing.T) {
	e := newEnv(t)
	body := webhookBody("c1", "completed", 200, "transcript")

	for i := 0; i < 2; i++ {
		if w := e.do(t, http.MethodPost, "/webhooks/voice/call-status", body); w.Code != http.StatusOK {
			t.Fatalf("delivery %d: %d %s", i, w.Code, w.Body.String())
		}
	}
	if n := e.leads.Count(); n > 1 {
		t.Fatalf("redelivery created %d leads", n)
	}
}

func TestGetQualifiedLeads(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.leads.Insert(ctx, leads.Lead{
		ID: "l1", OrganizationID: "org", CampaignID: "camp",
		Phone: "+15550009999", Status: leads.StatusQualified,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := e.leads.Insert(ctx, leads.Lead{
		ID: "l2", OrganizationID: "other", Phone: "+15550008888", Status: leads.StatusQualified,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := e.do(t, http.MethodGet, "/v1/leads/qualified", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var out struct {
		Leads []leads.Lead `json:"leads"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Leads) != 1 || out.Leads[0].ID != "l1" {
		t.Fatalf("leads %+v", out.Leads)
	}
}

func TestGetCampaignMetrics(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.calls.Upsert(ctx, calls.Call{
		ID: "c1", OrganizationID: "org", CampaignID: "camp",
		Status: calls.CallStatusCompleted, DurationSeconds: 120,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := e.do(t, http.MethodGet, "/v1/campaigns/camp/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var m reporting.CampaignMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.CallsAttempted != 1 || m.CallsConnected != 1 {
		t.Fatalf("metrics %+v", m)
	}
}

func TestCreateExport_AuditsAndAnnounces(t *testing.T) {
	e := newEnv(t)

	announced := 0
	sub, _ := e.bus.Subscribe(context.Background(), events.ChannelExports, func(string, []byte) {
		announced++
	})
	defer sub.Close()

	w := e.do(t, http.MethodPost, "/v1/exports", map[string]string{
		"kind": "qualified_leads", "campaign_id": "camp",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var out map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out["export_id"] == "" || out["status"] != "queued" {
		t.Fatalf("response %v", out)
	}

	evs := e.audit.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventTypeExport {
		t.Fatalf("audit events %+v", evs)
	}
	if announced != 1 {
		t.Fatalf("export not announced on bus")
	}

	if w := e.do(t, http.MethodPost, "/v1/exports", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing kind accepted: %d", w.Code)
	}
}
