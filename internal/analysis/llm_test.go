package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"outreach-platform/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*LLMClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewLLMClient(config.LLMConfig{
		APIKey:    "test-key",
		Model:     "gpt-4o-mini",
		BaseURL:   srv.URL,
		MaxTokens: 512,
	})
	return c, srv
}

func TestLLMClient_ParsesStructuredAnalysis(t *testing.T) {
	var gotReq chatRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		content := `{"contact_info":{"name":"Ada Lovelace","phone":"+15550001111"},"outcome":"interested","sentiment":"positive","confidence_score":0.85,"is_qualified_lead":true}`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		})
	})

	res, err := c.AnalyzeTranscript(context.Background(), "hello, very interested", 200, "")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.ContactInfo.Name != "Ada Lovelace" || res.ConfidenceScore != 0.85 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.BuyingSignals == nil {
		t.Fatalf("expected normalized slices")
	}

	// Determinism contract: low temperature, bounded tokens, JSON mode.
	if gotReq.Temperature != llmTemperature {
		t.Fatalf("temperature = %v, want %v", gotReq.Temperature, llmTemperature)
	}
	if gotReq.MaxTokens != 512 {
		t.Fatalf("max_tokens = %d, want 512", gotReq.MaxTokens)
	}
	if gotReq.ResponseFormat.Type != "json_object" {
		t.Fatalf("response_format = %q", gotReq.ResponseFormat.Type)
	}
}

func TestLLMClient_MalformedContentIsAnError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "sorry, not json"}}},
		})
	})
	if _, err := c.AnalyzeTranscript(context.Background(), "hi", 10, ""); err == nil {
		t.Fatalf("expected parse error for malformed content")
	}
}

func TestLLMClient_SurfacesAPIErrors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit"},
		})
	})
	if _, err := c.AnalyzeTranscript(context.Background(), "hi", 10, ""); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}

func TestLLMClient_UnconfiguredIsUnavailable(t *testing.T) {
	c := NewLLMClient(config.LLMConfig{})
	if c.Available() {
		t.Fatalf("client without api key must not report available")
	}
	if _, err := c.AnalyzeTranscript(context.Background(), "hi", 10, ""); err == nil {
		t.Fatalf("expected error from unconfigured client")
	}
}
