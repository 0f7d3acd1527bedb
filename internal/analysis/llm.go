package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"outreach-platform/internal/config"
)

// temperature is fixed low on purpose: analysis output feeds a deterministic
// qualification engine, and retried calls should score the same transcript
// the same way.
const llmTemperature = 0.1

const systemPrompt = `You analyze sales call transcripts for an outbound phone campaign platform.
Respond with a single JSON object matching this schema (all fields optional):
{
  "contact_info": {"name": "", "email": "", "phone": "", "company": "", "job_title": "", "address": ""},
  "qualification": {"interest_level": 0, "pain_points": [], "budget": "", "timeline": "", "decision_authority": ""},
  "outcome": "", "sentiment": "", "summary": "",
  "key_points": [], "buying_signals": [], "objections": [], "questions": [], "next_steps": [],
  "confidence_score": 0.0, "is_qualified_lead": false
}
confidence_score is in [0,1]. interest_level is 0-10. Do not include prose outside the JSON.`

// LLMClient calls an OpenAI-compatible chat completions endpoint.
type LLMClient struct {
	apiKey     string
	model      string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
}

func NewLLMClient(cfg config.LLMConfig) *LLMClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &LLMClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Available reports whether the client is configured to make requests.
func (c *LLMClient) Available() bool { return c != nil && c.apiKey != "" }

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// AnalyzeTranscript sends the transcript and call metadata to the model and
// parses the structured JSON reply. Any transport, status, or parse failure is
// returned as an error; the caller falls back to the heuristic path.
func (c *LLMClient) AnalyzeTranscript(ctx context.Context, transcript string, durationSeconds int, priorSummary string) (Result, error) {
	if !c.Available() {
		return Result{}, fmt.Errorf("llm: not configured")
	}

	user := fmt.Sprintf("Call duration: %d seconds.\n", durationSeconds)
	if priorSummary != "" {
		user += "Prior summary: " + priorSummary + "\n"
	}
	user += "Transcript:\n" + transcript

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		Temperature:    llmTemperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr chatError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return Result{}, fmt.Errorf("llm error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return Result{}, fmt.Errorf("llm error: status %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return Result{}, fmt.Errorf("llm response parse failed: %w", err)
	}
	if len(cr.Choices) == 0 {
		return Result{}, fmt.Errorf("llm response had no choices")
	}

	var out Result
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &out); err != nil {
		return Result{}, fmt.Errorf("llm analysis parse failed: %w", err)
	}
	out.Normalize()
	return out, nil
}
