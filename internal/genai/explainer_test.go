package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avia-insurance/avia/internal/domain"
)

func geminiStub(t *testing.T, text string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") == "" {
			t.Error("missing API key header")
		}
		w.WriteHeader(status)
		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func testRequest() *ExplainRequest {
	return &ExplainRequest{
		ClaimID:      "claim-001",
		OverallScore: 72,
		RiskLevel:    domain.RiskHigh,
		BucketScores: domain.BucketScores{Claim: 80, Customer: 60, Pattern: 70},
		Flags:        []string{"Unusually high claim amount"},
		TopFeatures:  []string{"total claim amount"},
		Attributes:   map[string]any{"total_claim_amount": 60000.0},
	}
}

func TestExplainParsesModelOutput(t *testing.T) {
	payload := `{"explanation": "High amount with short tenure.", "trace": ["a", "b", "c", "d", "e"]}`
	srv := geminiStub(t, payload, http.StatusOK)
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})

	got, err := c.Explain(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("explain failed: %v", err)
	}
	if got.Narrative != "High amount with short tenure." {
		t.Errorf("narrative = %q", got.Narrative)
	}
	if len(got.Trace) != 5 {
		t.Errorf("trace length = %d, want 5", len(got.Trace))
	}
}

func TestExplainStripsCodeFences(t *testing.T) {
	payload := "```json\n{\"explanation\": \"ok\", \"trace\": []}\n```"
	srv := geminiStub(t, payload, http.StatusOK)
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})

	got, err := c.Explain(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("explain failed: %v", err)
	}
	if got.Narrative != "ok" {
		t.Errorf("narrative = %q", got.Narrative)
	}
}

func TestExplainUnparseableOutput(t *testing.T) {
	srv := geminiStub(t, "I cannot answer in JSON, sorry.", http.StatusOK)
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})

	_, err := c.Explain(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrExplanationUnavailable) {
		t.Errorf("expected ErrExplanationUnavailable, got %v", err)
	}
}

func TestExplainServerError(t *testing.T) {
	srv := geminiStub(t, "", http.StatusInternalServerError)
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})

	_, err := c.Explain(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrExplanationUnavailable) {
		t.Errorf("expected ErrExplanationUnavailable, got %v", err)
	}
}

func TestExplainNoAPIKey(t *testing.T) {
	c := NewClient(Config{})

	_, err := c.Explain(context.Background(), testRequest())
	if !errors.Is(err, domain.ErrExplanationUnavailable) {
		t.Errorf("expected ErrExplanationUnavailable, got %v", err)
	}
}

func TestExplainContextCancelled(t *testing.T) {
	srv := geminiStub(t, `{"explanation": "ok", "trace": []}`, http.StatusOK)
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Explain(ctx, testRequest())
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestReaderInsights(t *testing.T) {
	payload := `{"summary": "Repair estimate for rear bumper.", "flags": ["Estimate exceeds typical cost"], "risk_hints": ["verify shop"]}`
	srv := geminiStub(t, payload, http.StatusOK)
	defer srv.Close()

	r := NewReader(NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}))

	claim := &domain.ClaimRecord{ID: "claim-001"}
	got, err := r.Insights([]byte("%PDF-1.4 fake"), "application/pdf", claim)
	if err != nil {
		t.Fatalf("insights failed: %v", err)
	}
	if got.Summary == "" || len(got.Flags) != 1 || len(got.RiskHints) != 1 {
		t.Errorf("unexpected insights: %+v", got)
	}
}
