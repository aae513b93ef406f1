// Package genai calls the Gemini REST API to produce investigator-facing
// narratives: risk explanations, reasoning traces and document insights.
// All calls are context-bounded; a failure never blocks scoring, callers
// record the error alongside the numeric results.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avia-insurance/avia/internal/domain"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ExplainRequest carries the scored claim context into the explainer.
type ExplainRequest struct {
	ClaimID           string
	Attributes        map[string]any
	OverallScore      int
	BucketScores      domain.BucketScores
	RiskLevel         string
	Flags             []string
	TopFeatures       []string
	DocumentSummaries []string
}

// Explanation is the generative output attached to an analysis snapshot.
type Explanation struct {
	Narrative string
	Trace     []string
}

// Explainer produces a narrative explanation for a scored claim.
type Explainer interface {
	Explain(ctx context.Context, req *ExplainRequest) (*Explanation, error)
}

// Client is the Gemini REST client. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// Config holds Gemini client settings.
type Config struct {
	APIKey  string
	Model   string // e.g. "gemini-2.0-flash"
	BaseURL string // override for tests
	Timeout time.Duration
}

// NewClient creates a Gemini client. An empty API key is allowed; calls
// will fail and the caller falls back to numeric-only results.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

// Explain asks the model for a short narrative and a five-step reasoning
// trace, both grounded only in the supplied claim context.
func (c *Client) Explain(ctx context.Context, req *ExplainRequest) (*Explanation, error) {
	prompt := buildExplainPrompt(req)

	text, err := c.generate(ctx, []part{{Text: prompt}})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Explanation string   `json:"explanation"`
		Trace       []string `json:"trace"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		return nil, fmt.Errorf("%w: unparseable model output: %v", domain.ErrExplanationUnavailable, err)
	}
	if parsed.Explanation == "" {
		return nil, fmt.Errorf("%w: empty explanation", domain.ErrExplanationUnavailable)
	}

	return &Explanation{Narrative: parsed.Explanation, Trace: parsed.Trace}, nil
}

func buildExplainPrompt(req *ExplainRequest) string {
	var b strings.Builder
	b.WriteString("You are assisting an insurance fraud investigator.\n")
	b.WriteString("Given the scored claim below, respond with ONLY a JSON object of the form\n")
	b.WriteString(`{"explanation": "<2-3 sentence narrative>", "trace": ["step 1", ..., "step 5"]}` + "\n")
	b.WriteString("The trace must have exactly 5 short investigative reasoning steps.\n")
	b.WriteString("Use only the facts provided. Do not invent details.\n\n")

	fmt.Fprintf(&b, "Overall risk score: %d (%s)\n", req.OverallScore, req.RiskLevel)
	fmt.Fprintf(&b, "Bucket scores: claim=%.1f customer=%.1f pattern=%.1f\n",
		req.BucketScores.Claim, req.BucketScores.Customer, req.BucketScores.Pattern)
	if len(req.Flags) > 0 {
		fmt.Fprintf(&b, "Flags: %s\n", strings.Join(req.Flags, "; "))
	}
	if len(req.TopFeatures) > 0 {
		fmt.Fprintf(&b, "Top contributing factors: %s\n", strings.Join(req.TopFeatures, "; "))
	}
	if len(req.DocumentSummaries) > 0 {
		fmt.Fprintf(&b, "Document summaries:\n")
		for _, s := range req.DocumentSummaries {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	attrs, _ := json.Marshal(req.Attributes)
	fmt.Fprintf(&b, "Claim attributes: %s\n", attrs)

	return b.String()
}

// generateContent wire types.

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// generate performs one generateContent call and returns the first
// candidate's text.
func (c *Client) generate(ctx context.Context, parts []part) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: no API key configured", domain.ErrExplanationUnavailable)
	}

	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExplanationUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", domain.ErrExplanationUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrExplanationUnavailable, resp.StatusCode, truncate(string(data), 200))
	}

	var gr generateResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", domain.ErrExplanationUnavailable, err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates returned", domain.ErrExplanationUnavailable)
	}
	return gr.Candidates[0].Content.Parts[0].Text, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
