package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/avia-insurance/avia/internal/domain"
)

// readerTimeout bounds a single document extraction call.
const readerTimeout = 30 * time.Second

// Reader extracts summaries and flags from claim documents with Gemini.
// It implements domain.DocumentReader.
type Reader struct {
	client *Client
}

// NewReader creates a document reader over a Gemini client.
func NewReader(client *Client) *Reader {
	return &Reader{client: client}
}

// Insights sends the document inline and asks for a summary plus any
// anomalies worth flagging.
func (r *Reader) Insights(data []byte, mimeType string, claim *domain.ClaimRecord) (*domain.DocumentInsights, error) {
	ctx, cancel := context.WithTimeout(context.Background(), readerTimeout)
	defer cancel()

	prompt := buildReaderPrompt(claim)

	text, err := r.client.generate(ctx, []part{
		{Text: prompt},
		{InlineData: &inlineData{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		}},
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Summary   string   `json:"summary"`
		Flags     []string `json:"flags"`
		RiskHints []string `json:"risk_hints"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		return nil, fmt.Errorf("%w: unparseable reader output: %v", domain.ErrExplanationUnavailable, err)
	}

	return &domain.DocumentInsights{
		Summary:   parsed.Summary,
		Flags:     parsed.Flags,
		RiskHints: parsed.RiskHints,
	}, nil
}

func buildReaderPrompt(claim *domain.ClaimRecord) string {
	var b strings.Builder
	b.WriteString("You are reviewing a document attached to an insurance claim.\n")
	b.WriteString("Respond with ONLY a JSON object of the form\n")
	b.WriteString(`{"summary": "<1-2 sentences>", "flags": ["..."], "risk_hints": ["..."]}` + "\n")
	b.WriteString("Flags are short phrases naming contradictions or anomalies; an empty array is fine.\n")

	if claim != nil {
		if attrs, err := json.Marshal(claim.Attributes.AttributeMap()); err == nil {
			fmt.Fprintf(&b, "Claim context for cross-checking: %s\n", attrs)
		}
	}
	return b.String()
}
