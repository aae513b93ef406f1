package domain

import "time"

// Document is a file attached to a claim, with AI-derived insights from
// the document reader. Claims own an append-only list of these.
type Document struct {
	ID         string    `json:"id"`
	ClaimID    string    `json:"claimId"`
	Filename   string    `json:"filename"`
	ContentRef string    `json:"contentRef"` // storage path or object key
	Summary    string    `json:"summary,omitempty"`
	Flags      []string  `json:"flags,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// DocumentInsights is the per-document output of the document reader.
type DocumentInsights struct {
	Summary   string   `json:"summary"`
	Flags     []string `json:"flags"`
	RiskHints []string `json:"riskHints,omitempty"`
}

// DocumentReader extracts insights from raw document bytes. Extraction
// itself is an external collaborator; only the contract lives here.
type DocumentReader interface {
	Insights(data []byte, mimeType string, claim *ClaimRecord) (*DocumentInsights, error)
}
