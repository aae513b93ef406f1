// Package insight merges per-document findings into a single claim-level
// view for scoring and the escalation package.
package insight

import (
	"fmt"
	"strings"

	"github.com/avia-insurance/avia/internal/domain"
)

// ClaimInsights is the merged document view for one claim.
type ClaimInsights struct {
	// Summaries holds one entry per document with a non-empty summary,
	// in upload order, prefixed with the filename.
	Summaries []string `json:"summaries,omitempty"`

	// Flags is the deduplicated union of all document flags, in first-seen
	// order.
	Flags []string `json:"flags,omitempty"`

	DocumentCount int `json:"documentCount"`
}

// Aggregate merges the insights of all documents attached to a claim.
// Flags are deduplicated case-insensitively; the first spelling seen wins
// and relative order is preserved.
func Aggregate(docs []domain.Document) *ClaimInsights {
	out := &ClaimInsights{DocumentCount: len(docs)}

	seen := make(map[string]struct{})
	for _, d := range docs {
		if s := strings.TrimSpace(d.Summary); s != "" {
			out.Summaries = append(out.Summaries, fmt.Sprintf("%s: %s", d.Filename, s))
		}
		for _, f := range d.Flags {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			key := strings.ToLower(f)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out.Flags = append(out.Flags, f)
		}
	}
	return out
}

// MergeFlags appends claim-level flags onto base with the same
// case-insensitive first-wins semantics used for document flags.
func MergeFlags(base []string, extra ...[]string) []string {
	seen := make(map[string]struct{}, len(base))
	out := make([]string, 0, len(base))
	add := func(f string) {
		f = strings.TrimSpace(f)
		if f == "" {
			return
		}
		key := strings.ToLower(f)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	for _, f := range base {
		add(f)
	}
	for _, group := range extra {
		for _, f := range group {
			add(f)
		}
	}
	return out
}
