// Package escalation assembles the handoff package a senior investigator
// receives when a claim is escalated.
package escalation

import (
	"fmt"
	"strings"
	"time"

	"github.com/avia-insurance/avia/internal/domain"
)

// Package is the structured escalation handoff for one claim.
type Package struct {
	ClaimID      string    `json:"claimId"`
	PolicyNumber string    `json:"policyNumber"`
	GeneratedAt  time.Time `json:"generatedAt"`

	OverallScore int                 `json:"overallScore"`
	RiskLevel    string              `json:"riskLevel"`
	BucketScores domain.BucketScores `json:"bucketScores"`
	NextAction   string              `json:"nextAction"`

	// Summary is the generative narrative when available, otherwise a
	// deterministic one-liner built from the scores.
	Summary string `json:"summary"`

	RiskFactors    []string       `json:"riskFactors,omitempty"`
	ReasoningTrace []string       `json:"reasoningTrace,omitempty"`
	Evidence       []EvidenceItem `json:"evidence,omitempty"`
	DecisionLog    []DecisionNote `json:"decisionLog,omitempty"`
}

// EvidenceItem is one attached document in the package.
type EvidenceItem struct {
	Filename   string    `json:"filename"`
	Summary    string    `json:"summary,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// DecisionNote is one audit-log entry in the package.
type DecisionNote struct {
	Action    string    `json:"action"`
	Notes     string    `json:"notes,omitempty"`
	DecidedBy string    `json:"decidedBy"`
	DecidedAt time.Time `json:"decidedAt"`
}

// Packager builds escalation packages.
type Packager struct {
	now func() time.Time
}

// NewPackager creates a packager using wall-clock time.
func NewPackager() *Packager {
	return &Packager{now: time.Now}
}

// Build assembles the package for an analyzed claim. The snapshot is
// required; callers surface domain.ErrNotFound before reaching here.
func (p *Packager) Build(claim *domain.ClaimRecord, snap *domain.AnalysisSnapshot, docs []domain.Document, decisions []domain.Decision) *Package {
	pkg := &Package{
		ClaimID:      claim.ID,
		PolicyNumber: claim.PolicyNumber,
		GeneratedAt:  p.now().UTC(),
		OverallScore: snap.OverallScore,
		RiskLevel:    snap.RiskLevel,
		BucketScores: snap.BucketScores,
		NextAction:   domain.NextAction(snap.RiskLevel),
		Summary:      summaryFor(claim, snap),
	}

	pkg.RiskFactors = append(pkg.RiskFactors, snap.Flags...)
	for _, f := range snap.TopFeatures {
		pkg.RiskFactors = append(pkg.RiskFactors, "elevated signal: "+f)
	}
	pkg.ReasoningTrace = snap.ReasoningTrace

	for _, d := range docs {
		pkg.Evidence = append(pkg.Evidence, EvidenceItem{
			Filename:   d.Filename,
			Summary:    d.Summary,
			UploadedAt: d.UploadedAt,
		})
	}
	for _, d := range decisions {
		pkg.DecisionLog = append(pkg.DecisionLog, DecisionNote{
			Action:    d.Action,
			Notes:     d.Notes,
			DecidedBy: d.DecidedBy,
			DecidedAt: d.DecidedAt,
		})
	}

	return pkg
}

func summaryFor(claim *domain.ClaimRecord, snap *domain.AnalysisSnapshot) string {
	if snap.Explanation != "" {
		return snap.Explanation
	}
	return fmt.Sprintf("Claim %s on policy %s scored %d (%s risk). Claim factors %.0f, customer factors %.0f, pattern factors %.0f.",
		claim.ID, claim.PolicyNumber, snap.OverallScore, snap.RiskLevel,
		snap.BucketScores.Claim, snap.BucketScores.Customer, snap.BucketScores.Pattern)
}

// RenderText produces the plain-text handoff document.
func (pkg *Package) RenderText() string {
	var b strings.Builder

	fmt.Fprintf(&b, "ESCALATION PACKAGE\n")
	fmt.Fprintf(&b, "==================\n\n")
	fmt.Fprintf(&b, "Claim:        %s\n", pkg.ClaimID)
	fmt.Fprintf(&b, "Policy:       %s\n", pkg.PolicyNumber)
	fmt.Fprintf(&b, "Generated:    %s\n", pkg.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Risk:         %d/100 (%s)\n", pkg.OverallScore, pkg.RiskLevel)
	fmt.Fprintf(&b, "Buckets:      claim %.1f | customer %.1f | pattern %.1f\n",
		pkg.BucketScores.Claim, pkg.BucketScores.Customer, pkg.BucketScores.Pattern)
	fmt.Fprintf(&b, "Next action:  %s\n", pkg.NextAction)

	fmt.Fprintf(&b, "\nSUMMARY\n-------\n%s\n", pkg.Summary)

	if len(pkg.RiskFactors) > 0 {
		fmt.Fprintf(&b, "\nRISK FACTORS\n------------\n")
		for _, f := range pkg.RiskFactors {
			fmt.Fprintf(&b, "* %s\n", f)
		}
	}

	if len(pkg.ReasoningTrace) > 0 {
		fmt.Fprintf(&b, "\nREASONING TRACE\n---------------\n")
		for i, step := range pkg.ReasoningTrace {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}

	fmt.Fprintf(&b, "\nEVIDENCE\n--------\n")
	if len(pkg.Evidence) == 0 {
		fmt.Fprintf(&b, "No documents attached.\n")
	}
	for _, e := range pkg.Evidence {
		fmt.Fprintf(&b, "* %s (uploaded %s)\n", e.Filename, e.UploadedAt.Format("2006-01-02"))
		if e.Summary != "" {
			fmt.Fprintf(&b, "  %s\n", e.Summary)
		}
	}

	if len(pkg.DecisionLog) > 0 {
		fmt.Fprintf(&b, "\nDECISION LOG\n------------\n")
		for _, d := range pkg.DecisionLog {
			fmt.Fprintf(&b, "* %s by %s at %s", d.Action, d.DecidedBy, d.DecidedAt.Format(time.RFC3339))
			if d.Notes != "" {
				fmt.Fprintf(&b, ": %s", d.Notes)
			}
			fmt.Fprintf(&b, "\n")
		}
	}

	return b.String()
}
