// Package intake validates that an uploaded claim carries enough usable
// information for analysis and adjudication.
package intake

import (
	"fmt"
	"strings"
	"time"

	"github.com/avia-insurance/avia/internal/domain"
)

// Intake status values.
const (
	StatusReady         = "READY"
	StatusNeedsMoreInfo = "NEEDS_MORE_INFO"
	StatusIncomplete    = "INCOMPLETE"
)

// requiredFields must be present and usable before analysis can run.
// policy_number lives on the claim record, not in the attribute map.
var requiredFields = []string{
	"policy_number",
	"incident_type",
	"incident_severity",
	"total_claim_amount",
}

// importantFields degrade a claim to NEEDS_MORE_INFO when absent.
var importantFields = []string{
	"bodily_injuries",
	"witnesses",
	"police_report_available",
	"property_damage",
	"authorities_contacted",
	"number_of_vehicles_involved",
}

// placeholders are string values treated as absent during validation.
var placeholders = map[string]struct{}{
	"": {}, "unknown": {}, "n/a": {}, "none": {}, "?": {},
	"—": {}, "-": {}, "not available": {}, "not mentioned": {},
}

// Result is the outcome of an intake check. ReadyForAnalysis depends only
// on required fields and inconsistencies; missing important fields degrade
// the status but never block analysis.
type Result struct {
	Status           string `json:"status"`
	ReadyForAnalysis bool   `json:"readyForAnalysis"`

	RequiredPresent []string `json:"requiredPresent"`
	RequiredTotal   int      `json:"requiredTotal"`

	ImportantPresent []string `json:"importantPresent"`
	ImportantTotal   int      `json:"importantTotal"`

	MissingRequired  []string `json:"missingRequired,omitempty"`
	MissingImportant []string `json:"missingImportant,omitempty"`
	Inconsistencies  []string `json:"inconsistencies,omitempty"`
}

// Validator checks claims against the intake field contract.
type Validator struct {
	now func() time.Time
}

// NewValidator creates a validator using wall-clock time for date checks.
func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// Validate checks the claim's fields and cross-field consistency. Missing
// required fields yield INCOMPLETE; missing important fields or any
// inconsistency yield NEEDS_MORE_INFO; otherwise the claim is READY.
func (v *Validator) Validate(claim *domain.ClaimRecord, docs []domain.Document) *Result {
	attrs := claim.Attributes.AttributeMap()
	attrs["policy_number"] = claim.PolicyNumber

	res := &Result{
		RequiredTotal:  len(requiredFields),
		ImportantTotal: len(importantFields),
	}

	for _, f := range requiredFields {
		if usable(attrs[f]) {
			res.RequiredPresent = append(res.RequiredPresent, f)
		} else {
			res.MissingRequired = append(res.MissingRequired, f)
		}
	}
	for _, f := range importantFields {
		if usable(attrs[f]) {
			res.ImportantPresent = append(res.ImportantPresent, f)
		} else {
			res.MissingImportant = append(res.MissingImportant, f)
		}
	}

	res.Inconsistencies = v.inconsistencies(claim, docs)
	res.ReadyForAnalysis = len(res.MissingRequired) == 0 && len(res.Inconsistencies) == 0

	switch {
	case len(res.MissingRequired) > 0:
		res.Status = StatusIncomplete
	case len(res.MissingImportant) > 0 || len(res.Inconsistencies) > 0:
		res.Status = StatusNeedsMoreInfo
	default:
		res.Status = StatusReady
	}
	return res
}

// inconsistencies runs the cross-field checks. Each failed check produces
// one investigator-facing message.
func (v *Validator) inconsistencies(claim *domain.ClaimRecord, docs []domain.Document) []string {
	a := &claim.Attributes
	var out []string

	if a.TotalClaimAmount != nil {
		amt := *a.TotalClaimAmount
		switch {
		case amt == 0:
			out = append(out, "zero claim amount")
		case amt < 0:
			out = append(out, "total claim amount is negative")
		}
		if amt > 1000000 {
			out = append(out, "total claim amount exceeds $1,000,000")
		}
	}

	incident, incidentOK := parseDate(a.IncidentDate)
	report, reportOK := parseDate(a.ReportDate)
	if incidentOK && reportOK && incident.After(report) {
		out = append(out, "incident date is after the report date")
	}
	if incidentOK && incident.After(v.now()) {
		out = append(out, "incident date is in the future")
	}

	if claim.Attributes.PoliceReportFiled() && !hasReportDocument(docs) {
		out = append(out, "police report marked available but no report document attached")
	}

	if a.AutoYear != nil {
		year := int(*a.AutoYear)
		maxYear := v.now().Year() + 1
		if year < 1980 || year > maxYear {
			out = append(out, fmt.Sprintf("vehicle year %d outside plausible range 1980-%d", year, maxYear))
		}
	}

	if claim.Source == domain.SourceUploaded && len(docs) == 0 {
		out = append(out, "uploaded claim has no supporting documents")
	}

	return out
}

// usable reports whether a value is present and not a placeholder. A zero
// amount is present; absence is the nil pointer, not the zero value.
func usable(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		_, bad := placeholders[strings.ToLower(strings.TrimSpace(x))]
		return !bad
	default:
		return true
	}
}

func parseDate(s *string) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(*s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// hasReportDocument looks for an attached document that resembles a police
// report by filename.
func hasReportDocument(docs []domain.Document) bool {
	for _, d := range docs {
		name := strings.ToLower(d.Filename)
		if strings.Contains(name, "police") || strings.Contains(name, "report") {
			return true
		}
	}
	return false
}
