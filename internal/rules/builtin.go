package rules

import "github.com/avia-insurance/avia/internal/domain"

// BuiltinRules returns the default rule set loaded at startup. Deployments
// can replace or extend these through configuration.
func BuiltinRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{
		{
			ID:         "zero-claim-amount",
			Name:       "Zero claim amount",
			Expression: `"total_claim_amount" in claim && amount == 0.0`,
			Bucket:     "claim",
			Delta:      20,
			Flag:       "Claim amount is zero",
			Enabled:    true,
		},
		{
			ID:         "high-claim-amount",
			Name:       "Unusually high claim amount",
			Expression: `amount > 50000.0`,
			Bucket:     "claim",
			Delta:      20,
			Flag:       "Unusually high claim amount",
			Enabled:    true,
		},
		{
			ID:         "total-loss-severity",
			Name:       "Total loss reported",
			Expression: `incident_severity.contains("total loss")`,
			Bucket:     "claim",
			Delta:      15,
			Flag:       "Incident reported as total loss",
			Enabled:    true,
		},
		{
			ID:         "no-police-report-vehicle",
			Name:       "Vehicle incident without police report",
			Expression: `vehicle_incident && !police_report_filed`,
			Bucket:     "claim",
			Delta:      15,
			Flag:       "No police report for a vehicle incident",
			Enabled:    true,
		},
		{
			ID:         "injuries-without-witnesses",
			Name:       "Injuries with no witnesses",
			Expression: `bodily_injuries > 0 && witnesses == 0`,
			Bucket:     "claim",
			Delta:      10,
			Flag:       "Bodily injuries reported with no witnesses",
			Enabled:    true,
		},
		{
			ID:         "very-short-tenure",
			Name:       "Claim in first month of tenure",
			Expression: `months_as_customer >= 0 && months_as_customer < 1`,
			Bucket:     "customer",
			Delta:      20,
			Flag:       "Claim filed within first month as customer",
			Enabled:    true,
		},
		{
			ID:         "new-customer",
			Name:       "Customer tenure under a year",
			Expression: `months_as_customer >= 1 && months_as_customer < 12`,
			Bucket:     "customer",
			Delta:      10,
			Flag:       "Customer tenure under one year",
			Enabled:    true,
		},
		{
			ID:         "amount-outpaces-tenure",
			Name:       "Claim amount outpaces tenure",
			Expression: `months_as_customer > 0 && amount / double(months_as_customer) > 2000.0`,
			Bucket:     "customer",
			Delta:      15,
			Flag:       "Claim amount disproportionate to customer tenure",
			Enabled:    true,
		},
		{
			ID:         "round-amount",
			Name:       "Suspiciously round amount",
			Expression: `amount > 0.0 && int(amount) % 1000 == 0 && amount == double(int(amount))`,
			Bucket:     "pattern",
			Delta:      10,
			Flag:       "Claim amount is a suspiciously round number",
			Enabled:    true,
		},
		{
			ID:         "filing-velocity",
			Name:       "Repeat filings on policy",
			Expression: `velocity_count > 2`,
			Bucket:     "pattern",
			Delta:      15,
			Flag:       "Multiple recent claims on the same policy",
			Enabled:    true,
		},
	}
}
