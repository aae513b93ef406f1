// Package domain defines the core types and interfaces for Avia.
package domain

import (
	"strings"
	"time"
)

// Claim source values.
const (
	SourceDataset  = "dataset"
	SourceUploaded = "uploaded"
)

// ClaimRecord is an insurance claim under investigation.
type ClaimRecord struct {
	ID           string `json:"id"`
	OrgID        string `json:"orgId"`
	PolicyNumber string `json:"policyNumber"`

	// Source determines whether intake validation gates analysis:
	// "dataset" claims have structured fields and skip the gate,
	// "uploaded" claims must pass the intake check first.
	Source string `json:"source"`

	// Status is derived from (snapshot, latest decision); persisted for
	// cheap list queries but never the source of truth.
	Status string `json:"status"`

	Attributes ClaimAttributes `json:"attributes"`

	CreatedAt  time.Time  `json:"createdAt"`
	AnalyzedAt *time.Time `json:"analyzedAt,omitempty"`

	// AnalysisVersion increments on every snapshot replace; stale writers
	// are rejected with ErrConflict.
	AnalysisVersion int64 `json:"analysisVersion"`
}

// ClaimAttributes is the typed claim schema. Every field is optional:
// nil means the value was never provided. The feature normalizer and
// intake validator operate over this contract instead of string-keyed
// lookups.
type ClaimAttributes struct {
	// Incident
	IncidentType         *string  `json:"incident_type,omitempty"`
	CollisionType        *string  `json:"collision_type,omitempty"`
	IncidentSeverity     *string  `json:"incident_severity,omitempty"`
	IncidentDate         *string  `json:"incident_date,omitempty"` // YYYY-MM-DD
	ReportDate           *string  `json:"report_date,omitempty"`   // YYYY-MM-DD
	IncidentState        *string  `json:"incident_state,omitempty"`
	IncidentCity         *string  `json:"incident_city,omitempty"`
	IncidentHourOfDay    *float64 `json:"incident_hour_of_the_day,omitempty"`
	AuthoritiesContacted *string  `json:"authorities_contacted,omitempty"`

	// Amounts
	TotalClaimAmount *float64 `json:"total_claim_amount,omitempty"`
	InjuryClaim      *float64 `json:"injury_claim,omitempty"`
	PropertyClaim    *float64 `json:"property_claim,omitempty"`
	VehicleClaim     *float64 `json:"vehicle_claim,omitempty"`

	// People and evidence
	MonthsAsCustomer         *float64 `json:"months_as_customer,omitempty"`
	Age                      *float64 `json:"age,omitempty"`
	BodilyInjuries           *float64 `json:"bodily_injuries,omitempty"`
	Witnesses                *float64 `json:"witnesses,omitempty"`
	NumberOfVehiclesInvolved *float64 `json:"number_of_vehicles_involved,omitempty"`
	PoliceReportAvailable    *string  `json:"police_report_available,omitempty"` // YES / NO / ?
	PropertyDamage           *string  `json:"property_damage,omitempty"`         // YES / NO / ?

	// Policyholder
	InsuredSex            *string  `json:"insured_sex,omitempty"`
	InsuredEducationLevel *string  `json:"insured_education_level,omitempty"`
	InsuredOccupation     *string  `json:"insured_occupation,omitempty"`
	InsuredHobbies        *string  `json:"insured_hobbies,omitempty"`
	InsuredRelationship   *string  `json:"insured_relationship,omitempty"`
	InsuredZip            *string  `json:"insured_zip,omitempty"`
	CapitalGains          *float64 `json:"capital-gains,omitempty"`
	CapitalLoss           *float64 `json:"capital-loss,omitempty"`

	// Policy
	PolicyState         *string  `json:"policy_state,omitempty"`
	PolicyCSL           *string  `json:"policy_csl,omitempty"`
	PolicyDeductible    *float64 `json:"policy_deductable,omitempty"`
	PolicyAnnualPremium *float64 `json:"policy_annual_premium,omitempty"`
	UmbrellaLimit       *float64 `json:"umbrella_limit,omitempty"`

	// Vehicle
	AutoMake            *string  `json:"auto_make,omitempty"`
	AutoModel           *string  `json:"auto_model,omitempty"`
	AutoYear            *float64 `json:"auto_year,omitempty"`
	VehicleRegistration *string  `json:"vehicle_registration,omitempty"`
}

// AttributeMap exposes the attributes under their canonical training-time
// feature names. Absent fields are omitted, so callers can distinguish
// "missing" from zero.
func (a *ClaimAttributes) AttributeMap() map[string]any {
	m := make(map[string]any, 32)
	putS := func(k string, v *string) {
		if v != nil {
			m[k] = *v
		}
	}
	putF := func(k string, v *float64) {
		if v != nil {
			m[k] = *v
		}
	}
	putS("incident_type", a.IncidentType)
	putS("collision_type", a.CollisionType)
	putS("incident_severity", a.IncidentSeverity)
	putS("incident_date", a.IncidentDate)
	putS("report_date", a.ReportDate)
	putS("incident_state", a.IncidentState)
	putS("incident_city", a.IncidentCity)
	putF("incident_hour_of_the_day", a.IncidentHourOfDay)
	putS("authorities_contacted", a.AuthoritiesContacted)
	putF("total_claim_amount", a.TotalClaimAmount)
	putF("injury_claim", a.InjuryClaim)
	putF("property_claim", a.PropertyClaim)
	putF("vehicle_claim", a.VehicleClaim)
	putF("months_as_customer", a.MonthsAsCustomer)
	putF("age", a.Age)
	putF("bodily_injuries", a.BodilyInjuries)
	putF("witnesses", a.Witnesses)
	putF("number_of_vehicles_involved", a.NumberOfVehiclesInvolved)
	putS("police_report_available", a.PoliceReportAvailable)
	putS("property_damage", a.PropertyDamage)
	putS("insured_sex", a.InsuredSex)
	putS("insured_education_level", a.InsuredEducationLevel)
	putS("insured_occupation", a.InsuredOccupation)
	putS("insured_hobbies", a.InsuredHobbies)
	putS("insured_relationship", a.InsuredRelationship)
	putS("insured_zip", a.InsuredZip)
	putF("capital-gains", a.CapitalGains)
	putF("capital-loss", a.CapitalLoss)
	putS("policy_state", a.PolicyState)
	putS("policy_csl", a.PolicyCSL)
	putF("policy_deductable", a.PolicyDeductible)
	putF("policy_annual_premium", a.PolicyAnnualPremium)
	putF("umbrella_limit", a.UmbrellaLimit)
	putS("auto_make", a.AutoMake)
	putS("auto_model", a.AutoModel)
	putF("auto_year", a.AutoYear)
	putS("vehicle_registration", a.VehicleRegistration)
	return m
}

// PoliceReportFiled reports whether a police report is recorded as filed.
// The dataset encodes this as YES / NO / "?" strings.
func (a *ClaimAttributes) PoliceReportFiled() bool {
	if a.PoliceReportAvailable == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(*a.PoliceReportAvailable), "yes")
}

// VehicleIncident reports whether the incident type involves a vehicle.
func (a *ClaimAttributes) VehicleIncident() bool {
	if a.IncidentType == nil {
		return false
	}
	t := strings.ToLower(*a.IncidentType)
	return strings.Contains(t, "vehicle") || strings.Contains(t, "collision") ||
		strings.Contains(t, "parked car") || strings.Contains(t, "theft")
}
