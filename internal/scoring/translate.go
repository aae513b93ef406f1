package scoring

import "strings"

// featureTranslations maps training feature names to investigator-facing
// labels used in flags, top features and the escalation package.
var featureTranslations = map[string]string{
	"months_as_customer":          "customer tenure",
	"age":                         "policyholder age",
	"policy_deductable":           "deductible amount",
	"policy_annual_premium":       "annual premium",
	"umbrella_limit":              "umbrella coverage limit",
	"insured_sex":                 "gender",
	"insured_education_level":     "education level",
	"insured_occupation":          "occupation",
	"insured_relationship":        "relationship status",
	"capital-gains":               "reported capital gains",
	"capital-loss":                "reported capital losses",
	"incident_type":               "type of incident",
	"collision_type":              "collision type",
	"incident_severity":           "damage severity",
	"authorities_contacted":       "authorities contacted",
	"number_of_vehicles_involved": "number of vehicles",
	"bodily_injuries":             "bodily injuries",
	"witnesses":                   "witness count",
	"total_claim_amount":          "total claim amount",
	"injury_claim":                "injury claim portion",
	"property_claim":              "property claim portion",
	"vehicle_claim":               "vehicle claim portion",
	"incident_hour_of_the_day":    "time of incident",
	"auto_make":                   "vehicle make",
	"auto_model":                  "vehicle model",
	"auto_year":                   "vehicle age",
	"policy_state":                "policy state",
	"insured_hobbies":             "policyholder hobbies",
	"incident_state":              "incident location",
	"incident_city":               "incident city",
	"property_damage":             "property damage reported",
	"police_report_available":     "police report availability",
}

// Translate returns the investigator-facing label for a feature name.
func Translate(feature string) string {
	if t, ok := featureTranslations[feature]; ok {
		return t
	}
	return strings.ReplaceAll(feature, "_", " ")
}
