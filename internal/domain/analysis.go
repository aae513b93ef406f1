package domain

import (
	"time"
)

// Risk level values derived from the overall score.
const (
	RiskHigh   = "High"
	RiskMedium = "Medium"
	RiskLow    = "Low"
)

// AnalysisSnapshot is the latest scoring result for a claim. Exactly one
// snapshot is live per claim; re-analysis replaces it wholesale.
type AnalysisSnapshot struct {
	ID      string `json:"id"`
	ClaimID string `json:"claimId"`

	OverallScore   int          `json:"overallScore"` // 0-100
	BucketScores   BucketScores `json:"bucketScores"`
	RiskLevel      string       `json:"riskLevel"`
	Flags          []string     `json:"flags"`
	Explanation    string       `json:"explanation,omitempty"`
	ReasoningTrace []string     `json:"reasoningTrace,omitempty"`
	TopFeatures    []string     `json:"topFeatures,omitempty"`

	// GenAIError is set when the generative explainer failed; the numeric
	// scores are still valid.
	GenAIError string `json:"genaiError,omitempty"`

	// Raw model outputs, kept for the escalation package.
	FraudProbability float64 `json:"fraudProbability"`
	AnomalyScore     float64 `json:"anomalyScore"`

	// Fallback is true when the heuristic scorer produced the result
	// because model artifacts were unavailable.
	Fallback bool `json:"fallback,omitempty"`

	AnalyzedAt time.Time `json:"analyzedAt"`
}

// BucketScores holds the three 0-100 sub-scores.
type BucketScores struct {
	Claim    float64 `json:"claim"`
	Customer float64 `json:"customer"`
	Pattern  float64 `json:"pattern"`
}

// ScoringConfig names the thresholds and bucket weights. Two deployment
// variants exist (65/35 and 80/60); the 65/35 pair is the default and the
// other is reachable only through configuration.
type ScoringConfig struct {
	HighRiskThreshold   int     `json:"highRiskThreshold"`
	MediumRiskThreshold int     `json:"mediumRiskThreshold"`
	ClaimWeight         float64 `json:"claimWeight"`
	CustomerWeight      float64 `json:"customerWeight"`
	PatternWeight       float64 `json:"patternWeight"`

	// GenAITimeout bounds the generative explainer call during analyze.
	GenAITimeout time.Duration `json:"-"`
}

// DefaultScoringConfig returns the production scoring defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		HighRiskThreshold:   65,
		MediumRiskThreshold: 35,
		ClaimWeight:         0.45,
		CustomerWeight:      0.30,
		PatternWeight:       0.25,
		GenAITimeout:        20 * time.Second,
	}
}

// RiskLevelFor maps an overall score to a risk level under this config.
func (c ScoringConfig) RiskLevelFor(overall int) string {
	switch {
	case overall >= c.HighRiskThreshold:
		return RiskHigh
	case overall >= c.MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// NextAction returns the investigator hint for a risk level.
func NextAction(riskLevel string) string {
	switch riskLevel {
	case RiskHigh:
		return "Escalation Recommended"
	case RiskMedium:
		return "Further Review Needed"
	default:
		return "Routine — Proceed to Close"
	}
}
