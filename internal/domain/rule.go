package domain

// RuleConfig defines a heuristic scoring rule. Rules are compiled once at
// startup and evaluated against claim attributes; a rule that fires adds
// Delta points to its bucket and raises Flag.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Expression is a CEL expression over the claim activation variables.
	// It must return a bool.
	Expression string `json:"expression"`

	// Bucket is one of "claim", "customer" or "pattern".
	Bucket string `json:"bucket"`

	// Delta is added to the bucket score when the rule fires.
	Delta float64 `json:"delta"`

	// Flag is the investigator-facing message raised when the rule fires.
	Flag string `json:"flag"`

	Enabled bool `json:"enabled"`
}

// RuleHit records a rule that fired during evaluation.
type RuleHit struct {
	RuleID string  `json:"ruleId"`
	Name   string  `json:"name"`
	Bucket string  `json:"bucket"`
	Delta  float64 `json:"delta"`
	Flag   string  `json:"flag"`
}
