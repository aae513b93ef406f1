// Package artifacts loads trained model artifacts from disk.
//
// Artifacts are produced by the offline training pipeline and exported as a
// single metadata.json: feature order, label encoder classes, scaler
// statistics, logistic classifier weights, anomaly score bounds and the
// feature-to-bucket assignment. They are immutable for the lifetime of the
// process; reload requires a restart.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/avia-insurance/avia/internal/domain"
)

// Bucket names used in the feature-to-bucket assignment.
const (
	BucketClaim    = "claim"
	BucketCustomer = "customer"
	BucketPattern  = "pattern"
)

// UnknownCategoryCode is the reserved encoder output for category values
// never seen at training time.
const UnknownCategoryCode = 0

// ModelArtifacts is the immutable artifact bundle injected into the scorer.
type ModelArtifacts struct {
	FeatureNames []string `json:"feature_names"`
	CatCols      []string `json:"cat_cols"`

	// LabelEncoders maps categorical feature -> class value -> code.
	LabelEncoders map[string]map[string]int `json:"label_encoders"`

	// ScalerMean and ScalerScale hold per-feature standardization stats,
	// aligned with FeatureNames.
	ScalerMean  []float64 `json:"scaler_mean"`
	ScalerScale []float64 `json:"scaler_scale"`

	// ImputationDefaults holds training-time medians for numeric features;
	// absent entries impute to zero.
	ImputationDefaults map[string]float64 `json:"imputation_defaults"`

	Classifier ClassifierArtifact `json:"classifier"`
	Anomaly    AnomalyArtifact    `json:"anomaly"`

	// Buckets assigns each feature to claim/customer/pattern. Features
	// missing from the map fall into the pattern bucket.
	Buckets map[string]string `json:"buckets"`
}

// ClassifierArtifact is the exported fraud classifier: a logistic model
// over the scaled feature vector.
type ClassifierArtifact struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

// AnomalyArtifact holds the persisted normalization range for the raw
// anomaly score observed at training time.
type AnomalyArtifact struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Load reads metadata.json from dir. A load failure is reported as
// domain.ErrModelUnavailable so callers route to the fallback scorer.
func Load(dir string) (*ModelArtifacts, error) {
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	var a ModelArtifacts
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: parsing metadata: %v", domain.ErrModelUnavailable, err)
	}
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	return &a, nil
}

func (a *ModelArtifacts) validate() error {
	n := len(a.FeatureNames)
	if n == 0 {
		return fmt.Errorf("no feature names")
	}
	if len(a.ScalerMean) != n || len(a.ScalerScale) != n {
		return fmt.Errorf("scaler stats length %d/%d does not match %d features",
			len(a.ScalerMean), len(a.ScalerScale), n)
	}
	if len(a.Classifier.Weights) != n {
		return fmt.Errorf("classifier weights length %d does not match %d features",
			len(a.Classifier.Weights), n)
	}
	if a.Anomaly.Max <= a.Anomaly.Min {
		return fmt.Errorf("anomaly bounds [%v,%v] are empty", a.Anomaly.Min, a.Anomaly.Max)
	}
	return nil
}

// Categorical reports whether the feature is label-encoded. CatCols stays
// in the single digits, so a scan beats carrying a derived index that a
// hand-built bundle would lack.
func (a *ModelArtifacts) Categorical(feature string) bool {
	for _, c := range a.CatCols {
		if c == feature {
			return true
		}
	}
	return false
}

// Encode maps a categorical value to its training-time code, or
// UnknownCategoryCode for values never seen in training.
func (a *ModelArtifacts) Encode(feature, value string) int {
	enc, ok := a.LabelEncoders[feature]
	if !ok {
		return UnknownCategoryCode
	}
	code, ok := enc[value]
	if !ok {
		return UnknownCategoryCode
	}
	return code
}

// Impute returns the persisted default for a missing numeric feature.
func (a *ModelArtifacts) Impute(feature string) float64 {
	return a.ImputationDefaults[feature]
}

// BucketFor returns the bucket a feature contributes to.
func (a *ModelArtifacts) BucketFor(feature string) string {
	if b, ok := a.Buckets[feature]; ok {
		return b
	}
	return BucketPattern
}
