// Package scoring turns claim attributes into the three-bucket risk score.
package scoring

import (
	"fmt"
	"strings"

	"github.com/avia-insurance/avia/internal/artifacts"
)

// Normalizer maps raw claim attributes into the fixed-order scaled feature
// vector expected by the trained models.
type Normalizer struct {
	arts *artifacts.ModelArtifacts
}

// NewNormalizer creates a normalizer over a loaded artifact bundle.
func NewNormalizer(arts *artifacts.ModelArtifacts) *Normalizer {
	return &Normalizer{arts: arts}
}

// placeholders are values treated as absent during normalization.
var placeholders = map[string]struct{}{
	"": {}, "unknown": {}, "n/a": {}, "none": {}, "?": {},
	"—": {}, "-": {}, "not available": {}, "not mentioned": {},
}

func isPlaceholder(s string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Vector converts the attribute map into scaled feature values in training
// order. Missing categoricals encode to the reserved unknown code; missing
// numerics impute to the persisted default. Absence never blocks scoring.
func (n *Normalizer) Vector(attrs map[string]any) ([]float64, error) {
	names := n.arts.FeatureNames
	vec := make([]float64, len(names))

	for i, fname := range names {
		raw, present := attrs[fname]
		var val float64
		switch {
		case n.arts.Categorical(fname):
			s, ok := raw.(string)
			if !present || !ok || isPlaceholder(s) {
				val = float64(artifacts.UnknownCategoryCode)
			} else {
				val = float64(n.arts.Encode(fname, s))
			}
		case !present:
			val = n.arts.Impute(fname)
		default:
			f, err := toFloat(raw)
			if err != nil {
				val = n.arts.Impute(fname)
			} else {
				val = f
			}
		}

		scale := n.arts.ScalerScale[i]
		if scale == 0 {
			scale = 1
		}
		vec[i] = (val - n.arts.ScalerMean[i]) / scale
	}

	return vec, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		var f float64
		if isPlaceholder(x) {
			return 0, fmt.Errorf("placeholder value %q", x)
		}
		if _, err := fmt.Sscanf(strings.ReplaceAll(strings.TrimPrefix(x, "$"), ",", ""), "%g", &f); err != nil {
			return 0, fmt.Errorf("not numeric: %q", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
