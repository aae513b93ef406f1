package artifacts

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/avia-insurance/avia/internal/domain"
)

func testBundle() *ModelArtifacts {
	return &ModelArtifacts{
		FeatureNames: []string{"total_claim_amount", "incident_severity"},
		CatCols:      []string{"incident_severity"},
		LabelEncoders: map[string]map[string]int{
			"incident_severity": {"Minor Damage": 1, "Major Damage": 2},
		},
		ScalerMean:  []float64{10000, 1.5},
		ScalerScale: []float64{5000, 1},
		Classifier:  ClassifierArtifact{Weights: []float64{0.8, 0.6}, Intercept: -0.2},
		Anomaly:     AnomalyArtifact{Min: 0, Max: 3},
		Buckets:     map[string]string{"total_claim_amount": BucketClaim},
	}
}

// A bundle built in code, not through Load, must classify features the
// same way a loaded one does.
func TestCategoricalOnHandBuiltBundle(t *testing.T) {
	a := testBundle()

	if !a.Categorical("incident_severity") {
		t.Error("incident_severity should be categorical")
	}
	if a.Categorical("total_claim_amount") {
		t.Error("total_claim_amount should be numeric")
	}
	if a.Categorical("no_such_feature") {
		t.Error("unknown feature should not be categorical")
	}
}

func TestEncodeUnseenValue(t *testing.T) {
	a := testBundle()

	if got := a.Encode("incident_severity", "Major Damage"); got != 2 {
		t.Errorf("Encode(Major Damage) = %d, want 2", got)
	}
	if got := a.Encode("incident_severity", "Totaled"); got != UnknownCategoryCode {
		t.Errorf("Encode(unseen) = %d, want %d", got, UnknownCategoryCode)
	}
	if got := a.Encode("no_such_feature", "x"); got != UnknownCategoryCode {
		t.Errorf("Encode(unknown feature) = %d, want %d", got, UnknownCategoryCode)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	data, err := json.Marshal(testBundle())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	a, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !a.Categorical("incident_severity") {
		t.Error("loaded bundle lost categorical column")
	}
	if a.BucketFor("witnesses") != BucketPattern {
		t.Error("unassigned feature should fall into the pattern bucket")
	}
}

func TestLoadMissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, domain.ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable, got %v", err)
	}
}
