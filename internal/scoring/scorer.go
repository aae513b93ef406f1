package scoring

import (
	"math"
	"sort"

	"github.com/avia-insurance/avia/internal/artifacts"
	"github.com/avia-insurance/avia/internal/domain"
)

// attributionFloor is the minimum positive contribution a feature must make
// to appear in the top-features list.
const attributionFloor = 0.02

// Result is the numeric output of a scoring run.
type Result struct {
	Buckets          domain.BucketScores
	Overall          int
	RiskLevel        string
	TopFeatures      []string
	FraudProbability float64
	AnomalyScore     float64 // normalized 0-100
	Fallback         bool
}

// Scorer runs the trained classifier and anomaly model over a claim and
// allocates per-feature attribution into the three weighted buckets.
// Artifacts are immutable, so a Scorer is safe for concurrent use.
type Scorer struct {
	arts *artifacts.ModelArtifacts
	norm *Normalizer
	cfg  domain.ScoringConfig
}

// NewScorer creates a scorer over a loaded artifact bundle.
func NewScorer(arts *artifacts.ModelArtifacts, cfg domain.ScoringConfig) *Scorer {
	return &Scorer{arts: arts, norm: NewNormalizer(arts), cfg: cfg}
}

// Score produces the bucket and overall scores for a claim's attributes.
// The same attributes and artifacts always produce the same result.
func (s *Scorer) Score(attrs map[string]any) (*Result, error) {
	vec, err := s.norm.Vector(attrs)
	if err != nil {
		return nil, err
	}

	prob := s.fraudProbability(vec)
	anomaly := s.anomalyScore(vec)

	buckets, topFeatures := s.bucketScores(vec)

	overall := WeightedOverall(s.cfg, buckets)

	return &Result{
		Buckets:          buckets,
		Overall:          overall,
		RiskLevel:        s.cfg.RiskLevelFor(overall),
		TopFeatures:      topFeatures,
		FraudProbability: prob,
		AnomalyScore:     anomaly,
	}, nil
}

// fraudProbability evaluates the logistic classifier over the scaled vector.
func (s *Scorer) fraudProbability(vec []float64) float64 {
	z := s.arts.Classifier.Intercept
	for i, w := range s.arts.Classifier.Weights {
		z += w * vec[i]
	}
	return 1.0 / (1.0 + math.Exp(-z))
}

// anomalyScore computes the raw outlier score (mean absolute deviation in
// scaled space) and normalizes it into [0,100] using the persisted
// training-time range.
func (s *Scorer) anomalyScore(vec []float64) float64 {
	var sum float64
	for _, v := range vec {
		sum += math.Abs(v)
	}
	raw := sum / float64(len(vec))

	a := s.arts.Anomaly
	norm := (raw - a.Min) / (a.Max - a.Min) * 100
	return clamp(norm, 0, 100)
}

// bucketScores sums additive per-feature attribution (weight x value) into
// the three buckets. Each bucket's positive attribution is rescaled against
// its total absolute attribution and clamped to [0,100].
func (s *Scorer) bucketScores(vec []float64) (domain.BucketScores, []string) {
	type contribution struct {
		label string
		value float64
	}

	var positive, total [3]float64
	var contribs []contribution

	idx := func(bucket string) int {
		switch bucket {
		case artifacts.BucketClaim:
			return 0
		case artifacts.BucketCustomer:
			return 1
		default:
			return 2
		}
	}

	for i, fname := range s.arts.FeatureNames {
		c := s.arts.Classifier.Weights[i] * vec[i]
		j := idx(s.arts.BucketFor(fname))
		if c > 0 {
			positive[j] += c
		}
		total[j] += math.Abs(c)

		if c > attributionFloor {
			contribs = append(contribs, contribution{label: Translate(fname), value: c})
		}
	}

	norm := func(j int) float64 {
		return clamp(positive[j]/math.Max(total[j], 0.01)*100, 0, 100)
	}

	sort.SliceStable(contribs, func(a, b int) bool {
		return contribs[a].value > contribs[b].value
	})
	top := make([]string, 0, 6)
	for _, c := range contribs {
		if len(top) == 6 {
			break
		}
		top = append(top, c.label)
	}

	return domain.BucketScores{
		Claim:    round1(norm(0)),
		Customer: round1(norm(1)),
		Pattern:  round1(norm(2)),
	}, top
}

// WeightedOverall combines bucket scores into the rounded, clamped overall
// score under the configured weights.
func WeightedOverall(cfg domain.ScoringConfig, b domain.BucketScores) int {
	overall := cfg.ClaimWeight*b.Claim + cfg.CustomerWeight*b.Customer + cfg.PatternWeight*b.Pattern
	return int(clamp(math.Round(overall), 0, 100))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
