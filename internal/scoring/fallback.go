package scoring

import (
	"context"

	"github.com/avia-insurance/avia/internal/domain"
	"github.com/avia-insurance/avia/internal/rules"
)

// fallbackBase is the starting score for every bucket before rule deltas.
// A claim that trips no rules lands solidly in the Low band.
const fallbackBase = 10.0

// FallbackScorer produces heuristic bucket scores from the rule engine when
// model artifacts are unavailable. Scores are additive rule deltas over a
// small base, so results stay deterministic and explainable.
type FallbackScorer struct {
	engine *rules.Engine
	cfg    domain.ScoringConfig
}

// NewFallbackScorer creates a heuristic scorer over a loaded rule engine.
func NewFallbackScorer(engine *rules.Engine, cfg domain.ScoringConfig) *FallbackScorer {
	return &FallbackScorer{engine: engine, cfg: cfg}
}

// Score evaluates the rules and folds the hits into bucket scores. Rule
// evaluation errors are skipped inside the engine; this never fails short
// of a context cancellation.
func (f *FallbackScorer) Score(ctx context.Context, input *rules.EvaluateInput) (*Result, []domain.RuleHit, error) {
	hits, err := f.engine.EvaluateAll(ctx, input)
	if err != nil {
		return nil, nil, err
	}

	buckets := domain.BucketScores{
		Claim:    fallbackBase,
		Customer: fallbackBase,
		Pattern:  fallbackBase,
	}
	for _, h := range hits {
		switch h.Bucket {
		case "claim":
			buckets.Claim += h.Delta
		case "customer":
			buckets.Customer += h.Delta
		default:
			buckets.Pattern += h.Delta
		}
	}
	buckets.Claim = clamp(buckets.Claim, 0, 100)
	buckets.Customer = clamp(buckets.Customer, 0, 100)
	buckets.Pattern = clamp(buckets.Pattern, 0, 100)

	overall := WeightedOverall(f.cfg, buckets)

	return &Result{
		Buckets:   buckets,
		Overall:   overall,
		RiskLevel: f.cfg.RiskLevelFor(overall),
		Fallback:  true,
	}, hits, nil
}
