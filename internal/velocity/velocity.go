// Package velocity provides claim filing velocity calculation.
package velocity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avia-insurance/avia/internal/domain"
)

// cacheTTL bounds how stale a cached velocity count may be. Filing
// velocity changes slowly, so a short TTL is enough to absorb repeated
// rule evaluations during one analysis burst.
const cacheTTL = 30 * time.Second

// Service calculates filing velocity for policies: how many claims were
// filed against a policy number within a trailing window.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new velocity service. The cache is optional.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// CountClaims returns the number of claims filed against a policy within
// the trailing window. This matches the VelocityGetter signature expected
// by the rule engine.
func (s *Service) CountClaims(ctx context.Context, orgID, policyNumber string, windowDays int) (int64, error) {
	if orgID == "" || policyNumber == "" {
		return 0, fmt.Errorf("orgID and policyNumber are required")
	}
	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	cacheKey := fmt.Sprintf("velocity:%s:%d", policyNumber, windowDays)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, orgID, cacheKey); err == nil && data != nil {
			var count int64
			if err := json.Unmarshal(data, &count); err == nil {
				return count, nil
			}
		}
	}

	since := time.Now().UTC().Add(-time.Duration(windowDays) * 24 * time.Hour)
	count, err := s.repo.CountClaimsByPolicy(ctx, orgID, policyNumber, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count claims: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(count); err == nil {
			_ = s.cache.Set(ctx, orgID, cacheKey, data, cacheTTL)
		}
	}

	return count, nil
}

// Getter returns a VelocityGetter function for the rule engine.
func (s *Service) Getter() func(ctx context.Context, orgID, policyNumber string, windowDays int) (int64, error) {
	return s.CountClaims
}
