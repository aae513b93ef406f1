package velocity

import (
	"context"
	"testing"
	"time"

	"github.com/avia-insurance/avia/internal/cache"
	"github.com/avia-insurance/avia/internal/domain"
)

// stubRepo overrides only the counting method; everything else panics via
// the embedded nil interface if touched.
type stubRepo struct {
	domain.Repository
	count int64
	calls int
	since time.Time
}

func (s *stubRepo) CountClaimsByPolicy(ctx context.Context, orgID, policyNumber string, since time.Time) (int64, error) {
	s.calls++
	s.since = since
	return s.count, nil
}

func TestCountClaims(t *testing.T) {
	repo := &stubRepo{count: 3}
	svc := NewService(repo, nil)

	count, err := svc.CountClaims(context.Background(), "org-001", "POL-1234", 90)
	if err != nil {
		t.Fatalf("CountClaims failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	wantSince := time.Now().UTC().Add(-90 * 24 * time.Hour)
	if diff := repo.since.Sub(wantSince); diff < -time.Minute || diff > time.Minute {
		t.Errorf("window start %v too far from expected %v", repo.since, wantSince)
	}
}

func TestCountClaimsValidation(t *testing.T) {
	svc := NewService(&stubRepo{}, nil)

	if _, err := svc.CountClaims(context.Background(), "", "POL-1234", 90); err == nil {
		t.Error("expected error for empty orgID")
	}
	if _, err := svc.CountClaims(context.Background(), "org-001", "", 90); err == nil {
		t.Error("expected error for empty policy number")
	}
}

func TestCountClaimsCached(t *testing.T) {
	repo := &stubRepo{count: 2}
	svc := NewService(repo, cache.NewLRUCache(10))
	ctx := context.Background()

	first, err := svc.CountClaims(ctx, "org-001", "POL-1234", 90)
	if err != nil {
		t.Fatalf("CountClaims failed: %v", err)
	}
	second, err := svc.CountClaims(ctx, "org-001", "POL-1234", 90)
	if err != nil {
		t.Fatalf("CountClaims failed: %v", err)
	}

	if first != 2 || second != 2 {
		t.Errorf("counts = %d, %d, want 2", first, second)
	}
	if repo.calls != 1 {
		t.Errorf("repo queried %d times, want 1 (second read cached)", repo.calls)
	}
}

func TestGetterMatchesEngineSignature(t *testing.T) {
	svc := NewService(&stubRepo{count: 1}, nil)
	getter := svc.Getter()

	count, err := getter(context.Background(), "org-001", "POL-1234", 30)
	if err != nil {
		t.Fatalf("getter failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
