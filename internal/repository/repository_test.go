package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/avia-insurance/avia/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "avia-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func strPtr(s string) *string   { return &s }
func numPtr(f float64) *float64 { return &f }

func testClaim(id, orgID string) *domain.ClaimRecord {
	return &domain.ClaimRecord{
		ID:           id,
		OrgID:        orgID,
		PolicyNumber: "POL-1234",
		Source:       domain.SourceDataset,
		Status:       domain.StatusPending,
		Attributes: domain.ClaimAttributes{
			IncidentType:     strPtr("Single Vehicle Collision"),
			IncidentSeverity: strPtr("Minor Damage"),
			TotalClaimAmount: numPtr(5400),
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	orgID := "org-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("CreateAndGetClaim", func(t *testing.T) {
		claim := testClaim("claim-001", orgID)
		if err := repo.CreateClaim(ctx, claim); err != nil {
			t.Fatalf("CreateClaim failed: %v", err)
		}

		got, err := repo.GetClaim(ctx, orgID, "claim-001")
		if err != nil {
			t.Fatalf("GetClaim failed: %v", err)
		}
		if got.PolicyNumber != "POL-1234" {
			t.Errorf("policy = %s", got.PolicyNumber)
		}
		if got.Attributes.TotalClaimAmount == nil || *got.Attributes.TotalClaimAmount != 5400 {
			t.Errorf("attributes not round-tripped: %+v", got.Attributes)
		}
		if got.AnalysisVersion != 0 {
			t.Errorf("new claim version = %d, want 0", got.AnalysisVersion)
		}
	})

	t.Run("OrgIsolation", func(t *testing.T) {
		_, err := repo.GetClaim(ctx, "org-other", "claim-001")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound across orgs, got %v", err)
		}
	})

	t.Run("GetMissingClaim", func(t *testing.T) {
		_, err := repo.GetClaim(ctx, orgID, "claim-missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListClaimsNewestFirst", func(t *testing.T) {
		older := testClaim("claim-older", orgID)
		older.CreatedAt = time.Now().UTC().Add(-time.Hour)
		if err := repo.CreateClaim(ctx, older); err != nil {
			t.Fatalf("CreateClaim failed: %v", err)
		}

		claims, err := repo.ListClaims(ctx, orgID)
		if err != nil {
			t.Fatalf("ListClaims failed: %v", err)
		}
		if len(claims) != 2 {
			t.Fatalf("expected 2 claims, got %d", len(claims))
		}
		if claims[0].ID != "claim-001" || claims[1].ID != "claim-older" {
			t.Errorf("wrong order: %s, %s", claims[0].ID, claims[1].ID)
		}
	})

	t.Run("UpdateClaimStatus", func(t *testing.T) {
		if err := repo.UpdateClaimStatus(ctx, "claim-001", domain.StatusAnalyzed); err != nil {
			t.Fatalf("UpdateClaimStatus failed: %v", err)
		}
		got, _ := repo.GetClaim(ctx, orgID, "claim-001")
		if got.Status != domain.StatusAnalyzed {
			t.Errorf("status = %s", got.Status)
		}

		err := repo.UpdateClaimStatus(ctx, "claim-missing", domain.StatusAnalyzed)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("CountClaimsByPolicy", func(t *testing.T) {
		count, err := repo.CountClaimsByPolicy(ctx, orgID, "POL-1234", time.Now().UTC().Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("CountClaimsByPolicy failed: %v", err)
		}
		if count != 2 {
			t.Errorf("count = %d, want 2", count)
		}

		count, err = repo.CountClaimsByPolicy(ctx, orgID, "POL-1234", time.Now().UTC().Add(-time.Minute))
		if err != nil {
			t.Fatalf("CountClaimsByPolicy failed: %v", err)
		}
		if count != 1 {
			t.Errorf("windowed count = %d, want 1", count)
		}
	})
}

func TestSnapshotVersioning(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	orgID := "org-001"

	claim := testClaim("claim-001", orgID)
	if err := repo.CreateClaim(ctx, claim); err != nil {
		t.Fatalf("CreateClaim failed: %v", err)
	}

	snap := &domain.AnalysisSnapshot{
		ID:           "snap-1",
		ClaimID:      "claim-001",
		OverallScore: 42,
		RiskLevel:    domain.RiskMedium,
		BucketScores: domain.BucketScores{Claim: 50, Customer: 40, Pattern: 30},
		Flags:        []string{"flag-a"},
		AnalyzedAt:   time.Now().UTC(),
	}

	t.Run("MissingSnapshot", func(t *testing.T) {
		_, err := repo.GetSnapshot(ctx, "claim-001")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("FirstReplace", func(t *testing.T) {
		if err := repo.ReplaceSnapshot(ctx, "claim-001", 0, snap); err != nil {
			t.Fatalf("ReplaceSnapshot failed: %v", err)
		}

		got, err := repo.GetSnapshot(ctx, "claim-001")
		if err != nil {
			t.Fatalf("GetSnapshot failed: %v", err)
		}
		if got.OverallScore != 42 || got.RiskLevel != domain.RiskMedium {
			t.Errorf("snapshot not round-tripped: %+v", got)
		}

		updated, _ := repo.GetClaim(ctx, orgID, "claim-001")
		if updated.AnalysisVersion != 1 {
			t.Errorf("version = %d, want 1", updated.AnalysisVersion)
		}
		if updated.AnalyzedAt == nil {
			t.Error("analyzed_at not set")
		}
	})

	t.Run("StaleVersionConflicts", func(t *testing.T) {
		err := repo.ReplaceSnapshot(ctx, "claim-001", 0, snap)
		if !errors.Is(err, domain.ErrConflict) {
			t.Errorf("expected ErrConflict for stale version, got %v", err)
		}
	})

	t.Run("ReplaceWholesale", func(t *testing.T) {
		second := &domain.AnalysisSnapshot{
			ID:           "snap-2",
			ClaimID:      "claim-001",
			OverallScore: 80,
			RiskLevel:    domain.RiskHigh,
			AnalyzedAt:   time.Now().UTC(),
		}
		if err := repo.ReplaceSnapshot(ctx, "claim-001", 1, second); err != nil {
			t.Fatalf("ReplaceSnapshot failed: %v", err)
		}

		got, _ := repo.GetSnapshot(ctx, "claim-001")
		if got.ID != "snap-2" || got.OverallScore != 80 {
			t.Errorf("snapshot not replaced: %+v", got)
		}
		if len(got.Flags) != 0 {
			t.Errorf("old flags survived the replace: %v", got.Flags)
		}
	})

	t.Run("MissingClaim", func(t *testing.T) {
		err := repo.ReplaceSnapshot(ctx, "claim-missing", 0, snap)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDocumentsAndDecisions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	claim := testClaim("claim-001", "org-001")
	if err := repo.CreateClaim(ctx, claim); err != nil {
		t.Fatalf("CreateClaim failed: %v", err)
	}

	t.Run("AppendAndListDocuments", func(t *testing.T) {
		first := &domain.Document{
			ID:         "doc-1",
			ClaimID:    "claim-001",
			Filename:   "police_report.pdf",
			ContentRef: "store/doc-1",
			UploadedAt: time.Now().UTC().Add(-time.Minute),
		}
		second := &domain.Document{
			ID:         "doc-2",
			ClaimID:    "claim-001",
			Filename:   "estimate.pdf",
			ContentRef: "store/doc-2",
			UploadedAt: time.Now().UTC(),
		}
		if err := repo.AppendDocument(ctx, first); err != nil {
			t.Fatalf("AppendDocument failed: %v", err)
		}
		if err := repo.AppendDocument(ctx, second); err != nil {
			t.Fatalf("AppendDocument failed: %v", err)
		}

		docs, err := repo.ListDocuments(ctx, "claim-001")
		if err != nil {
			t.Fatalf("ListDocuments failed: %v", err)
		}
		if len(docs) != 2 {
			t.Fatalf("expected 2 documents, got %d", len(docs))
		}
		if docs[0].ID != "doc-1" {
			t.Errorf("documents not in upload order: %s first", docs[0].ID)
		}
	})

	t.Run("UpdateDocumentInsights", func(t *testing.T) {
		err := repo.UpdateDocumentInsights(ctx, "doc-1", "Police report filed promptly.", []string{"Late Filing"})
		if err != nil {
			t.Fatalf("UpdateDocumentInsights failed: %v", err)
		}

		docs, _ := repo.ListDocuments(ctx, "claim-001")
		if docs[0].Summary == "" || len(docs[0].Flags) != 1 {
			t.Errorf("insights not persisted: %+v", docs[0])
		}

		err = repo.UpdateDocumentInsights(ctx, "doc-missing", "x", nil)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("AppendAndListDecisions", func(t *testing.T) {
		older := &domain.Decision{
			ID:        "dec-1",
			ClaimID:   "claim-001",
			Action:    domain.ActionDefer,
			DecidedBy: "adjuster-7",
			DecidedAt: time.Now().UTC().Add(-time.Minute),
		}
		newer := &domain.Decision{
			ID:        "dec-2",
			ClaimID:   "claim-001",
			Action:    domain.ActionEscalate,
			Notes:     "send to SIU",
			DecidedBy: "adjuster-7",
			DecidedAt: time.Now().UTC(),
		}
		if err := repo.AppendDecision(ctx, older); err != nil {
			t.Fatalf("AppendDecision failed: %v", err)
		}
		if err := repo.AppendDecision(ctx, newer); err != nil {
			t.Fatalf("AppendDecision failed: %v", err)
		}

		decisions, err := repo.ListDecisions(ctx, "claim-001")
		if err != nil {
			t.Fatalf("ListDecisions failed: %v", err)
		}
		if len(decisions) != 2 {
			t.Fatalf("expected 2 decisions, got %d", len(decisions))
		}
		if decisions[0].ID != "dec-2" {
			t.Errorf("decisions not newest first: %s first", decisions[0].ID)
		}
	})
}
