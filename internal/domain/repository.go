package domain

import (
	"context"
	"time"
)

// Repository defines the interface for claim persistence. All claim reads
// are org-scoped; documents and decisions are append-only.
type Repository interface {
	// Claim operations
	CreateClaim(ctx context.Context, claim *ClaimRecord) error
	GetClaim(ctx context.Context, orgID, claimID string) (*ClaimRecord, error)
	ListClaims(ctx context.Context, orgID string) ([]*ClaimRecord, error)
	UpdateClaimStatus(ctx context.Context, claimID, status string) error

	// CountClaimsByPolicy returns how many claims were filed against a
	// policy number since the given time (filing velocity).
	CountClaimsByPolicy(ctx context.Context, orgID, policyNumber string, since time.Time) (int64, error)

	// Analysis snapshot: exactly one live per claim, replaced wholesale.
	// ReplaceSnapshot fails with ErrConflict when expectedVersion no longer
	// matches the claim's analysis version.
	ReplaceSnapshot(ctx context.Context, claimID string, expectedVersion int64, snap *AnalysisSnapshot) error
	GetSnapshot(ctx context.Context, claimID string) (*AnalysisSnapshot, error)

	// Documents (append-only)
	AppendDocument(ctx context.Context, doc *Document) error
	UpdateDocumentInsights(ctx context.Context, docID, summary string, flags []string) error
	ListDocuments(ctx context.Context, claimID string) ([]*Document, error)

	// Decisions (append-only, immutable)
	AppendDecision(ctx context.Context, dec *Decision) error
	ListDecisions(ctx context.Context, claimID string) ([]*Decision, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
