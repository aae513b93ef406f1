// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avia-insurance/avia/internal/domain"
)

// ErrInvalidInput marks caller mistakes (missing org ID, empty claim ID).
var ErrInvalidInput = errors.New("invalid input")

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// CreateClaim stores a new claim with org isolation.
func (r *SQLRepository) CreateClaim(ctx context.Context, claim *domain.ClaimRecord) error {
	if claim.OrgID == "" {
		return fmt.Errorf("%w: orgID is required", ErrInvalidInput)
	}

	attrs, err := json.Marshal(claim.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	query := `
		INSERT INTO claims (
			id, org_id, policy_number, source, status,
			attributes, created_at, analyzed_at, analysis_version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		claim.ID, claim.OrgID, claim.PolicyNumber, claim.Source, claim.Status,
		string(attrs), claim.CreatedAt, claim.AnalyzedAt, claim.AnalysisVersion,
	)
	return err
}

// GetClaim retrieves a claim by ID with org isolation.
func (r *SQLRepository) GetClaim(ctx context.Context, orgID, claimID string) (*domain.ClaimRecord, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: orgID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, org_id, policy_number, source, status,
		       attributes, created_at, analyzed_at, analysis_version
		FROM claims
		WHERE org_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), orgID, claimID)
	claim, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return claim, err
}

// ListClaims retrieves all claims for an org, newest first.
func (r *SQLRepository) ListClaims(ctx context.Context, orgID string) ([]*domain.ClaimRecord, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: orgID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, org_id, policy_number, source, status,
		       attributes, created_at, analyzed_at, analysis_version
		FROM claims
		WHERE org_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*domain.ClaimRecord
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}

// UpdateClaimStatus persists the derived status for cheap list queries.
func (r *SQLRepository) UpdateClaimStatus(ctx context.Context, claimID, status string) error {
	query := `UPDATE claims SET status = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), status, claimID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountClaimsByPolicy returns the filing velocity for a policy number.
func (r *SQLRepository) CountClaimsByPolicy(ctx context.Context, orgID, policyNumber string, since time.Time) (int64, error) {
	if orgID == "" {
		return 0, fmt.Errorf("%w: orgID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*)
		FROM claims
		WHERE org_id = ? AND policy_number = ? AND created_at >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), orgID, policyNumber, since).Scan(&count)
	return count, err
}

// ReplaceSnapshot writes the claim's analysis snapshot and bumps the
// analysis version. The version bump and the snapshot upsert share one
// transaction; a stale expectedVersion loses with ErrConflict.
func (r *SQLRepository) ReplaceSnapshot(ctx context.Context, claimID string, expectedVersion int64, snap *domain.AnalysisSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	bump := `
		UPDATE claims
		SET analysis_version = analysis_version + 1, analyzed_at = ?
		WHERE id = ? AND analysis_version = ?
	`
	result, err := tx.ExecContext(ctx, r.rebind(bump), snap.AnalyzedAt, claimID, expectedVersion)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var exists int
		check := `SELECT COUNT(*) FROM claims WHERE id = ?`
		if err := tx.QueryRowContext(ctx, r.rebind(check), claimID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}

	upsert := `
		INSERT INTO analysis_snapshots (claim_id, id, snapshot, analyzed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(claim_id) DO UPDATE SET
			id = excluded.id,
			snapshot = excluded.snapshot,
			analyzed_at = excluded.analyzed_at
	`
	if _, err := tx.ExecContext(ctx, r.rebind(upsert),
		claimID, snap.ID, string(payload), snap.AnalyzedAt); err != nil {
		return err
	}

	return tx.Commit()
}

// GetSnapshot retrieves the live analysis snapshot for a claim.
func (r *SQLRepository) GetSnapshot(ctx context.Context, claimID string) (*domain.AnalysisSnapshot, error) {
	query := `SELECT snapshot FROM analysis_snapshots WHERE claim_id = ?`

	var payload string
	err := r.db.QueryRowContext(ctx, r.rebind(query), claimID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var snap domain.AnalysisSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, nil
}

// AppendDocument stores a document record. Documents are append-only.
func (r *SQLRepository) AppendDocument(ctx context.Context, doc *domain.Document) error {
	flags, _ := json.Marshal(doc.Flags)

	query := `
		INSERT INTO documents (id, claim_id, filename, content_ref, summary, flags, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		doc.ID, doc.ClaimID, doc.Filename, doc.ContentRef,
		doc.Summary, string(flags), doc.UploadedAt,
	)
	return err
}

// UpdateDocumentInsights fills in the reader output after async extraction.
func (r *SQLRepository) UpdateDocumentInsights(ctx context.Context, docID, summary string, flags []string) error {
	encoded, _ := json.Marshal(flags)

	query := `UPDATE documents SET summary = ?, flags = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), summary, string(encoded), docID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListDocuments retrieves a claim's documents in upload order.
func (r *SQLRepository) ListDocuments(ctx context.Context, claimID string) ([]*domain.Document, error) {
	query := `
		SELECT id, claim_id, filename, content_ref, summary, flags, uploaded_at
		FROM documents
		WHERE claim_id = ?
		ORDER BY uploaded_at ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var doc domain.Document
		var summary, flags sql.NullString

		if err := rows.Scan(
			&doc.ID, &doc.ClaimID, &doc.Filename, &doc.ContentRef,
			&summary, &flags, &doc.UploadedAt,
		); err != nil {
			return nil, err
		}

		doc.Summary = summary.String
		if flags.String != "" {
			json.Unmarshal([]byte(flags.String), &doc.Flags)
		}
		docs = append(docs, &doc)
	}

	return docs, rows.Err()
}

// AppendDecision stores an adjudication decision. Decisions are immutable.
func (r *SQLRepository) AppendDecision(ctx context.Context, dec *domain.Decision) error {
	query := `
		INSERT INTO decisions (id, claim_id, action, notes, decided_by, decided_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		dec.ID, dec.ClaimID, dec.Action, dec.Notes, dec.DecidedBy, dec.DecidedAt,
	)
	return err
}

// ListDecisions retrieves a claim's decision log, newest first.
func (r *SQLRepository) ListDecisions(ctx context.Context, claimID string) ([]*domain.Decision, error) {
	query := `
		SELECT id, claim_id, action, notes, decided_by, decided_at
		FROM decisions
		WHERE claim_id = ?
		ORDER BY decided_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*domain.Decision
	for rows.Next() {
		var dec domain.Decision
		var notes sql.NullString

		if err := rows.Scan(
			&dec.ID, &dec.ClaimID, &dec.Action, &notes, &dec.DecidedBy, &dec.DecidedAt,
		); err != nil {
			return nil, err
		}
		dec.Notes = notes.String
		decisions = append(decisions, &dec)
	}

	return decisions, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*domain.ClaimRecord, error) {
	var claim domain.ClaimRecord
	var attrs string
	var analyzedAt sql.NullTime

	if err := row.Scan(
		&claim.ID, &claim.OrgID, &claim.PolicyNumber, &claim.Source, &claim.Status,
		&attrs, &claim.CreatedAt, &analyzedAt, &claim.AnalysisVersion,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(attrs), &claim.Attributes); err != nil {
		return nil, fmt.Errorf("parse claim attributes: %w", err)
	}
	if analyzedAt.Valid {
		t := analyzedAt.Time
		claim.AnalyzedAt = &t
	}
	return &claim, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result strings.Builder
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			fmt.Fprintf(&result, "$%d", n)
			n++
		} else {
			result.WriteByte(query[i])
		}
	}
	return result.String()
}
