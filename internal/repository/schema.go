package repository

// Schema definitions for the Avia claim store.
// Compatible with both SQLite and PostgreSQL.

const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    policy_number TEXT NOT NULL,
    source TEXT NOT NULL,
    status TEXT NOT NULL,
    attributes TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    analyzed_at TIMESTAMP,
    analysis_version INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_claims_org ON claims(org_id);
CREATE INDEX IF NOT EXISTS idx_claims_policy ON claims(org_id, policy_number);
CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(org_id, status);
CREATE INDEX IF NOT EXISTS idx_claims_created ON claims(org_id, created_at);
`

// schemaSnapshots holds the single live analysis result per claim.
// Re-analysis replaces the row wholesale.
const schemaSnapshots = `
CREATE TABLE IF NOT EXISTS analysis_snapshots (
    claim_id TEXT PRIMARY KEY,
    id TEXT NOT NULL,
    snapshot TEXT NOT NULL,
    analyzed_at TIMESTAMP NOT NULL
);
`

const schemaDocuments = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    claim_id TEXT NOT NULL,
    filename TEXT NOT NULL,
    content_ref TEXT NOT NULL,
    summary TEXT,
    flags TEXT,
    uploaded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_claim ON documents(claim_id);
`

const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    claim_id TEXT NOT NULL,
    action TEXT NOT NULL,
    notes TEXT,
    decided_by TEXT NOT NULL,
    decided_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_claim ON decisions(claim_id);
CREATE INDEX IF NOT EXISTS idx_decisions_decided ON decisions(claim_id, decided_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaClaims,
		schemaSnapshots,
		schemaDocuments,
		schemaDecisions,
	}
}
