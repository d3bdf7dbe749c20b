package audit

// SchemaVersion is the current audit schema version.
const SchemaVersion = 1

// Schema creates the audit tables.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
    id TEXT PRIMARY KEY,
    timestamp_ms INTEGER NOT NULL,
    correlation_id TEXT NOT NULL,
    model TEXT NOT NULL,
    kind TEXT NOT NULL,
    issues TEXT NOT NULL,
    corrected BOOLEAN NOT NULL,
    before_text TEXT,
    after_text TEXT,
    prompt TEXT
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_entries(timestamp_ms);
CREATE INDEX IF NOT EXISTS idx_audit_model ON audit_entries(model);
`

const insertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

const getSchemaVersion = `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;`

const insertEntry = `
INSERT INTO audit_entries (id, timestamp_ms, correlation_id, model, kind, issues, corrected, before_text, after_text, prompt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`

const selectRecent = `
SELECT id, timestamp_ms, correlation_id, model, kind, issues, corrected, before_text, after_text, prompt
FROM audit_entries ORDER BY timestamp_ms DESC LIMIT ?;
`

const deleteBefore = `DELETE FROM audit_entries WHERE timestamp_ms < ?;`
