package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultAuditTable = "audit_logs"

const entryColumns = "id, org_id, actor, role, action, resource_type, resource_id, meter_id, metadata, payload_digest, ip, user_agent, created_at"

// Repository persists audit entries to Postgres.
type Repository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*Repository)

// WithAuditTable overrides the audit table name.
func WithAuditTable(table string) RepositoryOption {
	return func(repo *Repository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB, opts ...RepositoryOption) *Repository {
	if db == nil {
		return nil
	}
	repo := &Repository{db: db, table: defaultAuditTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Log writes one entry. Missing id, timestamp and payload digest are
// filled in here so callers only describe what happened.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	entry = withDefaults(entry)

	query := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12, $13)`, r.table, entryColumns)

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.OrgID, entry.Actor, entry.Role, entry.Action,
		entry.ResourceType, entry.ResourceID, entry.MeterID,
		entry.Metadata, entry.PayloadDigest, entry.IP, entry.UserAgent, entry.CreatedAt)
	return err
}

func withDefaults(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}
	return entry
}
