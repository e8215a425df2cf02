package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const defaultAuditTable = "audit_logs"

// Repository stores the audit trail in Postgres.
type Repository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*Repository)

// WithTable overrides the audit table name.
func WithTable(table string) RepositoryOption {
	return func(r *Repository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB, opts ...RepositoryOption) *Repository {
	if db == nil {
		return nil
	}
	r := &Repository{db: db, table: defaultAuditTable}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Log writes an audit entry.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	entry = prepare(entry)
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, tenant_id, actor, role, action, resource_type, resource_id, parent_id,
	metadata, payload_digest, ip, user_agent, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)`, r.table)
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.TenantID, entry.Actor, entry.Role, entry.Action, entry.ResourceType, entry.ResourceID, entry.ParentID,
		[]byte(entry.Metadata), entry.PayloadDigest, entry.IP, entry.UserAgent, entry.CreatedAt)
	return err
}

// List returns the trail of one program, newest first.
func (r *Repository) List(ctx context.Context, q Query) ([]Entry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("audit repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, tenant_id, actor, role, action, resource_type, resource_id, parent_id,
	metadata, payload_digest, ip, user_agent, created_at
FROM %s
WHERE parent_id = $1 AND ($2 = '' OR tenant_id = $2)
ORDER BY created_at DESC
LIMIT $3`, r.table)
	rows, err := r.db.QueryContext(ctx, query, q.ParentID, q.TenantID, q.limit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Actor, &e.Role, &e.Action, &e.ResourceType, &e.ResourceID, &e.ParentID,
			&metadata, &e.PayloadDigest, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Metadata = metadata
		out = append(out, e)
	}
	return out, rows.Err()
}
