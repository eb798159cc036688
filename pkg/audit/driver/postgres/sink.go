// Package postgres persists digests to PostgreSQL. The dedup identifier is
// the primary key, so redelivery of the same digest is absorbed by the
// database rather than filtered in application code.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"chronicle/pkg/audit"
	"chronicle/pkg/audit/driver"
	txcontext "chronicle/pkg/platform/tx"
)

// Schema creates the digest table. Tests and deployments without a migration
// tool can execute it directly.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_digests (
	digest_id   UUID PRIMARY KEY,
	event_type  TEXT        NOT NULL,
	resource_id TEXT        NOT NULL,
	actor_id    TEXT        NOT NULL,
	start_date  TIMESTAMPTZ NOT NULL,
	end_date    TIMESTAMPTZ NOT NULL,
	count       INTEGER     NOT NULL,
	truncated   BOOLEAN     NOT NULL DEFAULT FALSE,
	payload     JSONB       NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS audit_digests_resource_idx ON audit_digests (resource_id, start_date);
`

type Sink struct {
	db *sql.DB
}

func NewSink(db *sql.DB) *Sink {
	return &Sink{db: db}
}

func (s *Sink) Name() string { return "postgres" }

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Sink) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Deliver inserts the digest. Duplicate deliveries hit the primary key and
// are ignored via ON CONFLICT DO NOTHING.
func (s *Sink) Deliver(ctx context.Context, d audit.Digest) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return driver.Permanent(s.Name(), fmt.Errorf("marshal digest: %w", err))
	}

	query := `
		INSERT INTO audit_digests (
			digest_id, event_type, resource_id, actor_id,
			start_date, end_date, count, truncated, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (digest_id) DO NOTHING
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		d.DedupID(),
		string(d.Type),
		d.Resource.ID,
		d.Actor.Key(),
		d.StartDate,
		d.Timestamp,
		d.Count,
		d.Truncated,
		payload,
		time.Now(),
	)
	if err != nil {
		return driver.Retryable(s.Name(), fmt.Errorf("insert digest: %w", err))
	}
	return nil
}

// CountByResource reports stored digests for a resource. Used by tests and
// operational checks; the query layer proper is out of scope here.
func (s *Sink) CountByResource(ctx context.Context, resourceID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_digests WHERE resource_id = $1`, resourceID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count digests: %w", err)
	}
	return n, nil
}
