package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PostgresBackend stores sessions as JSONB rows in the filter_sessions table.
// The table is created by the store's migrations.
//
// Values round-trip through JSON, so integers come back as float64 and
// dates as RFC 3339 strings.
type PostgresBackend struct {
	db  *sql.DB
	now func() time.Time
}

var _ Backend = (*PostgresBackend)(nil)

// NewPostgresBackend returns a backend on db.
func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db, now: time.Now}
}

func (p *PostgresBackend) Load(ctx context.Context, id string) (Data, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM filter_sessions WHERE session_id = $1 AND expires_at > NOW()`, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	data := Data{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return data, nil
}

func (p *PostgresBackend) Save(ctx context.Context, id string, data Data, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO filter_sessions (session_id, data, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id) DO UPDATE SET
			data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, updated_at = NOW()`,
		id, raw, p.now().Add(ttl).UTC(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Delete(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM filter_sessions WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List returns the live sessions ordered by id.
func (p *PostgresBackend) List(ctx context.Context) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT session_id, data, expires_at FROM filter_sessions WHERE expires_at > NOW() ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r   Record
			raw []byte
		)
		if err := rows.Scan(&r.ID, &raw, &r.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal(raw, &r.Data); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PurgeExpired deletes expired sessions and returns how many were removed.
func (p *PostgresBackend) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM filter_sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
