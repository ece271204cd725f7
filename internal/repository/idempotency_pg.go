package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/chainsync/gateway/internal/middleware"
)

const idempotencySchema = `
CREATE TABLE IF NOT EXISTS idempotency_keys (
	key TEXT PRIMARY KEY,
	status_code INTEGER NOT NULL DEFAULT 0,
	content_type TEXT NOT NULL DEFAULT '',
	response_body BYTEA,
	processing BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
)`

// PostgresIdempotencyStore keeps idempotency keys in the idempotency_keys
// table. An expired row is reclaimed by the next GetOrLock for its key.
type PostgresIdempotencyStore struct {
	db      *sqlx.DB
	ttl     time.Duration
	lockTTL time.Duration
	now     func() time.Time
}

func NewPostgresIdempotencyStore(db *sqlx.DB, ttl, lockTTL time.Duration) *PostgresIdempotencyStore {
	if ttl <= 0 {
		ttl = middleware.DefaultIdempotencyTTL
	}
	if lockTTL <= 0 {
		lockTTL = middleware.DefaultIdempotencyLockTTL
	}
	return &PostgresIdempotencyStore{
		db:      db,
		ttl:     ttl,
		lockTTL: lockTTL,
		now:     time.Now,
	}
}

// EnsureSchema creates the idempotency_keys table when missing.
func (s *PostgresIdempotencyStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, idempotencySchema)
	return err
}

type idempotencyRow struct {
	Status      int       `db:"status_code"`
	ContentType string    `db:"content_type"`
	Body        []byte    `db:"response_body"`
	CreatedAt   time.Time `db:"created_at"`
	Processing  bool      `db:"processing"`
}

func (r idempotencyRow) toRecord() *middleware.IdempotencyRecord {
	return &middleware.IdempotencyRecord{
		Status:      r.Status,
		ContentType: r.ContentType,
		Body:        r.Body,
		CreatedAt:   r.CreatedAt.UTC(),
		Processing:  r.Processing,
	}
}

func (s *PostgresIdempotencyStore) GetOrLock(ctx context.Context, key string) (*middleware.IdempotencyRecord, bool, error) {
	now := s.now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, processing, created_at, expires_at)
		VALUES ($1, true, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET status_code = 0, content_type = '', response_body = NULL, processing = true,
			created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.expires_at <= EXCLUDED.created_at
	`, key, now, now.Add(s.lockTTL))
	if err != nil {
		return nil, false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if rows > 0 {
		return nil, false, nil
	}

	var row idempotencyRow
	err = s.db.GetContext(ctx, &row, `
		SELECT status_code, content_type, response_body, created_at, processing
		FROM idempotency_keys
		WHERE key = $1
	`, key)
	if errors.Is(err, sql.ErrNoRows) {
		// deleted between INSERT and SELECT
		return s.GetOrLock(ctx, key)
	}
	if err != nil {
		return nil, false, err
	}
	return row.toRecord(), true, nil
}

func (s *PostgresIdempotencyStore) Save(ctx context.Context, key string, rec middleware.IdempotencyRecord) error {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, status_code, content_type, response_body, processing, created_at, expires_at)
		VALUES ($1, $2, $3, $4, false, $5, $6)
		ON CONFLICT (key) DO UPDATE
		SET status_code = EXCLUDED.status_code, content_type = EXCLUDED.content_type,
			response_body = EXCLUDED.response_body, processing = false,
			created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at
	`, key, rec.Status, rec.ContentType, rec.Body, now, now.Add(s.ttl))
	return err
}

func (s *PostgresIdempotencyStore) Unlock(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key)
	return err
}

// Prune deletes every expired row.
func (s *PostgresIdempotencyStore) Prune(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= $1`, s.now().UTC())
	return err
}
