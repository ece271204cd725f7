package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsync/gateway/internal/config"
	"github.com/chainsync/gateway/internal/middleware"
)

var pgNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func newMockPGStore(t *testing.T) (*PostgresIdempotencyStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mockDB.Close()
	})

	store := NewPostgresIdempotencyStore(sqlx.NewDb(mockDB, "pgx"), time.Hour, time.Minute)
	store.now = func() time.Time { return pgNow }
	return store, mock
}

var idemColumns = []string{"status_code", "content_type", "response_body", "created_at", "processing"}

func TestPostgresIdempotencyStore_LocksNewKey(t *testing.T) {
	store, mock := newMockPGStore(t)

	mock.ExpectExec("INSERT INTO idempotency_keys").
		WithArgs("POST:/api/inventory/update:k1", pgNow, pgNow.Add(time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, hit, err := store.GetOrLock(context.Background(), "POST:/api/inventory/update:k1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, rec)
}

func TestPostgresIdempotencyStore_ReturnsStoredRecord(t *testing.T) {
	store, mock := newMockPGStore(t)
	created := pgNow.Add(-time.Minute)

	mock.ExpectExec("INSERT INTO idempotency_keys").
		WithArgs("k", pgNow, pgNow.Add(time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status_code, content_type, response_body, created_at, processing").
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows(idemColumns).
			AddRow(200, "application/json; charset=utf-8", []byte(`{"success":true}`), created, false))

	rec, hit, err := store.GetOrLock(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, &middleware.IdempotencyRecord{
		Status:      200,
		ContentType: "application/json; charset=utf-8",
		Body:        []byte(`{"success":true}`),
		CreatedAt:   created,
		Processing:  false,
	}, rec)
}

func TestPostgresIdempotencyStore_InFlightRecord(t *testing.T) {
	store, mock := newMockPGStore(t)

	mock.ExpectExec("INSERT INTO idempotency_keys").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status_code").
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows(idemColumns).AddRow(0, "", nil, pgNow, true))

	rec, hit, err := store.GetOrLock(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, hit)
	assert.True(t, rec.Processing)
	assert.Nil(t, rec.Body)
}

func TestPostgresIdempotencyStore_RetriesWhenRowVanishes(t *testing.T) {
	store, mock := newMockPGStore(t)

	mock.ExpectExec("INSERT INTO idempotency_keys").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status_code").WithArgs("k").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO idempotency_keys").WillReturnResult(sqlmock.NewResult(0, 1))

	_, hit, err := store.GetOrLock(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestPostgresIdempotencyStore_SaveUsesResultTTL(t *testing.T) {
	store, mock := newMockPGStore(t)

	mock.ExpectExec("INSERT INTO idempotency_keys").
		WithArgs("k", 200, "application/json", []byte(`{}`), pgNow, pgNow.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Save(context.Background(), "k", middleware.IdempotencyRecord{
		Status:      200,
		ContentType: "application/json",
		Body:        []byte(`{}`),
	})
	assert.NoError(t, err)
}

func TestPostgresIdempotencyStore_UnlockPruneSchema(t *testing.T) {
	store, mock := newMockPGStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS idempotency_keys").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM idempotency_keys WHERE key").WithArgs("k").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM idempotency_keys WHERE expires_at").WithArgs(pgNow).WillReturnResult(sqlmock.NewResult(0, 3))

	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.Unlock(ctx, "k"))
	require.NoError(t, store.Prune(ctx))
}

func TestPostgresIdempotencyStore_PropagatesErrors(t *testing.T) {
	store, mock := newMockPGStore(t)

	mock.ExpectExec("INSERT INTO idempotency_keys").WillReturnError(sql.ErrConnDone)

	_, _, err := store.GetOrLock(context.Background(), "k")
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestNewDBRequiresDSN(t *testing.T) {
	_, err := NewDB(context.Background(), config.DatabaseConfig{})
	assert.Error(t, err)
}
