package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestHashDeterministic(t *testing.T) {
	assert.Equal(t, RequestHash([]byte("payload")), RequestHash([]byte("payload")))
	assert.NotEqual(t, RequestHash([]byte("payload")), RequestHash([]byte("other")))
}

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)
	store := NewMemoryIdempotencyStore(time.Hour)
	store.now = func() time.Time { return now }
	hash := RequestHash([]byte(`{"empId":"10001"}`))

	_, found, err := store.Reserve(ctx, "anonymous", "apply-leave", "k1", hash)
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = store.Reserve(ctx, "anonymous", "apply-leave", "k1", hash)
	assert.ErrorIs(t, err, ErrIdempotencyInProgress)

	require.NoError(t, store.Save(ctx, "anonymous", "apply-leave", "k1", hash, json.RawMessage(`{"ok":true}`)))
	stored, found, err := store.Reserve(ctx, "anonymous", "apply-leave", "k1", hash)
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"ok":true}`, string(stored))

	_, _, err = store.Reserve(ctx, "anonymous", "apply-leave", "k1", RequestHash([]byte("different")))
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
	assert.ErrorIs(t, store.Save(ctx, "anonymous", "apply-leave", "k1", "other", nil), ErrIdempotencyConflict)

	require.NoError(t, store.Release(ctx, "anonymous", "apply-leave", "k1"))
	_, found, err = store.Reserve(ctx, "anonymous", "apply-leave", "k1", hash)
	require.NoError(t, err)
	assert.True(t, found, "release must not drop a completed key")

	_, found, err = store.Reserve(ctx, "someone-else", "apply-leave", "k1", hash)
	require.NoError(t, err)
	assert.False(t, found)

	now = now.Add(2 * time.Hour)
	_, found, err = store.Reserve(ctx, "anonymous", "apply-leave", "k1", hash)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryIdempotencyReleaseFreesPendingKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(time.Hour)

	_, _, err := store.Reserve(ctx, "hr", "apply-leave", "k2", "h1")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "hr", "apply-leave", "k2"))

	_, found, err := store.Reserve(ctx, "hr", "apply-leave", "k2", "h1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryIdempotencyConcurrentReserve(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(time.Hour)

	const workers = 8
	var wg sync.WaitGroup
	var reserved, inFlight atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.Reserve(ctx, "hr", "apply-leave", "retry-1", "h1")
			switch {
			case err == nil:
				reserved.Add(1)
			case errors.Is(err, ErrIdempotencyInProgress):
				inFlight.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), reserved.Load())
	assert.Equal(t, int32(workers-1), inFlight.Load())
}

func TestPostgresIdempotencyStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	ctx := context.Background()
	store := NewPostgresIdempotencyStore(mock)
	columns := []string{"request_hash", "status", "response_json"}

	mock.ExpectExec("INSERT INTO idempotency_keys").
		WithArgs("hr", "k1", "apply-leave", "h1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO idempotency_keys").
		WithArgs("hr", "k1", "apply-leave", "h1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM idempotency_keys")).
		WithArgs("hr", "k1", "apply-leave").
		WillReturnRows(mock.NewRows(columns).AddRow("h1", "pending", json.RawMessage(`null`)))
	mock.ExpectExec("UPDATE idempotency_keys").
		WithArgs("hr", "k1", "apply-leave", "h1", json.RawMessage(`{"ok":true}`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO idempotency_keys").
		WithArgs("hr", "k1", "apply-leave", "h1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM idempotency_keys")).
		WithArgs("hr", "k1", "apply-leave").
		WillReturnRows(mock.NewRows(columns).AddRow("h1", "completed", json.RawMessage(`{"ok":true}`)))
	mock.ExpectExec("INSERT INTO idempotency_keys").
		WithArgs("hr", "k1", "apply-leave", "h2").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM idempotency_keys")).
		WithArgs("hr", "k1", "apply-leave").
		WillReturnRows(mock.NewRows(columns).AddRow("h1", "completed", json.RawMessage(`{"ok":true}`)))
	mock.ExpectExec("UPDATE idempotency_keys").
		WithArgs("hr", "k1", "apply-leave", "h2", json.RawMessage(`{}`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("DELETE FROM idempotency_keys").
		WithArgs("hr", "k9", "apply-leave").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	_, found, err := store.Reserve(ctx, "hr", "apply-leave", "k1", "h1")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = store.Reserve(ctx, "hr", "apply-leave", "k1", "h1")
	assert.ErrorIs(t, err, ErrIdempotencyInProgress)

	require.NoError(t, store.Save(ctx, "hr", "apply-leave", "k1", "h1", json.RawMessage(`{"ok":true}`)))

	stored, found, err := store.Reserve(ctx, "hr", "apply-leave", "k1", "h1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"ok":true}`, string(stored))

	_, _, err = store.Reserve(ctx, "hr", "apply-leave", "k1", "h2")
	assert.ErrorIs(t, err, ErrIdempotencyConflict)

	err = store.Save(ctx, "hr", "apply-leave", "k1", "h2", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrIdempotencyConflict)

	require.NoError(t, store.Release(ctx, "hr", "apply-leave", "k9"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
