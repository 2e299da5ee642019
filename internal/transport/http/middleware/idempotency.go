package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"hrcopilot/internal/platform/querier"
)

const IdempotencyHeader = "Idempotency-Key"

var (
	ErrIdempotencyConflict   = errors.New("idempotency key conflicts with existing request")
	ErrIdempotencyInProgress = errors.New("idempotency key is held by a request still in flight")
)

const (
	idempotencyPending   = "pending"
	idempotencyCompleted = "completed"
)

// IdempotencyStore remembers the response of a mutating request by (actor, endpoint, key) so
// a client retry replays it instead of applying twice. Reserve claims the key before the
// mutation runs; the holder either completes it with Save or gives it back with Release.
type IdempotencyStore interface {
	Reserve(ctx context.Context, actor, endpoint, key, requestHash string) (json.RawMessage, bool, error)
	Save(ctx context.Context, actor, endpoint, key, requestHash string, response json.RawMessage) error
	Release(ctx context.Context, actor, endpoint, key string) error
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type PostgresIdempotencyStore struct {
	db querier.Querier
}

func NewPostgresIdempotencyStore(db querier.Querier) *PostgresIdempotencyStore {
	return &PostgresIdempotencyStore{db: db}
}

// Reserve inserts a pending row for the key. When the row already exists it returns the stored
// response of a completed request, ErrIdempotencyInProgress for a pending one, or
// ErrIdempotencyConflict when the payload differs.
func (s *PostgresIdempotencyStore) Reserve(ctx context.Context, actor, endpoint, key, requestHash string) (json.RawMessage, bool, error) {
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (actor, key, endpoint, request_hash, status)
    VALUES ($1, $2, $3, $4, 'pending')
    ON CONFLICT (actor, key, endpoint) DO NOTHING
  `, actor, key, endpoint, requestHash)
	if err != nil {
		return nil, false, err
	}
	if tag.RowsAffected() == 1 {
		return nil, false, nil
	}

	var storedHash, status string
	var stored json.RawMessage
	err = s.db.QueryRow(ctx, `
    SELECT request_hash, status, COALESCE(response_json, 'null'::jsonb)
    FROM idempotency_keys
    WHERE actor = $1 AND key = $2 AND endpoint = $3
  `, actor, key, endpoint).Scan(&storedHash, &status, &stored)
	if errors.Is(err, pgx.ErrNoRows) {
		// released between the insert and the read
		return nil, false, ErrIdempotencyInProgress
	}
	if err != nil {
		return nil, false, err
	}
	if storedHash != requestHash {
		return nil, false, ErrIdempotencyConflict
	}
	if status != idempotencyCompleted {
		return nil, false, ErrIdempotencyInProgress
	}
	return stored, true, nil
}

func (s *PostgresIdempotencyStore) Save(ctx context.Context, actor, endpoint, key, requestHash string, response json.RawMessage) error {
	tag, err := s.db.Exec(ctx, `
    UPDATE idempotency_keys
    SET status = 'completed', response_json = $5
    WHERE actor = $1 AND key = $2 AND endpoint = $3 AND request_hash = $4
  `, actor, key, endpoint, requestHash, response)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

func (s *PostgresIdempotencyStore) Release(ctx context.Context, actor, endpoint, key string) error {
	_, err := s.db.Exec(ctx, `
    DELETE FROM idempotency_keys
    WHERE actor = $1 AND key = $2 AND endpoint = $3 AND status = 'pending'
  `, actor, key, endpoint)
	return err
}

type memoryIdempotencyEntry struct {
	hash     string
	status   string
	response json.RawMessage
	expires  time.Time
}

// MemoryIdempotencyStore keeps keys in process for ttl.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryIdempotencyEntry
	now     func() time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{ttl: ttl, entries: map[string]memoryIdempotencyEntry{}, now: time.Now}
}

func (s *MemoryIdempotencyStore) Reserve(_ context.Context, actor, endpoint, key, requestHash string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	id := actor + "|" + endpoint + "|" + key
	if entry, ok := s.entries[id]; ok && !now.After(entry.expires) {
		if entry.hash != requestHash {
			return nil, false, ErrIdempotencyConflict
		}
		if entry.status != idempotencyCompleted {
			return nil, false, ErrIdempotencyInProgress
		}
		return entry.response, true, nil
	}
	s.sweep(now)
	s.entries[id] = memoryIdempotencyEntry{hash: requestHash, status: idempotencyPending, expires: now.Add(s.ttl)}
	return nil, false, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, actor, endpoint, key, requestHash string, response json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	id := actor + "|" + endpoint + "|" + key
	if entry, ok := s.entries[id]; ok && now.Before(entry.expires) && entry.hash != requestHash {
		return ErrIdempotencyConflict
	}
	s.entries[id] = memoryIdempotencyEntry{hash: requestHash, status: idempotencyCompleted, response: response, expires: now.Add(s.ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, actor, endpoint, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := actor + "|" + endpoint + "|" + key
	if entry, ok := s.entries[id]; ok && entry.status == idempotencyPending {
		delete(s.entries, id)
	}
	return nil
}

func (s *MemoryIdempotencyStore) sweep(now time.Time) {
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
		}
	}
}
