package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chainsync/gateway/internal/middleware"
)

// RedisIdempotencyStore shares idempotency keys between gateway replicas.
// A held key expires after lockTTL, a saved response after ttl.
type RedisIdempotencyStore struct {
	client  *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
	prefix  string
}

func NewRedisIdempotencyStore(client *RedisClient, ttl, lockTTL time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = middleware.DefaultIdempotencyTTL
	}
	if lockTTL <= 0 {
		lockTTL = middleware.DefaultIdempotencyLockTTL
	}
	return &RedisIdempotencyStore{
		client:  client.Client,
		ttl:     ttl,
		lockTTL: lockTTL,
		prefix:  "chainsync:idem:",
	}
}

func (s *RedisIdempotencyStore) GetOrLock(ctx context.Context, key string) (*middleware.IdempotencyRecord, bool, error) {
	lock := encodeIdemRecord(middleware.IdempotencyRecord{
		CreatedAt:  time.Now().UTC(),
		Processing: true,
	})
	ok, err := s.client.SetNX(ctx, s.prefix+key, lock, s.lockTTL).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, false, nil
	}

	raw, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return s.GetOrLock(ctx, key)
	}
	if err != nil {
		return nil, false, err
	}
	rec, err := decodeIdemRecord(raw)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, rec middleware.IdempotencyRecord) error {
	rec.CreatedAt = time.Now().UTC()
	rec.Processing = false
	return s.client.Set(ctx, s.prefix+key, encodeIdemRecord(rec), s.ttl).Err()
}

func (s *RedisIdempotencyStore) Unlock(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

type idemWire struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body"`
	CreatedAt   int64  `json:"created_at"`
	Processing  bool   `json:"processing"`
}

func encodeIdemRecord(rec middleware.IdempotencyRecord) string {
	data, _ := json.Marshal(idemWire{
		Status:      rec.Status,
		ContentType: rec.ContentType,
		Body:        base64.StdEncoding.EncodeToString(rec.Body),
		CreatedAt:   rec.CreatedAt.Unix(),
		Processing:  rec.Processing,
	})
	return string(data)
}

func decodeIdemRecord(raw string) (*middleware.IdempotencyRecord, error) {
	var wire idemWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, err
	}
	body, err := base64.StdEncoding.DecodeString(wire.Body)
	if err != nil {
		return nil, err
	}
	return &middleware.IdempotencyRecord{
		Status:      wire.Status,
		ContentType: wire.ContentType,
		Body:        body,
		CreatedAt:   time.Unix(wire.CreatedAt, 0).UTC(),
		Processing:  wire.Processing,
	}, nil
}
