package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chainsync/gateway/internal/pkg/apperrors"
	"github.com/chainsync/gateway/internal/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

type IdempotencyRecord struct {
	Status      int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
	Processing  bool // a request holding the key is still running
}

type IdempotencyStore interface {
	// GetOrLock returns (record, true) if the key exists; (nil, false) if the
	// caller now holds the key.
	GetOrLock(ctx context.Context, key string) (*IdempotencyRecord, bool, error)
	Save(ctx context.Context, key string, rec IdempotencyRecord) error
	Unlock(ctx context.Context, key string) error
}

const (
	DefaultIdempotencyTTL     = 24 * time.Hour
	DefaultIdempotencyLockTTL = 5 * time.Minute
)

type inMemEntry struct {
	rec       IdempotencyRecord
	expiresAt time.Time
}

// InMemIdempotencyStore keeps records in process memory. A held key expires
// after lockTTL, a saved response after ttl.
type InMemIdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	lockTTL time.Duration
	now     func() time.Time
	records map[string]*inMemEntry
}

func NewInMemIdempotencyStore(ttl, lockTTL time.Duration) *InMemIdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if lockTTL <= 0 {
		lockTTL = DefaultIdempotencyLockTTL
	}
	return &InMemIdempotencyStore{
		ttl:     ttl,
		lockTTL: lockTTL,
		now:     time.Now,
		records: make(map[string]*inMemEntry),
	}
}

func (s *InMemIdempotencyStore) GetOrLock(_ context.Context, key string) (*IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.records[key]; ok {
		if now.Before(e.expiresAt) {
			cp := e.rec
			return &cp, true, nil
		}
		delete(s.records, key)
	}

	s.records[key] = &inMemEntry{
		rec:       IdempotencyRecord{Processing: true, CreatedAt: now},
		expiresAt: now.Add(s.lockTTL),
	}
	return nil, false, nil
}

func (s *InMemIdempotencyStore) Save(_ context.Context, key string, rec IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec.CreatedAt = now
	rec.Processing = false
	s.records[key] = &inMemEntry{rec: rec, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *InMemIdempotencyStore) Unlock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// IdempotencyMiddleware replays the stored response for a repeated
// X-Idempotency-Key so the ERP is called at most once per key. Requests
// without the header pass through.
func IdempotencyMiddleware(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		idemKey := c.GetHeader(HeaderIdempotencyKey)
		if idemKey == "" {
			c.Next()
			return
		}

		// the same key may be reused across endpoints
		fullKey := c.Request.Method + ":" + c.Request.URL.Path + ":" + idemKey
		ctx := c.Request.Context()

		record, hit, err := store.GetOrLock(ctx, fullKey)
		if err != nil {
			// store outage must not block syncs
			logger.LogError(ctx, err, "Idempotency store unavailable", "path", c.Request.URL.Path)
			c.Next()
			return
		}
		if hit {
			if record.Processing {
				c.Error(apperrors.New(apperrors.ErrConflict, "request in progress", nil))
				c.Abort()
				return
			}
			c.Header("X-Idempotent-Replay", "true")
			c.Data(record.Status, record.ContentType, record.Body)
			c.Abort()
			return
		}

		w := &responseBodyWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		// server errors and errors rendered by ErrorHandler release the key
		// so the client may retry
		storeCtx := context.WithoutCancel(ctx)
		if w.Written() && w.Status() < 500 {
			err = store.Save(storeCtx, fullKey, IdempotencyRecord{
				Status:      w.Status(),
				ContentType: w.Header().Get("Content-Type"),
				Body:        w.body,
			})
		} else {
			err = store.Unlock(storeCtx, fullKey)
		}
		if err != nil {
			logger.LogError(ctx, err, "Failed to persist idempotency record", "path", c.Request.URL.Path)
		}
	}
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body []byte
}

func (w *responseBodyWriter) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return w.ResponseWriter.Write(b)
}

func (w *responseBodyWriter) WriteString(s string) (int, error) {
	w.body = append(w.body, s...)
	return w.ResponseWriter.WriteString(s)
}
