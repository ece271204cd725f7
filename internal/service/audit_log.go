package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chainsync/gateway/internal/model"
	"github.com/chainsync/gateway/internal/pkg/metrics"
)

// AuditLog is a fixed-capacity, insertion-ordered ring of sync attempts.
// Append and Snapshot are serialized by a single mutex; callers never get
// references into the live buffer.
type AuditLog struct {
	mu        sync.Mutex
	capacity  int
	records   []model.LogEntry
	nextIndex int // slot of the oldest record once the ring is full
	now       func() time.Time
}

func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = model.AuditLogCapacity
	}
	return &AuditLog{
		capacity: capacity,
		records:  make([]model.LogEntry, 0, capacity),
		now:      time.Now,
	}
}

// Append records a new entry stamped with the current time, evicting the
// oldest entry first when the log is full. The returned entry is a copy.
func (l *AuditLog) Append(action model.Action, data model.Payload, result model.SyncResult) model.LogEntry {
	entry := model.LogEntry{
		ID:     uuid.NewString(),
		Action: action,
		Data:   data,
		Result: result,
	}.Clone()

	l.mu.Lock()
	entry.Timestamp = l.now().Format(model.TimestampLayout)
	if len(l.records) < l.capacity {
		l.records = append(l.records, entry)
	} else {
		l.records[l.nextIndex] = entry
		l.nextIndex = (l.nextIndex + 1) % l.capacity
	}
	metrics.AuditLogEntries.Set(float64(len(l.records)))
	l.mu.Unlock()

	return entry.Clone()
}

// Snapshot returns an independent copy of every entry, most recent first.
func (l *AuditLog) Snapshot() []model.LogEntry {
	return l.List(model.SyncLogQuery{})
}

// List is Snapshot with an optional action filter and result limit.
// A limit outside (0, capacity] returns every matching entry.
func (l *AuditLog) List(q model.SyncLogQuery) []model.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit := q.Limit
	if limit <= 0 || limit > l.capacity {
		limit = l.capacity
	}
	results := make([]model.LogEntry, 0, min(limit, len(l.records)))
	total := len(l.records)
	for i := 0; i < total; i++ {
		idx := (l.nextIndex + total - 1 - i) % total
		entry := l.records[idx]
		if q.Action != "" && entry.Action != q.Action {
			continue
		}
		results = append(results, entry.Clone())
		if len(results) >= limit {
			break
		}
	}
	return results
}

func (l *AuditLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *AuditLog) Capacity() int {
	return l.capacity
}
