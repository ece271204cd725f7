package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/chainsync/gateway/internal/model"
)

// stubERP lets each test decide the outcome of the two ERP calls.
type stubERP struct {
	shipment  func(ctx context.Context, u model.ShipmentUpdate) model.SyncResult
	inventory func(ctx context.Context, u model.InventoryUpdate) model.SyncResult
	calls     atomic.Int32
}

func (s *stubERP) UpdateShipment(ctx context.Context, u model.ShipmentUpdate) model.SyncResult {
	s.calls.Add(1)
	if s.shipment == nil {
		return model.NewSuccessResult([]byte(`{"ok":true}`))
	}
	return s.shipment(ctx, u)
}

func (s *stubERP) UpdateInventory(ctx context.Context, u model.InventoryUpdate) model.SyncResult {
	s.calls.Add(1)
	if s.inventory == nil {
		return model.NewSuccessResult([]byte(`{"ok":true}`))
	}
	return s.inventory(ctx, u)
}

func alwaysFail(msg string) func(context.Context, model.ShipmentUpdate) model.SyncResult {
	return func(context.Context, model.ShipmentUpdate) model.SyncResult {
		return model.NewFailureResult(errors.New(msg))
	}
}

type recordingPublisher struct {
	mu      sync.Mutex
	entries []model.LogEntry
}

func (p *recordingPublisher) Publish(entry model.LogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
}

func (p *recordingPublisher) Entries() []model.LogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.LogEntry(nil), p.entries...)
}

func strPtr(s string) *string { return &s }
