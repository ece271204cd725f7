package service

import (
	"context"
	"time"

	"github.com/chainsync/gateway/internal/model"
	"github.com/chainsync/gateway/internal/pkg/logger"
)

// ShipmentSource supplies the payload of each scheduled shipment sync.
type ShipmentSource interface {
	NextShipment(ctx context.Context) (model.ShipmentUpdate, error)
}

// InventorySource supplies the payload of each scheduled inventory sync.
type InventorySource interface {
	NextInventory(ctx context.Context) (model.InventoryUpdate, error)
}

type ShipmentSyncJob struct {
	svc    *SyncService
	source ShipmentSource
}

func NewShipmentSyncJob(svc *SyncService, source ShipmentSource) *ShipmentSyncJob {
	return &ShipmentSyncJob{svc: svc, source: source}
}

func (j *ShipmentSyncJob) Name() string { return string(model.ActionAutoShipmentSync) }

func (j *ShipmentSyncJob) Run(ctx context.Context) {
	u, err := j.source.NextShipment(ctx)
	if err != nil {
		logger.LogError(ctx, err, "Shipment source failed", "job", j.Name())
		return
	}
	j.svc.SyncShipment(ctx, u, model.ActionAutoShipmentSync)
}

type InventorySyncJob struct {
	svc    *SyncService
	source InventorySource
}

func NewInventorySyncJob(svc *SyncService, source InventorySource) *InventorySyncJob {
	return &InventorySyncJob{svc: svc, source: source}
}

func (j *InventorySyncJob) Name() string { return string(model.ActionAutoInventorySync) }

func (j *InventorySyncJob) Run(ctx context.Context) {
	u, err := j.source.NextInventory(ctx)
	if err != nil {
		logger.LogError(ctx, err, "Inventory source failed", "job", j.Name())
		return
	}
	j.svc.SyncInventory(ctx, u, model.ActionAutoInventorySync)
}

// DemoShipmentSource always reports the same shipment in transit, stamped
// with the current time. It is a placeholder until a real change feed exists.
type DemoShipmentSource struct {
	Now func() time.Time
}

func (s DemoShipmentSource) NextShipment(context.Context) (model.ShipmentUpdate, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return model.ShipmentUpdate{
		ShipmentID: "SHIP12345",
		Status:     "In Transit",
		Timestamp:  now().Format(model.TimestampLayout),
	}, nil
}

// DemoInventorySource always reports the same stock level.
type DemoInventorySource struct{}

func (DemoInventorySource) NextInventory(context.Context) (model.InventoryUpdate, error) {
	batch := "BATCH202505"
	expiry := "2025-12-31"
	return model.InventoryUpdate{
		SKU:         "SKU9876",
		LocationID:  "LOC1",
		Quantity:    150,
		BatchNumber: &batch,
		ExpiryDate:  &expiry,
	}, nil
}

// Pruner deletes expired state from a backing store.
type Pruner interface {
	Prune(ctx context.Context) error
}

// PruneJob runs a Pruner on the scheduler's interval.
type PruneJob struct {
	name   string
	pruner Pruner
}

func NewPruneJob(name string, pruner Pruner) *PruneJob {
	return &PruneJob{name: name, pruner: pruner}
}

func (j *PruneJob) Name() string { return j.name }

func (j *PruneJob) Run(ctx context.Context) {
	if err := j.pruner.Prune(ctx); err != nil {
		logger.LogError(ctx, err, "Prune failed", "job", j.name)
	}
}
