package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/chainsync/gateway/internal/model"
	"github.com/chainsync/gateway/internal/pkg/logger"
	"github.com/chainsync/gateway/internal/pkg/metrics"
	"github.com/chainsync/gateway/internal/pkg/tracing"
)

// ERPClient is the outbound contract. Implementations report every failure
// inside the returned SyncResult.
type ERPClient interface {
	UpdateShipment(ctx context.Context, u model.ShipmentUpdate) model.SyncResult
	UpdateInventory(ctx context.Context, u model.InventoryUpdate) model.SyncResult
}

// Publisher is notified of every appended entry. Publish must not block.
// Concurrent syncs may publish in a different order than the log holds
// their entries; AuditLog.Snapshot is the ordered view.
type Publisher interface {
	Publish(entry model.LogEntry)
}

// SyncService is the single path shared by HTTP requests and scheduled jobs:
// call the ERP, append exactly one audit entry, return the result unchanged.
type SyncService struct {
	erp       ERPClient
	log       *AuditLog
	publisher Publisher
}

func NewSyncService(erp ERPClient, log *AuditLog, publisher Publisher) *SyncService {
	return &SyncService{
		erp:       erp,
		log:       log,
		publisher: publisher,
	}
}

func (s *SyncService) SyncShipment(ctx context.Context, u model.ShipmentUpdate, action model.Action) model.SyncResult {
	return s.sync(ctx, action, u, func(ctx context.Context) model.SyncResult {
		return s.erp.UpdateShipment(ctx, u)
	})
}

func (s *SyncService) SyncInventory(ctx context.Context, u model.InventoryUpdate, action model.Action) model.SyncResult {
	return s.sync(ctx, action, u, func(ctx context.Context) model.SyncResult {
		return s.erp.UpdateInventory(ctx, u)
	})
}

// AuditLog exposes the log this service appends to.
func (s *SyncService) AuditLog() *AuditLog {
	return s.log
}

func (s *SyncService) sync(ctx context.Context, action model.Action, data model.Payload, call func(context.Context) model.SyncResult) model.SyncResult {
	// outbound calls are never cancelled by the caller going away
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracing.Tracer("chainsync/service").Start(ctx, "sync."+string(action))
	defer span.End()

	start := time.Now()
	result := safeCall(ctx, call)
	duration := time.Since(start)

	// the lock is only taken here, after the network call has finished
	entry := s.log.Append(action, data, result)

	outcome := metrics.Outcome(result.Success)
	metrics.SyncAttempts.WithLabelValues(string(action), outcome).Inc()

	span.SetAttributes(
		attribute.String("sync.action", string(action)),
		attribute.Bool("sync.success", result.Success),
	)
	if result.Success {
		logger.Info("ERP sync succeeded", "action", string(action), "success", true, "entry_id", entry.ID, "duration", duration)
	} else {
		span.SetStatus(codes.Error, result.Error)
		logger.Warn("ERP sync failed", "action", string(action), "success", false, "entry_id", entry.ID, "duration", duration, "error", result.Error)
	}

	if s.publisher != nil {
		s.publisher.Publish(entry)
	}
	return result
}

func safeCall(ctx context.Context, call func(context.Context) model.SyncResult) (result model.SyncResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = model.NewFailureResult(fmt.Errorf("erp client panic: %v", rec))
		}
	}()
	return call(ctx)
}
