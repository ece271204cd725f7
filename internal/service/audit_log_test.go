package service

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsync/gateway/internal/model"
)

func shipment(id string) model.ShipmentUpdate {
	return model.ShipmentUpdate{ShipmentID: id, Status: "Delivered", Timestamp: "2025-01-01 00:00:00"}
}

func okResult() model.SyncResult {
	return model.NewSuccessResult([]byte(`{"ok":true}`))
}

func TestNewAuditLog_DefaultCapacity(t *testing.T) {
	assert.Equal(t, model.AuditLogCapacity, NewAuditLog(0).Capacity())
	assert.Equal(t, 5, NewAuditLog(5).Capacity())
}

func TestAuditLog_AppendStampsEntry(t *testing.T) {
	l := NewAuditLog(10)
	l.now = func() time.Time { return time.Date(2025, 1, 1, 8, 30, 5, 0, time.UTC) }

	entry := l.Append(model.ActionShipmentUpdate, shipment("SHIP1"), okResult())

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "2025-01-01 08:30:05", entry.Timestamp)
	assert.Equal(t, model.ActionShipmentUpdate, entry.Action)
	assert.Equal(t, shipment("SHIP1"), entry.Data)
	assert.True(t, entry.Result.Success)
}

func TestAuditLog_NeverExceedsCapacity(t *testing.T) {
	l := NewAuditLog(model.AuditLogCapacity)
	for i := 0; i < 3*model.AuditLogCapacity; i++ {
		l.Append(model.ActionShipmentUpdate, shipment(fmt.Sprint(i)), okResult())
		require.LessOrEqual(t, l.Len(), model.AuditLogCapacity)
	}
	assert.Equal(t, model.AuditLogCapacity, l.Len())
}

func TestAuditLog_EvictsOldestFirst(t *testing.T) {
	l := NewAuditLog(model.AuditLogCapacity)
	for i := 0; i <= model.AuditLogCapacity; i++ {
		l.Append(model.ActionShipmentUpdate, shipment(fmt.Sprintf("S%d", i)), okResult())
	}

	snap := l.Snapshot()
	require.Len(t, snap, model.AuditLogCapacity)

	// newest first: S100, S99, ..., S1
	for i, entry := range snap {
		want := fmt.Sprintf("S%d", model.AuditLogCapacity-i)
		assert.Equal(t, want, entry.Data.(model.ShipmentUpdate).ShipmentID)
	}
	for _, entry := range snap {
		assert.NotEqual(t, "S0", entry.Data.(model.ShipmentUpdate).ShipmentID)
	}
}

func TestAuditLog_SnapshotEmpty(t *testing.T) {
	snap := NewAuditLog(3).Snapshot()
	assert.NotNil(t, snap)
	assert.Empty(t, snap)
}

func TestAuditLog_SnapshotIsIndependent(t *testing.T) {
	l := NewAuditLog(10)
	input := model.InventoryUpdate{SKU: "SKU1", LocationID: "LOC1", Quantity: 3, BatchNumber: strPtr("B1")}
	l.Append(model.ActionInventoryUpdate, input, okResult())
	l.Append(model.ActionShipmentUpdate, shipment("SHIP1"), model.NewFailureResult(errors.New("down")))

	first := l.Snapshot()
	second := l.Snapshot()
	require.Equal(t, first, second)

	// caller-owned input mutated after append
	*input.BatchNumber = "mutated-input"

	// mutate everything reachable from the first snapshot
	inv := first[1].Data.(model.InventoryUpdate)
	*inv.BatchNumber = "mutated"
	first[1].Result.Response[0] = 'X'
	first[0].Action = model.ActionAutoShipmentSync
	first[0] = model.LogEntry{}

	assert.Equal(t, "B1", *second[1].Data.(model.InventoryUpdate).BatchNumber)
	assert.JSONEq(t, `{"ok":true}`, string(second[1].Result.Response))
	assert.Equal(t, model.ActionShipmentUpdate, second[0].Action)
	assert.Equal(t, second, l.Snapshot())
}

func TestAuditLog_ConcurrentAppend(t *testing.T) {
	const writers = 1000
	l := NewAuditLog(model.AuditLogCapacity)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Append(model.ActionShipmentUpdate, shipment(fmt.Sprintf("W%d", i)), okResult())
			if i%10 == 0 {
				snap := l.Snapshot()
				assert.LessOrEqual(t, len(snap), model.AuditLogCapacity)
			}
		}(i)
	}
	wg.Wait()

	snap := l.Snapshot()
	require.Len(t, snap, model.AuditLogCapacity)

	seen := make(map[string]bool, len(snap))
	ids := make(map[string]bool, len(snap))
	for _, entry := range snap {
		id := entry.Data.(model.ShipmentUpdate).ShipmentID
		assert.False(t, seen[id], "duplicate payload %s", id)
		assert.False(t, ids[entry.ID], "duplicate entry id %s", entry.ID)
		seen[id] = true
		ids[entry.ID] = true

		var n int
		_, err := fmt.Sscanf(id, "W%d", &n)
		require.NoError(t, err)
		assert.True(t, n >= 0 && n < writers)
	}
}

func TestAuditLog_List(t *testing.T) {
	l := NewAuditLog(10)
	l.Append(model.ActionShipmentUpdate, shipment("A"), okResult())
	l.Append(model.ActionInventoryUpdate, model.InventoryUpdate{SKU: "B"}, okResult())
	l.Append(model.ActionShipmentUpdate, shipment("C"), okResult())
	l.Append(model.ActionAutoShipmentSync, shipment("D"), okResult())

	t.Run("limit", func(t *testing.T) {
		got := l.List(model.SyncLogQuery{Limit: 2})
		require.Len(t, got, 2)
		assert.Equal(t, model.ActionAutoShipmentSync, got[0].Action)
		assert.Equal(t, "C", got[1].Data.(model.ShipmentUpdate).ShipmentID)
	})

	t.Run("action", func(t *testing.T) {
		got := l.List(model.SyncLogQuery{Action: model.ActionShipmentUpdate})
		require.Len(t, got, 2)
		assert.Equal(t, "C", got[0].Data.(model.ShipmentUpdate).ShipmentID)
		assert.Equal(t, "A", got[1].Data.(model.ShipmentUpdate).ShipmentID)
	})

	t.Run("limit out of range returns all", func(t *testing.T) {
		assert.Len(t, l.List(model.SyncLogQuery{Limit: 1000}), 4)
		assert.Len(t, l.List(model.SyncLogQuery{Limit: -1}), 4)
	})
}
