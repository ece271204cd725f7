package model

import (
	"encoding/json"
	"fmt"
)

// TimestampLayout is the wall-clock format recorded on every LogEntry.
const TimestampLayout = "2006-01-02 15:04:05"

// AuditLogCapacity bounds the number of sync attempts kept in memory.
const AuditLogCapacity = 100

// Action labels the operation and trigger path of a sync attempt.
type Action string

const (
	ActionShipmentUpdate    Action = "shipment_update"
	ActionInventoryUpdate   Action = "inventory_update"
	ActionAutoShipmentSync  Action = "auto_shipment_sync"
	ActionAutoInventorySync Action = "auto_inventory_sync"
)

// Actions lists every known action label.
func Actions() []Action {
	return []Action{
		ActionShipmentUpdate,
		ActionInventoryUpdate,
		ActionAutoShipmentSync,
		ActionAutoInventorySync,
	}
}

func ParseAction(raw string) (Action, error) {
	for _, a := range Actions() {
		if string(a) == raw {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", raw)
}

// IsShipment reports whether the action carries a ShipmentUpdate payload.
func (a Action) IsShipment() bool {
	return a == ActionShipmentUpdate || a == ActionAutoShipmentSync
}

// IsInventory reports whether the action carries an InventoryUpdate payload.
func (a Action) IsInventory() bool {
	return a == ActionInventoryUpdate || a == ActionAutoInventorySync
}

// SyncResult is the normalized outcome of one ERP call.
// Response is set only when Success is true, Error only when it is false.
type SyncResult struct {
	Success  bool            `json:"success"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func NewSuccessResult(response json.RawMessage) SyncResult {
	if len(response) == 0 {
		response = json.RawMessage("null")
	}
	return SyncResult{Success: true, Response: response}
}

func NewFailureResult(err error) SyncResult {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return SyncResult{Success: false, Error: msg}
}

// Clone returns a copy that shares no memory with r.
func (r SyncResult) Clone() SyncResult {
	out := r
	if r.Response != nil {
		out.Response = append(json.RawMessage(nil), r.Response...)
	}
	return out
}

// Payload is the domain input recorded as LogEntry.Data.
type Payload interface {
	clonePayload() Payload
}

// ShipmentUpdate is a shipment status change. Timestamp is supplied by the
// caller and is independent from the LogEntry timestamp.
type ShipmentUpdate struct {
	ShipmentID string `json:"shipment_id"`
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
}

func (u ShipmentUpdate) clonePayload() Payload { return u }

// InventoryUpdate is a stock level change for one SKU at one location.
type InventoryUpdate struct {
	SKU         string  `json:"sku"`
	LocationID  string  `json:"location_id"`
	Quantity    int     `json:"quantity"`
	BatchNumber *string `json:"batch_number"`
	ExpiryDate  *string `json:"expiry_date"`
}

func (u InventoryUpdate) clonePayload() Payload {
	out := u
	out.BatchNumber = cloneString(u.BatchNumber)
	out.ExpiryDate = cloneString(u.ExpiryDate)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// LogEntry is one immutable audit record of a sync attempt.
type LogEntry struct {
	ID        string     `json:"id"`
	Timestamp string     `json:"timestamp"`
	Action    Action     `json:"action"`
	Data      Payload    `json:"data"`
	Result    SyncResult `json:"result"`
}

// Clone returns a deep copy of e.
func (e LogEntry) Clone() LogEntry {
	out := e
	if e.Data != nil {
		out.Data = e.Data.clonePayload()
	}
	out.Result = e.Result.Clone()
	return out
}

func (e *LogEntry) UnmarshalJSON(b []byte) error {
	var wire struct {
		ID        string          `json:"id"`
		Timestamp string          `json:"timestamp"`
		Action    Action          `json:"action"`
		Data      json.RawMessage `json:"data"`
		Result    SyncResult      `json:"result"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}

	var data Payload
	if len(wire.Data) > 0 && string(wire.Data) != "null" {
		switch {
		case wire.Action.IsShipment():
			var u ShipmentUpdate
			if err := json.Unmarshal(wire.Data, &u); err != nil {
				return fmt.Errorf("decode shipment data: %w", err)
			}
			data = u
		case wire.Action.IsInventory():
			var u InventoryUpdate
			if err := json.Unmarshal(wire.Data, &u); err != nil {
				return fmt.Errorf("decode inventory data: %w", err)
			}
			data = u
		default:
			return fmt.Errorf("unknown action %q", wire.Action)
		}
	}

	*e = LogEntry{
		ID:        wire.ID,
		Timestamp: wire.Timestamp,
		Action:    wire.Action,
		Data:      data,
		Result:    wire.Result,
	}
	return nil
}
