package model

import "strings"

// ShipmentUpdateRequest represents the incoming JSON body of POST /api/shipments/update
type ShipmentUpdateRequest struct {
	ShipmentID string `json:"shipment_id" binding:"required"`
	Status     string `json:"status" binding:"required"`
	Timestamp  string `json:"timestamp" binding:"required"`
}

func (r ShipmentUpdateRequest) ToUpdate() ShipmentUpdate {
	return ShipmentUpdate{
		ShipmentID: r.ShipmentID,
		Status:     r.Status,
		Timestamp:  r.Timestamp,
	}
}

// InventoryUpdateRequest represents the incoming JSON body of POST /api/inventory/update.
// Quantity is a pointer so that an explicit 0 passes the required check.
type InventoryUpdateRequest struct {
	SKU         string  `json:"sku" binding:"required"`
	LocationID  string  `json:"location_id" binding:"required"`
	Quantity    *int    `json:"quantity" binding:"required"`
	BatchNumber *string `json:"batch_number,omitempty"`
	ExpiryDate  *string `json:"expiry_date,omitempty"`
}

// ToUpdate converts the request, treating blank optional fields as absent.
func (r InventoryUpdateRequest) ToUpdate() InventoryUpdate {
	u := InventoryUpdate{
		SKU:         r.SKU,
		LocationID:  r.LocationID,
		BatchNumber: optional(r.BatchNumber),
		ExpiryDate:  optional(r.ExpiryDate),
	}
	if r.Quantity != nil {
		u.Quantity = *r.Quantity
	}
	return u
}

func optional(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}

// SyncLogQuery holds the optional filters of GET /api/sync_logs
type SyncLogQuery struct {
	Limit  int
	Action Action
}
