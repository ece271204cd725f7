package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chainsync/gateway/internal/model"
	"github.com/chainsync/gateway/internal/pkg/apperrors"
	"github.com/chainsync/gateway/internal/service"
)

type SyncHandler struct {
	svc *service.SyncService
}

func NewSyncHandler(svc *service.SyncService) *SyncHandler {
	return &SyncHandler{svc: svc}
}

// UpdateShipment forwards a shipment status change to the ERP. ERP failures
// are reported in the body with status 200.
func (h *SyncHandler) UpdateShipment(c *gin.Context) {
	var req model.ShipmentUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}

	result := h.svc.SyncShipment(c.Request.Context(), req.ToUpdate(), model.ActionShipmentUpdate)
	c.JSON(http.StatusOK, result)
}

// UpdateInventory forwards a stock level change to the ERP.
func (h *SyncHandler) UpdateInventory(c *gin.Context) {
	var req model.InventoryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err))
		return
	}

	result := h.svc.SyncInventory(c.Request.Context(), req.ToUpdate(), model.ActionInventoryUpdate)
	c.JSON(http.StatusOK, result)
}
