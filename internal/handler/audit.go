package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/chainsync/gateway/internal/model"
	"github.com/chainsync/gateway/internal/pkg/apperrors"
	"github.com/chainsync/gateway/internal/service"
)

type AuditHandler struct {
	log *service.AuditLog
}

func NewAuditHandler(log *service.AuditLog) *AuditHandler {
	return &AuditHandler{log: log}
}

// List returns the retained sync log entries, newest first.
func (h *AuditHandler) List(c *gin.Context) {
	query, err := parseSyncLogQuery(c)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.log.List(query))
}

func parseSyncLogQuery(c *gin.Context) (model.SyncLogQuery, error) {
	var q model.SyncLogQuery
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return q, apperrors.NewInvalidRequest("limit must be an integer")
		}
		q.Limit = limit
	}
	if raw := c.Query("action"); raw != "" {
		action, err := model.ParseAction(raw)
		if err != nil {
			return q, apperrors.NewInvalidRequest(err.Error())
		}
		q.Action = action
	}
	return q, nil
}
