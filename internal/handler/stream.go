package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/chainsync/gateway/internal/pkg/logger"
	"github.com/chainsync/gateway/internal/stream"
)

type StreamHandler struct {
	hub *stream.Hub
}

func NewStreamHandler(hub *stream.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// Serve upgrades to a websocket that receives every new sync log entry.
func (h *StreamHandler) Serve(c *gin.Context) {
	if err := h.hub.ServeWS(c.Writer, c.Request); err != nil {
		// the upgrader has already written the failure response
		if !errors.Is(err, stream.ErrClosed) {
			logger.Debug("Stream upgrade failed", "error", err)
		}
	}
}
