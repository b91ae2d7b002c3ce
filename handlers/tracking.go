package handlers

import (
	"net/http"

	"food-marketplace-api/response"
	"food-marketplace-api/services"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type CreateTrackingRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

// GetTracking returns the tracking of an order, or streams it as
// server-sent events when stream=true.
func (h *Handler) GetTracking(c *gin.Context) {
	orderID := c.Query("orderId")
	if c.Query("stream") == "true" {
		h.streamTracking(c, orderID)
		return
	}
	view, err := h.svc.Tracking.Get(c.Request.Context(), currentUser(c), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"tracking": view})
}

func (h *Handler) streamTracking(c *gin.Context, orderID string) {
	started := false
	emit := func(ev services.TrackingEvent) error {
		if !started {
			c.Writer.Header().Set("Content-Type", sse.ContentType)
			c.Writer.Header().Set("Cache-Control", "no-cache")
			c.Writer.Header().Set("Connection", "keep-alive")
			c.Writer.Header().Set("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
			started = true
		}
		if err := sse.Encode(c.Writer, sse.Event{Data: ev}); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	err := h.svc.Tracking.Stream(c.Request.Context(), currentUser(c), orderID, emit)
	if err == nil {
		return
	}
	if !started {
		response.Error(c, err)
		return
	}
	log.Warn().Err(err).Str("order_id", orderID).Msg("Tracking stream closed")
}

// CreateTracking backfills tracking for an existing order
func (h *Handler) CreateTracking(c *gin.Context) {
	var req CreateTrackingRequest
	if !bind(c, &req) {
		return
	}
	t, err := h.svc.Tracking.CreateForOrder(c.Request.Context(), currentUser(c), req.OrderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"message": "Order tracking created", "tracking": t})
}

// PingTracking records the courier's location or details
func (h *Handler) PingTracking(c *gin.Context) {
	var req services.TrackingPing
	if !bind(c, &req) {
		return
	}
	t, err := h.svc.Tracking.Ping(c.Request.Context(), currentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "Tracking updated", "tracking": t})
}
