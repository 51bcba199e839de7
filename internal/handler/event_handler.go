package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/prohmpiriya/offer-checkout/internal/dto"
	"github.com/prohmpiriya/offer-checkout/internal/service"
	"github.com/prohmpiriya/offer-checkout/pkg/response"
)

// EventHandler handles event lifecycle endpoints
type EventHandler struct {
	refundService service.RefundService
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(refundService service.RefundService) *EventHandler {
	return &EventHandler{refundService: refundService}
}

// CancelEvent handles POST /events/:eventId/cancel
// Refunds every valid ticket, then cancels the event. Only the owner may call it.
// With ?async=true the cancellation is queued for the refund worker and 202 is returned.
func (h *EventHandler) CancelEvent(c *gin.Context) {
	eventID := c.Param("eventId")
	if eventID == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("event_id is required"))
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if c.Query("async") == "true" {
		if err := h.refundService.RequestCancel(c.Request.Context(), eventID, userID); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, response.Success(&dto.CancelEventResponse{
			EventID: eventID,
			Status:  "cancel_requested",
		}))
		return
	}

	result, err := h.refundService.CancelEvent(c.Request.Context(), eventID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(&dto.CancelEventResponse{
		EventID:         result.EventID,
		Status:          string(domain.EventStatusCancelled),
		RefundedTickets: result.Refunded,
	}))
}
