package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/offer-checkout/internal/dto"
	"github.com/prohmpiriya/offer-checkout/internal/service"
	"github.com/prohmpiriya/offer-checkout/pkg/response"
)

// CheckoutHandler handles checkout and ticket endpoints
type CheckoutHandler struct {
	checkoutService service.CheckoutService
	purchaseService service.PurchaseService
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkoutService service.CheckoutService, purchaseService service.PurchaseService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		purchaseService: purchaseService,
	}
}

// CreateCheckoutSession handles POST /events/:eventId/checkout
func (h *CheckoutHandler) CreateCheckoutSession(c *gin.Context) {
	eventID := c.Param("eventId")
	if eventID == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("event_id is required"))
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	session, err := h.checkoutService.CreateCheckoutSession(c.Request.Context(), eventID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.FromCheckoutSession(session)))
}

// GetLatestTicket handles GET /tickets/latest
func (h *CheckoutHandler) GetLatestTicket(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	ticket, err := h.purchaseService.LatestTicket(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.FromTicket(ticket)))
}
