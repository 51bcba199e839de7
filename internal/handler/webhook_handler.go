package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/prohmpiriya/offer-checkout/internal/gateway"
	"github.com/prohmpiriya/offer-checkout/internal/metrics"
	"github.com/prohmpiriya/offer-checkout/internal/service"
	"github.com/prohmpiriya/offer-checkout/pkg/logger"
	"github.com/prohmpiriya/offer-checkout/pkg/response"
	"go.uber.org/zap"
)

// maxWebhookBodyBytes bounds the payload read before verification
const maxWebhookBodyBytes = 64 << 10

// WebhookHandler handles payment processor webhook deliveries
type WebhookHandler struct {
	purchaseService service.PurchaseService
	verifier        *gateway.WebhookVerifier
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(purchaseService service.PurchaseService, verifier *gateway.WebhookVerifier) *WebhookHandler {
	return &WebhookHandler{
		purchaseService: purchaseService,
		verifier:        verifier,
	}
}

// HandleStripeWebhook handles POST /webhooks/stripe
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.Get()
	start := time.Now()

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes+1))
	if err != nil || len(payload) > maxWebhookBodyBytes {
		log.Warn("Failed to read webhook body", zap.Error(err), zap.Int("bytes", len(payload)))
		metrics.RecordWebhookRejected(ctx, "unreadable_body")
		c.JSON(http.StatusBadRequest, response.BadRequest("Failed to read request body"))
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		log.Warn("Missing Stripe-Signature header")
		metrics.RecordWebhookRejected(ctx, "missing_signature")
		c.JSON(http.StatusBadRequest, response.BadRequest("Missing Stripe-Signature header"))
		return
	}

	event, err := h.verifier.Verify(payload, sigHeader)
	if err != nil {
		log.Warn("Failed to verify webhook signature", zap.Error(err))
		metrics.RecordWebhookRejected(ctx, "invalid_signature")
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid signature"))
		return
	}

	eventType := string(event.Type)
	metrics.RecordWebhookReceived(ctx, eventType)
	log = log.With(zap.String("event_id", event.ID), zap.String("event_type", eventType))

	if eventType != gateway.EventCheckoutSessionCompleted {
		log.Debug("Ignoring webhook event type")
		c.Status(http.StatusOK)
		return
	}

	completed, err := gateway.ParseCompletedCheckout(event)
	if err != nil {
		log.Error("Failed to parse completed checkout session", zap.Error(err))
		reason := "unparseable_session"
		if errors.Is(err, domain.ErrInvalidMetadata) {
			reason = "invalid_metadata"
		}
		metrics.RecordWebhookRejected(ctx, reason)
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	ticket, err := h.purchaseService.CompletePurchase(ctx, &service.CompletePurchaseRequest{
		SessionID:       completed.SessionID,
		PaymentIntentID: completed.PaymentIntentID,
		AmountTotal:     completed.AmountTotal,
		Metadata:        completed.Metadata,
	})
	if err != nil {
		log.Error("Error processing webhook", zap.String("session_id", completed.SessionID), zap.Error(err))
		metrics.RecordWebhookFailed(ctx, eventType)
		c.JSON(http.StatusInternalServerError, response.InternalError("Error processing webhook"))
		return
	}

	metrics.RecordWebhookProcessed(ctx, eventType, time.Since(start).Seconds())
	log.Info("Checkout session reconciled",
		zap.String("session_id", completed.SessionID),
		zap.String("ticket_id", ticket.ID),
	)
	c.Status(http.StatusOK)
}
