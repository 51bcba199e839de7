package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/prohmpiriya/offer-checkout/internal/dto"
	"github.com/prohmpiriya/offer-checkout/internal/service"
	"github.com/prohmpiriya/offer-checkout/pkg/logger"
	"github.com/prohmpiriya/offer-checkout/pkg/middleware"
	"github.com/prohmpiriya/offer-checkout/pkg/response"
	"go.uber.org/zap"
)

// Error codes specific to this service
const (
	ErrCodeOfferUnavailable     = "OFFER_UNAVAILABLE"
	ErrCodeConnectAccountNeeded = "CONNECT_ACCOUNT_REQUIRED"
	ErrCodeRefundFailed         = "REFUND_FAILED"
	ErrCodeQueueUnavailable     = "QUEUE_UNAVAILABLE"
)

// writeError maps a service error onto a status and envelope
func writeError(c *gin.Context, err error) {
	var agg *domain.RefundAggregateError

	switch {
	case errors.As(err, &agg):
		c.JSON(http.StatusBadGateway, response.ErrorWithDetails(ErrCodeRefundFailed, agg.Error(), &dto.RefundFailureDetails{
			EventID:       agg.EventID,
			Total:         agg.Total,
			FailedTickets: agg.FailedTicketIDs(),
		}))
	case errors.Is(err, domain.ErrEventNotFound),
		errors.Is(err, domain.ErrTicketNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, response.NotFound(err.Error()))
	case errors.Is(err, domain.ErrNotEventOwner):
		c.JSON(http.StatusForbidden, response.Error(response.ErrCodeForbidden, err.Error()))
	case errors.Is(err, domain.ErrNoValidOffer),
		errors.Is(err, domain.ErrOfferNoExpiration),
		errors.Is(err, domain.ErrOfferExpired),
		errors.Is(err, domain.ErrEventCancelled),
		errors.Is(err, domain.ErrOfferNotAvailable):
		c.JSON(http.StatusConflict, response.Error(ErrCodeOfferUnavailable, err.Error()))
	case errors.Is(err, domain.ErrConnectAccountNotFound):
		c.JSON(http.StatusPreconditionFailed, response.Error(ErrCodeConnectAccountNeeded, err.Error()))
	case errors.Is(err, service.ErrPublisherDisabled):
		c.JSON(http.StatusServiceUnavailable, response.Error(ErrCodeQueueUnavailable, "asynchronous cancellation is not enabled"))
	case errors.Is(err, domain.ErrPaymentProvider):
		logger.Get().Error("Payment provider error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadGateway, response.Error(response.ErrCodeUpstream, "payment provider error"))
	default:
		logger.Get().Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.InternalError(""))
	}
}

// requireUser returns the authenticated user or writes 401
func requireUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("user_id is required"))
		return "", false
	}
	return userID, true
}
