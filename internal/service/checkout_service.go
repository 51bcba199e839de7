package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prohmpiriya/offer-checkout/internal/clock"
	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/prohmpiriya/offer-checkout/internal/gateway"
	"github.com/prohmpiriya/offer-checkout/internal/metrics"
	"github.com/prohmpiriya/offer-checkout/internal/repository"
	"github.com/prohmpiriya/offer-checkout/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// checkoutSessionIDPlaceholder is substituted by the processor on redirect
const checkoutSessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

// CheckoutService opens payment sessions for ticket offers
type CheckoutService interface {
	// CreateCheckoutSession opens a hosted checkout for the caller's current
	// offer on the event. Nothing is mutated.
	CreateCheckoutSession(ctx context.Context, eventID, userID string) (*domain.CheckoutSession, error)
}

// CheckoutServiceConfig contains configuration for the checkout service
type CheckoutServiceConfig struct {
	BaseURL            string
	Currency           string
	OfferTTL           time.Duration
	PlatformFeePercent float64
}

type checkoutService struct {
	backend repository.Backend
	gateway gateway.PaymentGateway
	clock   clock.Clock
	config  *CheckoutServiceConfig
}

// NewCheckoutService creates a new CheckoutService
func NewCheckoutService(
	backend repository.Backend,
	gw gateway.PaymentGateway,
	clk clock.Clock,
	config *CheckoutServiceConfig,
) CheckoutService {
	if config == nil {
		config = &CheckoutServiceConfig{}
	}
	if config.Currency == "" {
		config.Currency = "inr"
	}
	if config.OfferTTL <= 0 {
		config.OfferTTL = 30 * time.Minute
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:3000"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if clk == nil {
		clk = clock.NewSystem()
	}

	return &checkoutService{
		backend: backend,
		gateway: gw,
		clock:   clk,
		config:  config,
	}
}

// CreateCheckoutSession opens a hosted checkout for the caller's offer
func (s *checkoutService) CreateCheckoutSession(ctx context.Context, eventID, userID string) (*domain.CheckoutSession, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.checkout.create_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("user_id", userID),
	)

	session, err := s.createSession(ctx, eventID, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		metrics.RecordCheckoutFailed(ctx, checkoutFailureReason(err))
		return nil, err
	}

	span.SetAttributes(attribute.String("session_id", session.SessionID))
	span.SetStatus(codes.Ok, "")
	metrics.RecordCheckoutCreated(ctx, s.config.Currency)
	return session, nil
}

func (s *checkoutService) createSession(ctx context.Context, eventID, userID string) (*domain.CheckoutSession, error) {
	event, err := s.backend.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.IsCancelled() {
		return nil, domain.ErrEventCancelled
	}

	offer, err := s.backend.GetOfferForUser(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load offer: %w", err)
	}
	if offer == nil || !offer.IsOffered() {
		return nil, domain.ErrNoValidOffer
	}

	connectID, err := s.backend.GetConnectAccountID(ctx, event.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load connect account: %w", err)
	}
	if connectID == "" {
		return nil, domain.ErrConnectAccountNotFound
	}

	now := s.clock.Now()
	remaining, ok := offer.RemainingOffer(now)
	if !ok {
		return nil, domain.ErrOfferNoExpiration
	}
	if remaining <= 0 {
		return nil, domain.ErrOfferExpired
	}

	req := &gateway.CheckoutSessionRequest{
		ConnectAccountID: connectID,
		ProductName:      event.Name,
		Description:      event.Description,
		Currency:         s.config.Currency,
		UnitAmount:       domain.UnitAmount(event.Price),
		ApplicationFee:   domain.ApplicationFee(event.Price, s.config.PlatformFeePercent),
		ExpiresAt:        domain.CheckoutExpiry(now, *offer.OfferExpiresAt, s.config.OfferTTL),
		SuccessURL:       s.config.BaseURL + "/tickets/purchase-success?session_id=" + checkoutSessionIDPlaceholder,
		CancelURL:        s.config.BaseURL + "/event/" + url.PathEscape(eventID),
		Metadata: domain.CheckoutMetadata{
			EventID:       eventID,
			UserID:        userID,
			WaitingListID: offer.ID,
		},
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return session, nil
}

func checkoutFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEventNotFound):
		return "event_not_found"
	case errors.Is(err, domain.ErrEventCancelled):
		return "event_cancelled"
	case errors.Is(err, domain.ErrNoValidOffer):
		return "no_valid_offer"
	case errors.Is(err, domain.ErrConnectAccountNotFound):
		return "connect_account_not_found"
	case errors.Is(err, domain.ErrOfferNoExpiration):
		return "offer_no_expiration"
	case errors.Is(err, domain.ErrOfferExpired):
		return "offer_expired"
	default:
		return "upstream"
	}
}
