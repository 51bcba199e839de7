package service

import (
	"context"
	"fmt"

	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/prohmpiriya/offer-checkout/internal/metrics"
	"github.com/prohmpiriya/offer-checkout/internal/repository"
	"github.com/prohmpiriya/offer-checkout/pkg/logger"
	"github.com/prohmpiriya/offer-checkout/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PurchaseService turns completed payments into tickets
type PurchaseService interface {
	// CompletePurchase issues the ticket for a completed checkout. Redelivery
	// of the same completion returns the already issued ticket.
	CompletePurchase(ctx context.Context, req *CompletePurchaseRequest) (*domain.Ticket, error)

	// LatestTicket returns the user's most recently purchased ticket
	LatestTicket(ctx context.Context, userID string) (*domain.Ticket, error)
}

// CompletePurchaseRequest is what a completed checkout carries
type CompletePurchaseRequest struct {
	SessionID       string
	PaymentIntentID string
	AmountTotal     int64
	Metadata        domain.CheckoutMetadata
}

type purchaseService struct {
	backend        repository.Backend
	eventPublisher EventPublisher
}

// NewPurchaseService creates a new PurchaseService
func NewPurchaseService(backend repository.Backend, eventPublisher EventPublisher) PurchaseService {
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	return &purchaseService{
		backend:        backend,
		eventPublisher: eventPublisher,
	}
}

// CompletePurchase commits the purchase in one backend call
func (s *purchaseService) CompletePurchase(ctx context.Context, req *CompletePurchaseRequest) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.purchase.complete")
	defer span.End()

	if req == nil {
		return nil, domain.ErrInvalidMetadata
	}
	span.SetAttributes(
		attribute.String("session_id", req.SessionID),
		attribute.String("event_id", req.Metadata.EventID),
		attribute.String("waiting_list_id", req.Metadata.WaitingListID),
	)

	result, err := s.backend.CommitPurchase(ctx, domain.Purchase{
		EventID:         req.Metadata.EventID,
		UserID:          req.Metadata.UserID,
		WaitingListID:   req.Metadata.WaitingListID,
		PaymentIntentID: req.PaymentIntentID,
		Amount:          req.AmountTotal,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to commit purchase for session %s: %w", req.SessionID, err)
	}

	log := logger.Get().With(
		zap.String("session_id", req.SessionID),
		zap.String("ticket_id", result.Ticket.ID),
		zap.String("event_id", result.Ticket.EventID),
	)

	if !result.Created {
		log.Info("Checkout completion already reconciled")
		return result.Ticket, nil
	}

	metrics.RecordTicketPurchased(ctx, result.Ticket.EventID)
	log.Info("Ticket purchased")

	if err := s.eventPublisher.PublishTicketPurchased(ctx, result.Ticket); err != nil {
		log.Warn("Failed to publish ticket purchased event", zap.Error(err))
	}

	return result.Ticket, nil
}

// LatestTicket returns the user's most recently purchased ticket
func (s *purchaseService) LatestTicket(ctx context.Context, userID string) (*domain.Ticket, error) {
	return s.backend.GetLatestUserTicket(ctx, userID)
}
