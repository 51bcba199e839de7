package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/prohmpiriya/offer-checkout/internal/dto"
	"github.com/prohmpiriya/offer-checkout/internal/gateway"
	"github.com/prohmpiriya/offer-checkout/internal/metrics"
	"github.com/prohmpiriya/offer-checkout/internal/repository"
	"github.com/prohmpiriya/offer-checkout/pkg/logger"
	"github.com/prohmpiriya/offer-checkout/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RefundService cancels events, refunding every valid ticket first
type RefundService interface {
	// CancelEvent refunds every valid ticket of the event and, only when all
	// refunds succeed, marks the event cancelled. A non-empty requestedBy must
	// be the event owner.
	CancelEvent(ctx context.Context, eventID, requestedBy string) (*CancelResult, error)

	// RequestCancel checks ownership and queues the cancellation for the
	// refund worker
	RequestCancel(ctx context.Context, eventID, requestedBy string) error
}

// CancelResult summarizes a completed cancellation
type CancelResult struct {
	EventID  string
	Refunded int
}

// RefundServiceConfig contains configuration for the refund service
type RefundServiceConfig struct {
	// Concurrency bounds in-flight refunds. 0 means unbounded.
	Concurrency int
}

type refundService struct {
	backend        repository.Backend
	gateway        gateway.PaymentGateway
	eventPublisher EventPublisher
	config         *RefundServiceConfig
}

// NewRefundService creates a new RefundService
func NewRefundService(
	backend repository.Backend,
	gw gateway.PaymentGateway,
	eventPublisher EventPublisher,
	config *RefundServiceConfig,
) RefundService {
	if config == nil {
		config = &RefundServiceConfig{}
	}
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	return &refundService{
		backend:        backend,
		gateway:        gw,
		eventPublisher: eventPublisher,
		config:         config,
	}
}

// RefundIdempotencyKey is the processor idempotency key for a ticket refund
func RefundIdempotencyKey(ticketID string) string {
	return "refund-" + ticketID
}

// CancelEvent settles every refund before deciding
func (s *refundService) CancelEvent(ctx context.Context, eventID, requestedBy string) (*CancelResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.refund.cancel_event")
	defer span.End()
	span.SetAttributes(attribute.String("event_id", eventID))

	log := logger.Get().With(zap.String("event_id", eventID))

	event, err := s.backend.GetEvent(ctx, eventID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if requestedBy != "" && event.OwnerID != requestedBy {
		return nil, domain.ErrNotEventOwner
	}

	connectID, err := s.backend.GetConnectAccountID(ctx, event.OwnerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load connect account: %w", err)
	}
	if connectID == "" {
		return nil, domain.ErrConnectAccountNotFound
	}

	tickets, err := s.backend.GetValidTickets(ctx, eventID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load tickets: %w", err)
	}
	span.SetAttributes(attribute.Int("ticket_count", len(tickets)))

	outcomes := s.refundAll(ctx, connectID, tickets)

	failed := 0
	for _, o := range outcomes {
		if !o.Succeeded() {
			failed++
			log.Warn("Ticket refund failed", zap.String("ticket_id", o.TicketID), zap.Error(o.Err))
		}
	}
	metrics.RecordRefunds(ctx, eventID, len(outcomes)-failed, failed)

	if aggErr := domain.NewRefundAggregateError(eventID, outcomes); aggErr != nil {
		telemetry.RecordError(span, aggErr)
		metrics.RecordCancelFailed(ctx, eventID)
		if err := s.eventPublisher.PublishEventCancelFailed(ctx, eventID, aggErr); err != nil {
			log.Warn("Failed to publish event cancel failed event", zap.Error(err))
		}
		return nil, aggErr
	}

	if err := s.backend.CancelEvent(ctx, eventID); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to cancel event: %w", err)
	}

	metrics.RecordEventCancelled(ctx, eventID)
	log.Info("Event cancelled", zap.Int("refunded_tickets", len(outcomes)))

	if err := s.eventPublisher.PublishEventCancelled(ctx, eventID, len(outcomes)); err != nil {
		log.Warn("Failed to publish event cancelled event", zap.Error(err))
	}

	return &CancelResult{EventID: eventID, Refunded: len(outcomes)}, nil
}

func (s *refundService) RequestCancel(ctx context.Context, eventID, requestedBy string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.refund.request_cancel")
	defer span.End()
	span.SetAttributes(attribute.String("event_id", eventID))

	event, err := s.backend.GetEvent(ctx, eventID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if requestedBy != "" && event.OwnerID != requestedBy {
		return domain.ErrNotEventOwner
	}
	if event.Status == domain.EventStatusCancelled {
		return domain.ErrEventCancelled
	}

	if err := s.eventPublisher.PublishCancelRequested(ctx, &dto.EventCancelRequest{
		EventID:     eventID,
		RequestedBy: requestedBy,
	}); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to queue cancellation: %w", err)
	}

	logger.Get().Info("Event cancellation queued", zap.String("event_id", eventID))
	return nil
}

// refundAll refunds every ticket and waits for all of them. Outcomes keep
// the order of tickets; one failure never stops the others.
func (s *refundService) refundAll(ctx context.Context, connectID string, tickets []*domain.Ticket) []domain.RefundOutcome {
	outcomes := make([]domain.RefundOutcome, len(tickets))

	var g errgroup.Group
	if s.config.Concurrency > 0 {
		g.SetLimit(s.config.Concurrency)
	}

	for i, ticket := range tickets {
		i, ticket := i, ticket
		g.Go(func() error {
			outcomes[i] = s.refundTicket(ctx, connectID, ticket)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *refundService) refundTicket(ctx context.Context, connectID string, ticket *domain.Ticket) domain.RefundOutcome {
	outcome := domain.RefundOutcome{TicketID: ticket.ID}

	if ticket.PaymentIntentID == "" {
		outcome.Err = fmt.Errorf("ticket %s: %w", ticket.ID, domain.ErrMissingPaymentIntent)
		return outcome
	}

	resp, err := s.gateway.CreateRefund(ctx, &gateway.RefundRequest{
		ConnectAccountID: connectID,
		PaymentIntentID:  ticket.PaymentIntentID,
		IdempotencyKey:   RefundIdempotencyKey(ticket.ID),
		Metadata: map[string]string{
			"ticketId": ticket.ID,
			"eventId":  ticket.EventID,
		},
	})
	if err != nil {
		outcome.Err = fmt.Errorf("ticket %s: %w", ticket.ID, err)
		return outcome
	}
	outcome.RefundID = resp.RefundID

	if err := s.backend.SetTicketStatus(ctx, ticket.ID, domain.TicketStatusRefunded); err != nil {
		outcome.Err = fmt.Errorf("ticket %s: refunded as %s but status update failed: %w", ticket.ID, resp.RefundID, err)
	}
	return outcome
}

func asRefundAggregate(err error) (*domain.RefundAggregateError, bool) {
	var agg *domain.RefundAggregateError
	if errors.As(err, &agg) {
		return agg, true
	}
	return nil, false
}
