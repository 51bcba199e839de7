package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/prohmpiriya/offer-checkout/internal/dto"
	"github.com/prohmpiriya/offer-checkout/pkg/kafka"
)

// ErrPublisherDisabled is returned for commands that need Kafka when it is off
var ErrPublisherDisabled = errors.New("event publishing is disabled")

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// PublishCancelRequested enqueues an event cancellation for the refund worker
	PublishCancelRequested(ctx context.Context, req *dto.EventCancelRequest) error

	// PublishTicketPurchased publishes a ticket purchased event
	PublishTicketPurchased(ctx context.Context, ticket *domain.Ticket) error

	// PublishEventCancelled publishes an event cancelled event
	PublishEventCancelled(ctx context.Context, eventID string, refunded int) error

	// PublishEventCancelFailed publishes a failed cancellation attempt
	PublishEventCancelFailed(ctx context.Context, eventID string, cause error) error

	// Close closes the event publisher
	Close() error
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer    kafka.JSONProducer
	serviceName string
	now         func() time.Time
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	ServiceName string
	ClientID    string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "offer-checkout"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = serviceName + "-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return NewEventPublisherFromProducer(producer, serviceName), nil
}

// NewEventPublisherFromProducer wraps an existing producer
func NewEventPublisherFromProducer(producer kafka.JSONProducer, serviceName string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		producer:    producer,
		serviceName: serviceName,
		now:         time.Now,
	}
}

// PublishCancelRequested enqueues an event cancellation
func (p *KafkaEventPublisher) PublishCancelRequested(ctx context.Context, req *dto.EventCancelRequest) error {
	if req.Timestamp.IsZero() {
		req.Timestamp = p.now().UTC()
	}
	return p.publish(ctx, dto.TopicEventCancelRequested, req.Key(), req)
}

// PublishTicketPurchased publishes a ticket purchased event
func (p *KafkaEventPublisher) PublishTicketPurchased(ctx context.Context, ticket *domain.Ticket) error {
	event := &dto.TicketPurchasedEvent{
		EventType:       dto.TopicTicketPurchased,
		TicketID:        ticket.ID,
		EventID:         ticket.EventID,
		UserID:          ticket.UserID,
		WaitingListID:   ticket.WaitingListID,
		PaymentIntentID: ticket.PaymentIntentID,
		Amount:          ticket.Amount,
		Timestamp:       p.now().UTC(),
	}
	return p.publish(ctx, dto.TopicTicketPurchased, event.Key(), event)
}

// PublishEventCancelled publishes an event cancelled event
func (p *KafkaEventPublisher) PublishEventCancelled(ctx context.Context, eventID string, refunded int) error {
	event := &dto.EventCancelledEvent{
		EventType:       dto.TopicEventCancelled,
		EventID:         eventID,
		RefundedTickets: refunded,
		Timestamp:       p.now().UTC(),
	}
	return p.publish(ctx, dto.TopicEventCancelled, event.Key(), event)
}

// PublishEventCancelFailed publishes a failed cancellation attempt
func (p *KafkaEventPublisher) PublishEventCancelFailed(ctx context.Context, eventID string, cause error) error {
	event := &dto.EventCancelFailedEvent{
		EventType: dto.TopicEventCancelFailed,
		EventID:   eventID,
		Timestamp: p.now().UTC(),
	}
	if cause != nil {
		event.Error = cause.Error()
		if agg, ok := asRefundAggregate(cause); ok {
			event.FailedTickets = agg.FailedTicketIDs()
		}
	}
	return p.publish(ctx, dto.TopicEventCancelFailed, event.Key(), event)
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if c, ok := p.producer.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}

func (p *KafkaEventPublisher) publish(ctx context.Context, topic, key string, event interface{}) error {
	headers := map[string]string{
		"event_type":   topic,
		"event_id":     uuid.New().String(),
		"source":       p.serviceName,
		"content_type": "application/json",
	}
	if err := p.producer.ProduceJSON(ctx, topic, key, event, headers); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", topic, err)
	}
	return nil
}

// NoOpEventPublisher is used when Kafka is disabled
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// PublishCancelRequested fails since nothing would consume the command
func (p *NoOpEventPublisher) PublishCancelRequested(ctx context.Context, req *dto.EventCancelRequest) error {
	return ErrPublisherDisabled
}

// PublishTicketPurchased is a no-op
func (p *NoOpEventPublisher) PublishTicketPurchased(ctx context.Context, ticket *domain.Ticket) error {
	return nil
}

// PublishEventCancelled is a no-op
func (p *NoOpEventPublisher) PublishEventCancelled(ctx context.Context, eventID string, refunded int) error {
	return nil
}

// PublishEventCancelFailed is a no-op
func (p *NoOpEventPublisher) PublishEventCancelFailed(ctx context.Context, eventID string, cause error) error {
	return nil
}

// Close is a no-op
func (p *NoOpEventPublisher) Close() error {
	return nil
}
