package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/prohmpiriya/offer-checkout/internal/dto"
	"github.com/prohmpiriya/offer-checkout/internal/service"
	"github.com/prohmpiriya/offer-checkout/pkg/kafka"
	"github.com/prohmpiriya/offer-checkout/pkg/logger"
	"github.com/prohmpiriya/offer-checkout/pkg/retry"
	"go.uber.org/zap"
)

// RecordSource is the part of a group consumer the worker polls and commits through
type RecordSource interface {
	Poll(ctx context.Context) ([]*kafka.Record, error)
	Commit(ctx context.Context, records ...*kafka.Record) error
}

// DeadLetterPublisher receives records that could not be processed
type DeadLetterPublisher interface {
	Publish(ctx context.Context, msg *retry.DLQMessage) error
}

// CancelConsumerConfig contains configuration for the cancel consumer
type CancelConsumerConfig struct {
	// Retry controls how often a failed cancellation is attempted again
	// before it is moved to the DLQ
	Retry *retry.Config
	// ProcessTimeout bounds a single cancellation including its retries
	ProcessTimeout time.Duration
	// PollBackoff is the pause after a failed poll
	PollBackoff time.Duration
}

// DefaultCancelConsumerConfig returns default configuration
func DefaultCancelConsumerConfig() *CancelConsumerConfig {
	return &CancelConsumerConfig{
		Retry: &retry.Config{
			MaxRetries:      3,
			InitialInterval: 2 * time.Second,
			MaxInterval:     30 * time.Second,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		},
		ProcessTimeout: 2 * time.Minute,
		PollBackoff:    time.Second,
	}
}

// CancelConsumer runs queued event cancellations. Records are handled one at
// a time so a committed offset never passes an unprocessed cancellation.
type CancelConsumer struct {
	source        RecordSource
	dlq           DeadLetterPublisher
	refundService service.RefundService
	config        *CancelConsumerConfig
	log           *logger.Logger

	mu      sync.Mutex
	running bool
}

// NewCancelConsumer creates a new cancel consumer
func NewCancelConsumer(
	source RecordSource,
	dlq DeadLetterPublisher,
	refundService service.RefundService,
	config *CancelConsumerConfig,
) *CancelConsumer {
	if config == nil {
		config = DefaultCancelConsumerConfig()
	}
	if config.PollBackoff <= 0 {
		config.PollBackoff = time.Second
	}
	return &CancelConsumer{
		source:        source,
		dlq:           dlq,
		refundService: refundService,
		config:        config,
		log:           logger.Get().With(zap.String("component", "cancel_consumer")),
	}
}

// Run polls until ctx is done or the client is closed
func (c *CancelConsumer) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer is already running")
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	c.log.Info("Cancel consumer started", zap.String("topic", dto.TopicEventCancelRequested))

	for {
		records, err := c.source.Poll(ctx)
		if errors.Is(err, kafka.ErrClientClosed) || ctx.Err() != nil {
			c.log.Info("Cancel consumer stopped")
			return nil
		}
		if err != nil {
			c.log.Error("Failed to poll records", zap.Error(err))
		}

		for _, record := range records {
			if ctx.Err() != nil {
				return nil
			}
			c.processRecord(ctx, record)
		}

		if err != nil && len(records) == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.config.PollBackoff):
			}
		}
	}
}

// processRecord handles one record and commits it unless shutdown interrupted
// the work, in which case the record is redelivered after restart
func (c *CancelConsumer) processRecord(ctx context.Context, record *kafka.Record) {
	log := c.log.With(zap.String("key", string(record.Key)), zap.Int64("offset", record.Offset))

	var req dto.EventCancelRequest
	if err := json.Unmarshal(record.Value, &req); err != nil || req.EventID == "" {
		if err == nil {
			err = fmt.Errorf("event_id is required")
		}
		log.Error("Invalid cancel request", zap.Error(err))
		c.deadLetter(ctx, record, err, 1)
		c.commit(ctx, record)
		return
	}
	log = log.With(zap.String("event_id", req.EventID))

	processCtx := ctx
	if c.config.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		processCtx, cancel = context.WithTimeout(ctx, c.config.ProcessTimeout)
		defer cancel()
	}

	result := retry.Do(processCtx, c.config.Retry, func(ctx context.Context) error {
		res, err := c.refundService.CancelEvent(ctx, req.EventID, req.RequestedBy)
		if err != nil {
			if !isRetryable(err) {
				return retry.Permanent(err)
			}
			log.Warn("Cancellation attempt failed", zap.Error(err))
			return err
		}
		log.Info("Event cancelled", zap.Int("refunded_tickets", res.Refunded))
		return nil
	})

	if result.Err != nil {
		if ctx.Err() != nil {
			return
		}
		cause := result.LastError
		if cause == nil {
			cause = result.Err
		}
		log.Error("Cancellation failed", zap.Int("attempts", result.Attempts), zap.Error(cause))
		c.deadLetter(ctx, record, cause, result.Attempts)
	}

	c.commit(ctx, record)
}

func (c *CancelConsumer) deadLetter(ctx context.Context, record *kafka.Record, cause error, attempts int) {
	if c.dlq == nil {
		return
	}
	headers := make(map[string]string, len(record.Headers))
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	payload := json.RawMessage(record.Value)
	if !json.Valid(record.Value) {
		payload, _ = json.Marshal(string(record.Value))
	}
	if err := c.dlq.Publish(ctx, &retry.DLQMessage{
		OriginalTopic: record.Topic,
		OriginalKey:   string(record.Key),
		Payload:       payload,
		Headers:       headers,
		Error:         cause.Error(),
		Attempts:      attempts,
	}); err != nil {
		c.log.Error("Failed to publish to DLQ", zap.String("topic", record.Topic), zap.Error(err))
	}
}

func (c *CancelConsumer) commit(ctx context.Context, record *kafka.Record) {
	if err := c.source.Commit(ctx, record); err != nil {
		c.log.Error("Failed to commit record", zap.Int64("offset", record.Offset), zap.Error(err))
	}
}

// isRetryable reports whether another attempt could succeed. Refund failures
// are retried since refunds are idempotent per ticket.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrEventNotFound),
		errors.Is(err, domain.ErrNotEventOwner),
		errors.Is(err, domain.ErrConnectAccountNotFound):
		return false
	}
	return true
}
