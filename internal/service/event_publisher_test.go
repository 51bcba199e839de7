package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/prohmpiriya/offer-checkout/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type producedMessage struct {
	topic   string
	key     string
	data    interface{}
	headers map[string]string
}

type fakeProducer struct {
	mu       sync.Mutex
	messages []producedMessage
	err      error
}

func (p *fakeProducer) ProduceJSON(ctx context.Context, topic string, key string, data interface{}, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, producedMessage{topic: topic, key: key, data: data, headers: headers})
	return nil
}

func newTestPublisher(producer *fakeProducer) *KafkaEventPublisher {
	pub := NewEventPublisherFromProducer(producer, "offer-checkout")
	pub.now = func() time.Time { return testNow }
	return pub
}

func TestKafkaEventPublisher_TicketPurchased(t *testing.T) {
	producer := &fakeProducer{}
	pub := newTestPublisher(producer)

	err := pub.PublishTicketPurchased(context.Background(), &domain.Ticket{
		ID: "T1", EventID: "E1", UserID: "buyer", WaitingListID: "W1", PaymentIntentID: "pi_1", Amount: 50000,
	})
	require.NoError(t, err)
	require.Len(t, producer.messages, 1)

	msg := producer.messages[0]
	assert.Equal(t, dto.TopicTicketPurchased, msg.topic)
	assert.Equal(t, "E1", msg.key)
	assert.Equal(t, "offer-checkout", msg.headers["source"])
	assert.NotEmpty(t, msg.headers["event_id"])

	event, ok := msg.data.(*dto.TicketPurchasedEvent)
	require.True(t, ok)
	assert.Equal(t, "T1", event.TicketID)
	assert.Equal(t, int64(50000), event.Amount)
	assert.Equal(t, testNow, event.Timestamp)
}

func TestKafkaEventPublisher_CancelFailedCarriesTickets(t *testing.T) {
	producer := &fakeProducer{}
	pub := newTestPublisher(producer)

	cause := domain.NewRefundAggregateError("E1", []domain.RefundOutcome{
		{TicketID: "T2", Err: errors.New("declined")},
		{TicketID: "T1", RefundID: "re_1"},
	})
	require.NoError(t, pub.PublishEventCancelFailed(context.Background(), "E1", cause))

	event := producer.messages[0].data.(*dto.EventCancelFailedEvent)
	assert.Equal(t, dto.TopicEventCancelFailed, producer.messages[0].topic)
	assert.Equal(t, []string{"T2"}, event.FailedTickets)
	assert.Contains(t, event.Error, "failed to refund 1 of 2 tickets")
}

func TestKafkaEventPublisher_EventCancelled(t *testing.T) {
	producer := &fakeProducer{}
	pub := newTestPublisher(producer)

	require.NoError(t, pub.PublishEventCancelled(context.Background(), "E1", 3))
	event := producer.messages[0].data.(*dto.EventCancelledEvent)
	assert.Equal(t, 3, event.RefundedTickets)
}

func TestKafkaEventPublisher_ProducerError(t *testing.T) {
	pub := newTestPublisher(&fakeProducer{err: errors.New("not leader")})
	err := pub.PublishEventCancelled(context.Background(), "E1", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish event.cancelled event")
}

func TestNewKafkaEventPublisher_Validation(t *testing.T) {
	_, err := NewKafkaEventPublisher(context.Background(), nil)
	assert.Error(t, err)
	_, err = NewKafkaEventPublisher(context.Background(), &EventPublisherConfig{})
	assert.Error(t, err)
}

func TestNoOpEventPublisher(t *testing.T) {
	pub := NewNoOpEventPublisher()
	ctx := context.Background()
	assert.NoError(t, pub.PublishTicketPurchased(ctx, &domain.Ticket{}))
	assert.NoError(t, pub.PublishEventCancelled(ctx, "E1", 0))
	assert.NoError(t, pub.PublishEventCancelFailed(ctx, "E1", nil))
	assert.NoError(t, pub.Close())
}
