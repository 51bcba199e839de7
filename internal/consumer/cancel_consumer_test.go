package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/prohmpiriya/offer-checkout/internal/dto"
	"github.com/prohmpiriya/offer-checkout/internal/service"
	"github.com/prohmpiriya/offer-checkout/pkg/kafka"
	"github.com/prohmpiriya/offer-checkout/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

// fakeSource hands out queued batches once, then blocks until ctx is done
type fakeSource struct {
	mu        sync.Mutex
	batches   [][]*kafka.Record
	committed []int64
}

func (s *fakeSource) Poll(ctx context.Context) ([]*kafka.Record, error) {
	s.mu.Lock()
	if len(s.batches) > 0 {
		batch := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return batch, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *fakeSource) Commit(ctx context.Context, records ...*kafka.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.committed = append(s.committed, r.Offset)
	}
	return nil
}

func (s *fakeSource) committedOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

type fakeDLQ struct {
	mu       sync.Mutex
	messages []*retry.DLQMessage
}

func (d *fakeDLQ) Publish(ctx context.Context, msg *retry.DLQMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	return nil
}

// MockRefundService is a testify mock of service.RefundService
type MockRefundService struct {
	mock.Mock
}

func (m *MockRefundService) CancelEvent(ctx context.Context, eventID, requestedBy string) (*service.CancelResult, error) {
	args := m.Called(ctx, eventID, requestedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CancelResult), args.Error(1)
}

func (m *MockRefundService) RequestCancel(ctx context.Context, eventID, requestedBy string) error {
	args := m.Called(ctx, eventID, requestedBy)
	return args.Error(0)
}

func cancelRecord(t *testing.T, offset int64, eventID string) *kafka.Record {
	t.Helper()
	value, err := json.Marshal(&dto.EventCancelRequest{EventID: eventID, RequestedBy: "owner"})
	require.NoError(t, err)
	return &kafka.Record{
		Topic:   dto.TopicEventCancelRequested,
		Key:     []byte(eventID),
		Value:   value,
		Offset:  offset,
		Headers: []kgo.RecordHeader{{Key: "event_type", Value: []byte(dto.TopicEventCancelRequested)}},
	}
}

func testConfig() *CancelConsumerConfig {
	return &CancelConsumerConfig{
		Retry:          retry.Fixed(2, time.Millisecond),
		ProcessTimeout: time.Second,
		PollBackoff:    time.Millisecond,
	}
}

// runUntilCommitted runs the consumer until n records are committed
func runUntilCommitted(t *testing.T, c *CancelConsumer, source *fakeSource, n int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(source.committedOffsets()) >= n
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestCancelConsumer_CancelsAndCommits(t *testing.T) {
	source := &fakeSource{batches: [][]*kafka.Record{{cancelRecord(t, 10, "E1"), cancelRecord(t, 11, "E2")}}}
	dlq := &fakeDLQ{}
	svc := new(MockRefundService)
	svc.On("CancelEvent", mock.Anything, "E1", "owner").Return(&service.CancelResult{EventID: "E1", Refunded: 2}, nil)
	svc.On("CancelEvent", mock.Anything, "E2", "owner").Return(&service.CancelResult{EventID: "E2"}, nil)

	runUntilCommitted(t, NewCancelConsumer(source, dlq, svc, testConfig()), source, 2)

	assert.Equal(t, []int64{10, 11}, source.committedOffsets())
	assert.Empty(t, dlq.messages)
	svc.AssertExpectations(t)
}

func TestCancelConsumer_RetriesRefundFailures(t *testing.T) {
	agg := domain.NewRefundAggregateError("E1", []domain.RefundOutcome{{TicketID: "T1", Err: errors.New("declined")}})
	source := &fakeSource{batches: [][]*kafka.Record{{cancelRecord(t, 5, "E1")}}}
	dlq := &fakeDLQ{}
	svc := new(MockRefundService)
	svc.On("CancelEvent", mock.Anything, "E1", "owner").Return(nil, agg).Once()
	svc.On("CancelEvent", mock.Anything, "E1", "owner").Return(&service.CancelResult{EventID: "E1", Refunded: 1}, nil).Once()

	runUntilCommitted(t, NewCancelConsumer(source, dlq, svc, testConfig()), source, 1)

	svc.AssertNumberOfCalls(t, "CancelEvent", 2)
	assert.Empty(t, dlq.messages)
}

func TestCancelConsumer_ExhaustedRetriesGoToDLQ(t *testing.T) {
	agg := domain.NewRefundAggregateError("E1", []domain.RefundOutcome{{TicketID: "T1", Err: errors.New("declined")}})
	source := &fakeSource{batches: [][]*kafka.Record{{cancelRecord(t, 7, "E1")}}}
	dlq := &fakeDLQ{}
	svc := new(MockRefundService)
	svc.On("CancelEvent", mock.Anything, "E1", "owner").Return(nil, agg)

	runUntilCommitted(t, NewCancelConsumer(source, dlq, svc, testConfig()), source, 1)

	svc.AssertNumberOfCalls(t, "CancelEvent", 3)
	require.Len(t, dlq.messages, 1)
	msg := dlq.messages[0]
	assert.Equal(t, dto.TopicEventCancelRequested, msg.OriginalTopic)
	assert.Equal(t, "E1", msg.OriginalKey)
	assert.Equal(t, 3, msg.Attempts)
	assert.Contains(t, msg.Error, "1 of 1")
	assert.Equal(t, dto.TopicEventCancelRequested, msg.Headers["event_type"])
}

func TestCancelConsumer_PermanentErrorsSkipRetries(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "event not found", err: domain.ErrEventNotFound},
		{name: "not owner", err: domain.ErrNotEventOwner},
		{name: "no connect account", err: domain.ErrConnectAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{batches: [][]*kafka.Record{{cancelRecord(t, 1, "E1")}}}
			dlq := &fakeDLQ{}
			svc := new(MockRefundService)
			svc.On("CancelEvent", mock.Anything, "E1", "owner").Return(nil, tt.err)

			runUntilCommitted(t, NewCancelConsumer(source, dlq, svc, testConfig()), source, 1)

			svc.AssertNumberOfCalls(t, "CancelEvent", 1)
			require.Len(t, dlq.messages, 1)
			assert.Equal(t, 1, dlq.messages[0].Attempts)
		})
	}
}

func TestCancelConsumer_InvalidPayload(t *testing.T) {
	bad := &kafka.Record{Topic: dto.TopicEventCancelRequested, Value: []byte("not json"), Offset: 3}
	empty := &kafka.Record{Topic: dto.TopicEventCancelRequested, Value: []byte(`{"requested_by":"owner"}`), Offset: 4}
	source := &fakeSource{batches: [][]*kafka.Record{{bad, empty}}}
	dlq := &fakeDLQ{}
	svc := new(MockRefundService)

	runUntilCommitted(t, NewCancelConsumer(source, dlq, svc, testConfig()), source, 2)

	assert.Equal(t, []int64{3, 4}, source.committedOffsets())
	require.Len(t, dlq.messages, 2)
	assert.JSONEq(t, `"not json"`, string(dlq.messages[0].Payload))
	svc.AssertNotCalled(t, "CancelEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelConsumer_RunTwice(t *testing.T) {
	source := &fakeSource{}
	c := NewCancelConsumer(source, nil, new(MockRefundService), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.running
	}, time.Second, time.Millisecond)

	assert.Error(t, c.Run(ctx))
	cancel()
	assert.NoError(t, <-done)
}
