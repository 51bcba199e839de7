package retry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type recordingProducer struct {
	topic   string
	key     string
	data    interface{}
	headers map[string]string
	err     error
}

func (p *recordingProducer) ProduceJSON(ctx context.Context, topic string, key string, data interface{}, headers map[string]string) error {
	p.topic = topic
	p.key = key
	p.data = data
	p.headers = headers
	return p.err
}

func TestDLQPublisher_Publish(t *testing.T) {
	producer := &recordingProducer{}
	publisher := NewDLQPublisher(producer, "refund-worker")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	publisher.now = func() time.Time { return fixed }

	msg := &DLQMessage{
		OriginalTopic: "event.cancel.requested",
		OriginalKey:   "evt-1",
		Payload:       json.RawMessage(`{"broken":`),
		Headers:       map[string]string{"request_id": "req-1", "source": "admin"},
		Error:         "invalid payload",
		Attempts:      1,
	}

	if err := publisher.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if producer.topic != "event.cancel.requested.dlq" {
		t.Errorf("topic = %s, want event.cancel.requested.dlq", producer.topic)
	}
	if producer.key != "evt-1" {
		t.Errorf("key = %s, want evt-1", producer.key)
	}
	if producer.headers["source"] != "refund-worker" {
		t.Errorf("source header = %s, want refund-worker", producer.headers["source"])
	}
	if producer.headers["original_request_id"] != "req-1" {
		t.Errorf("original_request_id header = %s, want req-1", producer.headers["original_request_id"])
	}
	if !msg.MovedToDLQAt.Equal(fixed) {
		t.Errorf("MovedToDLQAt = %v, want %v", msg.MovedToDLQAt, fixed)
	}
}

func TestDLQPublisher_PublishNil(t *testing.T) {
	publisher := NewDLQPublisher(&recordingProducer{}, "test")
	if err := publisher.Publish(context.Background(), nil); err == nil {
		t.Error("Publish(nil) should fail")
	}
}

func TestDLQPublisher_ProducerError(t *testing.T) {
	wantErr := errors.New("broker down")
	publisher := NewDLQPublisher(&recordingProducer{err: wantErr}, "test")

	err := publisher.Publish(context.Background(), &DLQMessage{OriginalTopic: "t"})
	if !errors.Is(err, wantErr) {
		t.Errorf("Publish() error = %v, want %v", err, wantErr)
	}
}
