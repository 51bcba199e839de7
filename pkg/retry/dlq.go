package retry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DLQMessage wraps a message that could not be processed
type DLQMessage struct {
	OriginalTopic string            `json:"original_topic"`
	OriginalKey   string            `json:"original_key"`
	Payload       json.RawMessage   `json:"payload"`
	Headers       map[string]string `json:"headers,omitempty"`
	Error         string            `json:"error"`
	Attempts      int               `json:"attempts"`
	MovedToDLQAt  time.Time         `json:"moved_to_dlq_at"`
	Source        string            `json:"source"`
}

// JSONProducer is the subset of a Kafka producer the DLQ needs
type JSONProducer interface {
	ProduceJSON(ctx context.Context, topic string, key string, data interface{}, headers map[string]string) error
}

// DLQPublisher publishes failed messages to "<topic>.dlq"
type DLQPublisher struct {
	producer JSONProducer
	source   string
	now      func() time.Time
}

// NewDLQPublisher creates a DLQ publisher. source names the service in the envelope.
func NewDLQPublisher(producer JSONProducer, source string) *DLQPublisher {
	return &DLQPublisher{
		producer: producer,
		source:   source,
		now:      time.Now,
	}
}

// Topic returns the DLQ topic for an original topic
func (p *DLQPublisher) Topic(originalTopic string) string {
	return originalTopic + ".dlq"
}

// Publish sends msg to the DLQ topic of its original topic
func (p *DLQPublisher) Publish(ctx context.Context, msg *DLQMessage) error {
	if msg == nil {
		return fmt.Errorf("DLQ message cannot be nil")
	}

	msg.MovedToDLQAt = p.now().UTC()
	msg.Source = p.source

	headers := map[string]string{
		"content_type":   "application/json",
		"original_topic": msg.OriginalTopic,
		"error":          msg.Error,
		"attempts":       strconv.Itoa(msg.Attempts),
		"source":         msg.Source,
	}
	for k, v := range msg.Headers {
		if _, exists := headers[k]; !exists {
			headers["original_"+k] = v
		}
	}

	return p.producer.ProduceJSON(ctx, p.Topic(msg.OriginalTopic), msg.OriginalKey, msg, headers)
}
