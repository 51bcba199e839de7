package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prohmpiriya/offer-checkout/pkg/retry"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Record is a Kafka record as delivered by franz-go
type Record = kgo.Record

// ProducerConfig holds configuration for the producer
type ProducerConfig struct {
	Brokers       []string
	ClientID      string
	MaxRetries    int
	RetryInterval time.Duration
}

// JSONProducer is implemented by Producer and by test fakes
type JSONProducer interface {
	ProduceJSON(ctx context.Context, topic string, key string, data interface{}, headers map[string]string) error
}

// Producer publishes JSON messages
type Producer struct {
	client *kgo.Client
}

// NewProducer connects to the brokers, pinging with retry until reachable
func NewProducer(ctx context.Context, cfg *ProducerConfig) (*Producer, error) {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	if err := ping(ctx, client, cfg.MaxRetries, cfg.RetryInterval); err != nil {
		client.Close()
		return nil, err
	}

	return &Producer{client: client}, nil
}

func ping(ctx context.Context, client *kgo.Client, maxRetries int, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	result := retry.Do(ctx, retry.Fixed(maxRetries, interval), func(ctx context.Context) error {
		return client.Ping(ctx)
	})
	if result.Err != nil {
		return fmt.Errorf("failed to ping kafka after %d attempts: %w", result.Attempts, result.LastError)
	}
	return nil
}

// ProduceJSON marshals data and produces it synchronously
func (p *Producer) ProduceJSON(ctx context.Context, topic string, key string, data interface{}, headers map[string]string) error {
	value, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}
	for k, v := range headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending records and closes the client
func (p *Producer) Close() {
	_ = p.client.Flush(context.Background())
	p.client.Close()
}
