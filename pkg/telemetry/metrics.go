package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Counter is a named int64 counter on the global meter provider
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a counter. A meter error yields a no-op counter.
func NewCounter(meterName, name, description string) *Counter {
	c, err := otel.Meter(meterName).Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return &Counter{}
	}
	return &Counter{counter: c}
}

// Add increments the counter by n
func (c *Counter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	if c == nil || c.counter == nil {
		return
	}
	c.counter.Add(ctx, n, metric.WithAttributes(attrs...))
}

// Histogram is a named float64 histogram on the global meter provider
type Histogram struct {
	hist metric.Float64Histogram
}

// NewHistogram creates a histogram with the given unit
func NewHistogram(meterName, name, description, unit string) *Histogram {
	h, err := otel.Meter(meterName).Float64Histogram(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return &Histogram{}
	}
	return &Histogram{hist: h}
}

// Record records one observation
func (h *Histogram) Record(ctx context.Context, v float64, attrs ...attribute.KeyValue) {
	if h == nil || h.hist == nil {
		return
	}
	h.hist.Record(ctx, v, metric.WithAttributes(attrs...))
}
