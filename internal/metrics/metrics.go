package metrics

import (
	"context"
	"sync"

	"github.com/prohmpiriya/offer-checkout/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

const meterName = "offer-checkout"

var (
	initOnce sync.Once

	// Checkout metrics
	CheckoutSessionsCreated *telemetry.Counter
	CheckoutSessionsFailed  *telemetry.Counter

	// Webhook metrics
	WebhooksReceived      *telemetry.Counter
	WebhooksRejected      *telemetry.Counter
	WebhooksFailed        *telemetry.Counter
	WebhookProcessingTime *telemetry.Histogram

	// Ticket metrics
	TicketsPurchased *telemetry.Counter

	// Refund metrics
	RefundsSucceeded *telemetry.Counter
	RefundsFailed    *telemetry.Counter
	EventsCancelled  *telemetry.Counter
	CancelsFailed    *telemetry.Counter
)

// Init creates every instrument on the global meter provider. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		CheckoutSessionsCreated = telemetry.NewCounter(meterName, "checkout_sessions_created_total", "Total number of checkout sessions created")
		CheckoutSessionsFailed = telemetry.NewCounter(meterName, "checkout_sessions_failed_total", "Total number of checkout session attempts that failed")

		WebhooksReceived = telemetry.NewCounter(meterName, "webhooks_received_total", "Total number of verified webhooks received")
		WebhooksRejected = telemetry.NewCounter(meterName, "webhooks_rejected_total", "Total number of webhooks rejected before processing")
		WebhooksFailed = telemetry.NewCounter(meterName, "webhooks_failed_total", "Total number of webhooks whose processing failed")
		WebhookProcessingTime = telemetry.NewHistogram(meterName, "webhook_processing_duration_seconds", "Webhook processing time in seconds", "s")

		TicketsPurchased = telemetry.NewCounter(meterName, "tickets_purchased_total", "Total number of tickets issued")

		RefundsSucceeded = telemetry.NewCounter(meterName, "refunds_succeeded_total", "Total number of ticket refunds that succeeded")
		RefundsFailed = telemetry.NewCounter(meterName, "refunds_failed_total", "Total number of ticket refunds that failed")
		EventsCancelled = telemetry.NewCounter(meterName, "events_cancelled_total", "Total number of events cancelled")
		CancelsFailed = telemetry.NewCounter(meterName, "event_cancels_failed_total", "Total number of cancellation attempts left with unrefunded tickets")
	})
}

// RecordCheckoutCreated records a created checkout session
func RecordCheckoutCreated(ctx context.Context, currency string) {
	CheckoutSessionsCreated.Add(ctx, 1, attribute.String("currency", currency))
}

// RecordCheckoutFailed records a failed checkout attempt
func RecordCheckoutFailed(ctx context.Context, reason string) {
	CheckoutSessionsFailed.Add(ctx, 1, attribute.String("reason", reason))
}

// RecordWebhookReceived records a verified webhook
func RecordWebhookReceived(ctx context.Context, eventType string) {
	WebhooksReceived.Add(ctx, 1, attribute.String("event_type", eventType))
}

// RecordWebhookRejected records a webhook rejected with 400
func RecordWebhookRejected(ctx context.Context, reason string) {
	WebhooksRejected.Add(ctx, 1, attribute.String("reason", reason))
}

// RecordWebhookProcessed records the processing time of a webhook
func RecordWebhookProcessed(ctx context.Context, eventType string, durationSeconds float64) {
	WebhookProcessingTime.Record(ctx, durationSeconds, attribute.String("event_type", eventType))
}

// RecordWebhookFailed records a webhook answered with 500
func RecordWebhookFailed(ctx context.Context, eventType string) {
	WebhooksFailed.Add(ctx, 1, attribute.String("event_type", eventType))
}

// RecordTicketPurchased records a newly issued ticket
func RecordTicketPurchased(ctx context.Context, eventID string) {
	TicketsPurchased.Add(ctx, 1, attribute.String("event_id", eventID))
}

// RecordRefunds records the outcome counts of one cancellation attempt
func RecordRefunds(ctx context.Context, eventID string, succeeded, failed int) {
	if succeeded > 0 {
		RefundsSucceeded.Add(ctx, int64(succeeded), attribute.String("event_id", eventID))
	}
	if failed > 0 {
		RefundsFailed.Add(ctx, int64(failed), attribute.String("event_id", eventID))
	}
}

// RecordEventCancelled records a completed cancellation
func RecordEventCancelled(ctx context.Context, eventID string) {
	EventsCancelled.Add(ctx, 1, attribute.String("event_id", eventID))
}

// RecordCancelFailed records a cancellation left incomplete
func RecordCancelFailed(ctx context.Context, eventID string) {
	CancelsFailed.Add(ctx, 1, attribute.String("event_id", eventID))
}
