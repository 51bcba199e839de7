package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// EventCheckoutSessionCompleted is the only webhook event type acted upon
const EventCheckoutSessionCompleted = "checkout.session.completed"

// WebhookVerifier authenticates webhook deliveries with the endpoint secret
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier creates a verifier for secret
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Verify checks the signature header against the raw body and parses the
// event. The API version of the event is not enforced so that account-level
// version upgrades do not break deliveries.
func (v *WebhookVerifier) Verify(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// CompletedCheckout is what reconciliation needs from a completed session
type CompletedCheckout struct {
	SessionID       string
	PaymentIntentID string
	AmountTotal     int64
	Metadata        domain.CheckoutMetadata
}

// ParseCompletedCheckout decodes a checkout.session.completed event
func ParseCompletedCheckout(event stripe.Event) (*CompletedCheckout, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	md, err := domain.ParseCheckoutMetadata(sess.Metadata)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sess.ID, err)
	}

	out := &CompletedCheckout{
		SessionID:   sess.ID,
		AmountTotal: sess.AmountTotal,
		Metadata:    md,
	}
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	return out, nil
}
