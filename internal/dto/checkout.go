package dto

import (
	"time"

	"github.com/prohmpiriya/offer-checkout/internal/domain"
)

// CheckoutSessionResponse is returned by POST /events/:eventId/checkout
type CheckoutSessionResponse struct {
	SessionID  string    `json:"session_id"`
	SessionURL string    `json:"session_url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// FromCheckoutSession converts a domain checkout session
func FromCheckoutSession(s *domain.CheckoutSession) *CheckoutSessionResponse {
	return &CheckoutSessionResponse{
		SessionID:  s.SessionID,
		SessionURL: s.URL,
		ExpiresAt:  s.ExpiresAt,
	}
}

// CancelEventResponse is returned by POST /events/:eventId/cancel
type CancelEventResponse struct {
	EventID         string `json:"event_id"`
	Status          string `json:"status"`
	RefundedTickets int    `json:"refunded_tickets"`
}

// RefundFailureDetails lists the tickets a cancellation could not refund
type RefundFailureDetails struct {
	EventID       string   `json:"event_id"`
	Total         int      `json:"total"`
	FailedTickets []string `json:"failed_tickets"`
}

// TicketResponse is the public view of a ticket
type TicketResponse struct {
	ID              string    `json:"id"`
	EventID         string    `json:"event_id"`
	Status          string    `json:"status"`
	Amount          int64     `json:"amount"`
	PaymentIntentID string    `json:"payment_intent_id"`
	PurchasedAt     time.Time `json:"purchased_at"`
}

// FromTicket converts a domain ticket
func FromTicket(t *domain.Ticket) *TicketResponse {
	return &TicketResponse{
		ID:              t.ID,
		EventID:         t.EventID,
		Status:          string(t.Status),
		Amount:          t.Amount,
		PaymentIntentID: t.PaymentIntentID,
		PurchasedAt:     t.PurchasedAt,
	}
}

// ConnectAccountResponse carries a connect account id, empty when none exists
type ConnectAccountResponse struct {
	AccountID string `json:"account_id"`
}

// LinkResponse carries a processor-hosted URL
type LinkResponse struct {
	URL string `json:"url"`
}
