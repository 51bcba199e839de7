package dto

import (
	"time"
)

// Kafka topics
const (
	TopicTicketPurchased      = "ticket.purchased"
	TopicEventCancelRequested = "event.cancel.requested"
	TopicEventCancelled       = "event.cancelled"
	TopicEventCancelFailed    = "event.cancel.failed"
)

// TicketPurchasedEvent is published after a completed checkout is reconciled
type TicketPurchasedEvent struct {
	EventType       string    `json:"event_type"`
	TicketID        string    `json:"ticket_id"`
	EventID         string    `json:"event_id"`
	UserID          string    `json:"user_id"`
	WaitingListID   string    `json:"waiting_list_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	Amount          int64     `json:"amount"`
	Timestamp       time.Time `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *TicketPurchasedEvent) Key() string {
	return e.EventID
}

// EventCancelRequest asks the refund worker to refund every ticket of an
// event and cancel it
type EventCancelRequest struct {
	EventID     string    `json:"event_id"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *EventCancelRequest) Key() string {
	return e.EventID
}

// EventCancelledEvent is published once every ticket was refunded and the
// event cancelled
type EventCancelledEvent struct {
	EventType       string    `json:"event_type"`
	EventID         string    `json:"event_id"`
	RefundedTickets int       `json:"refunded_tickets"`
	Timestamp       time.Time `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *EventCancelledEvent) Key() string {
	return e.EventID
}

// EventCancelFailedEvent is published when a cancellation attempt left
// tickets unrefunded. The event stays active and can be retried.
type EventCancelFailedEvent struct {
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	FailedTickets []string  `json:"failed_tickets,omitempty"`
	Error         string    `json:"error"`
	Timestamp     time.Time `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *EventCancelFailedEvent) Key() string {
	return e.EventID
}
