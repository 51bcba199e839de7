package domain

import "time"

// TicketStatus is the status of an issued ticket
type TicketStatus string

const (
	TicketStatusValid     TicketStatus = "valid"
	TicketStatusRefunded  TicketStatus = "refunded"
	TicketStatusCancelled TicketStatus = "cancelled"
)

// Ticket is created only by completion reconciliation
type Ticket struct {
	ID              string       `json:"id"`
	EventID         string       `json:"event_id"`
	UserID          string       `json:"user_id"`
	WaitingListID   string       `json:"waiting_list_id"`
	PaymentIntentID string       `json:"payment_intent_id"`
	Status          TicketStatus `json:"status"`
	Amount          int64        `json:"amount"` // minor currency units
	PurchasedAt     time.Time    `json:"purchased_at"`
}

// CanTransitionTo reports whether status may follow the ticket's current one.
// valid -> refunded|cancelled only; refunded and cancelled are terminal.
func (t *Ticket) CanTransitionTo(status TicketStatus) bool {
	if t.Status == status {
		return true
	}
	return t.Status == TicketStatusValid && (status == TicketStatusRefunded || status == TicketStatusCancelled)
}

// Purchase is the input of a completion reconciliation
type Purchase struct {
	EventID         string
	UserID          string
	WaitingListID   string
	PaymentIntentID string
	Amount          int64
}
