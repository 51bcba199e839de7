package domain

import (
	"fmt"
	"sort"
	"strings"
)

// RefundOutcome is the result of refunding one ticket
type RefundOutcome struct {
	TicketID string `json:"ticket_id"`
	RefundID string `json:"refund_id,omitempty"`
	Err      error  `json:"-"`
}

// Succeeded reports whether the refund went through
func (o RefundOutcome) Succeeded() bool {
	return o.Err == nil
}

// RefundAggregateError reports the tickets whose refund failed during one
// cancellation attempt. Tickets refunded in the same attempt stay refunded.
type RefundAggregateError struct {
	EventID string
	Total   int
	Failed  []RefundOutcome
}

func (e *RefundAggregateError) Error() string {
	ids := e.FailedTicketIDs()
	return fmt.Sprintf("failed to refund %d of %d tickets for event %s: %s",
		len(e.Failed), e.Total, e.EventID, strings.Join(ids, ", "))
}

// Unwrap exposes every per-ticket error to errors.Is / errors.As
func (e *RefundAggregateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, o := range e.Failed {
		errs = append(errs, o.Err)
	}
	return errs
}

// FailedTicketIDs returns the failed ticket ids, sorted
func (e *RefundAggregateError) FailedTicketIDs() []string {
	ids := make([]string, 0, len(e.Failed))
	for _, o := range e.Failed {
		ids = append(ids, o.TicketID)
	}
	sort.Strings(ids)
	return ids
}

// NewRefundAggregateError returns nil when every outcome succeeded
func NewRefundAggregateError(eventID string, outcomes []RefundOutcome) error {
	var failed []RefundOutcome
	for _, o := range outcomes {
		if !o.Succeeded() {
			failed = append(failed, o)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &RefundAggregateError{EventID: eventID, Total: len(outcomes), Failed: failed}
}
