package domain

import "errors"

// Precondition errors. Terminal, never retried.
var (
	ErrEventNotFound          = errors.New("event not found")
	ErrEventCancelled         = errors.New("event is cancelled")
	ErrNoValidOffer           = errors.New("no valid ticket offer found")
	ErrOfferNoExpiration      = errors.New("ticket offer has no expiration date")
	ErrOfferExpired           = errors.New("ticket offer has expired")
	ErrConnectAccountNotFound = errors.New("stripe connect id not found for owner of the event")
	ErrNotEventOwner          = errors.New("caller is not the owner of the event")
	ErrUserNotFound           = errors.New("user not found")
)

// Reconciliation errors
var (
	ErrOfferNotAvailable = errors.New("waiting list entry is not in offered state")
	ErrInvalidMetadata   = errors.New("checkout session metadata is incomplete")
	ErrTicketNotFound    = errors.New("ticket not found")
)

// Refund errors
var (
	ErrMissingPaymentIntent = errors.New("payment intent not found")
)

// ErrPaymentProvider wraps any failure returned by the payment processor
var ErrPaymentProvider = errors.New("payment provider error")

// ErrInvalidTicketTransition is returned when a ticket status change would
// leave a terminal state
var ErrInvalidTicketTransition = errors.New("invalid ticket status transition")
