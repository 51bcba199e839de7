package repository

import (
	"context"

	"github.com/prohmpiriya/offer-checkout/internal/domain"
)

// Backend is the source of truth for events, waiting lists and tickets.
// Every method is a single atomic call; services never compose them into
// read-modify-write sequences.
type Backend interface {
	// GetConnectAccountID returns "" when the user has no connect account
	GetConnectAccountID(ctx context.Context, userID string) (string, error)
	// SetConnectAccountID upserts the user's connect account
	SetConnectAccountID(ctx context.Context, userID, accountID string) error
	// GetEvent returns domain.ErrEventNotFound when missing
	GetEvent(ctx context.Context, eventID string) (*domain.Event, error)
	// GetOfferForUser returns the user's current (non-expired) waiting list
	// entry for the event, or nil when there is none
	GetOfferForUser(ctx context.Context, eventID, userID string) (*domain.WaitingListEntry, error)
	// GetValidTickets returns every ticket of the event in valid status
	GetValidTickets(ctx context.Context, eventID string) ([]*domain.Ticket, error)
	// SetTicketStatus moves a ticket forward; refunded and cancelled are terminal
	SetTicketStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error
	// CommitPurchase issues the ticket and marks the entry purchased. Repeating
	// it with the same waiting list entry and payment intent returns the
	// original ticket with Created=false.
	CommitPurchase(ctx context.Context, p domain.Purchase) (*CommitResult, error)
	// CancelEvent marks the event cancelled and expires its open entries
	CancelEvent(ctx context.Context, eventID string) error
	// GetLatestUserTicket returns domain.ErrTicketNotFound when the user has none
	GetLatestUserTicket(ctx context.Context, userID string) (*domain.Ticket, error)
	// Ping checks the backend is reachable
	Ping(ctx context.Context) error
}

// CommitResult is the outcome of CommitPurchase
type CommitResult struct {
	Ticket  *domain.Ticket
	Created bool
}
