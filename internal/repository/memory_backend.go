package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/prohmpiriya/offer-checkout/internal/clock"
	"github.com/prohmpiriya/offer-checkout/internal/domain"
)

// MemoryBackend implements Backend in memory for local development and tests
type MemoryBackend struct {
	clock clock.Clock

	mu       sync.RWMutex
	accounts map[string]string
	events   map[string]*domain.Event
	entries  map[string]*domain.WaitingListEntry
	tickets  map[string]*domain.Ticket
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend(clk clock.Clock) *MemoryBackend {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &MemoryBackend{
		clock:    clk,
		accounts: make(map[string]string),
		events:   make(map[string]*domain.Event),
		entries:  make(map[string]*domain.WaitingListEntry),
		tickets:  make(map[string]*domain.Ticket),
	}
}

// PutEvent stores a copy of e
func (b *MemoryBackend) PutEvent(e domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[e.ID] = &e
}

// PutWaitingListEntry stores a copy of w
func (b *MemoryBackend) PutWaitingListEntry(w domain.WaitingListEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[w.ID] = &w
}

// PutTicket stores a copy of t
func (b *MemoryBackend) PutTicket(t domain.Ticket) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tickets[t.ID] = &t
}

// GetWaitingListEntry returns a copy of the entry
func (b *MemoryBackend) GetWaitingListEntry(id string) (*domain.WaitingListEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	w, ok := b.entries[id]
	if !ok {
		return nil, false
	}
	cp := *w
	return &cp, true
}

// GetTicket returns a copy of the ticket
func (b *MemoryBackend) GetTicket(id string) (*domain.Ticket, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tickets[id]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

// TicketsForEvent returns copies of every ticket of the event regardless of status
func (b *MemoryBackend) TicketsForEvent(eventID string) []*domain.Ticket {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*domain.Ticket
	for _, t := range b.tickets {
		if t.EventID == eventID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *MemoryBackend) GetConnectAccountID(ctx context.Context, userID string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.accounts[userID], nil
}

func (b *MemoryBackend) SetConnectAccountID(ctx context.Context, userID, accountID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[userID] = accountID
	return nil
}

func (b *MemoryBackend) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.events[eventID]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (b *MemoryBackend) GetOfferForUser(ctx context.Context, eventID, userID string) (*domain.WaitingListEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var best *domain.WaitingListEntry
	for _, w := range b.entries {
		if w.EventID != eventID || w.UserID != userID || w.Status == domain.WaitingListExpired {
			continue
		}
		// offered or purchased wins over waiting
		if best == nil || rank(w.Status) > rank(best.Status) {
			best = w
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func rank(s domain.WaitingListStatus) int {
	switch s {
	case domain.WaitingListOffered, domain.WaitingListPurchased:
		return 2
	case domain.WaitingListWaiting:
		return 1
	default:
		return 0
	}
}

func (b *MemoryBackend) GetValidTickets(ctx context.Context, eventID string) ([]*domain.Ticket, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*domain.Ticket
	for _, t := range b.tickets {
		if t.EventID == eventID && t.Status == domain.TicketStatusValid {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *MemoryBackend) SetTicketStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tickets[ticketID]
	if !ok {
		return domain.ErrTicketNotFound
	}
	if !t.CanTransitionTo(status) {
		return domain.ErrInvalidTicketTransition
	}
	t.Status = status
	return nil
}

func (b *MemoryBackend) CommitPurchase(ctx context.Context, p domain.Purchase) (*CommitResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.entries[p.WaitingListID]
	if !ok || w.EventID != p.EventID || w.UserID != p.UserID {
		return nil, domain.ErrOfferNotAvailable
	}

	switch w.Status {
	case domain.WaitingListPurchased:
		for _, t := range b.tickets {
			if t.WaitingListID == w.ID && t.PaymentIntentID == p.PaymentIntentID {
				cp := *t
				return &CommitResult{Ticket: &cp, Created: false}, nil
			}
		}
		return nil, domain.ErrOfferNotAvailable
	case domain.WaitingListOffered:
	default:
		return nil, domain.ErrOfferNotAvailable
	}

	if p.PaymentIntentID != "" {
		for _, t := range b.tickets {
			if t.PaymentIntentID == p.PaymentIntentID {
				return nil, domain.ErrOfferNotAvailable
			}
		}
	}

	t := &domain.Ticket{
		ID:              uuid.NewString(),
		EventID:         p.EventID,
		UserID:          p.UserID,
		WaitingListID:   p.WaitingListID,
		PaymentIntentID: p.PaymentIntentID,
		Status:          domain.TicketStatusValid,
		Amount:          p.Amount,
		PurchasedAt:     b.clock.Now(),
	}
	b.tickets[t.ID] = t
	w.Status = domain.WaitingListPurchased
	w.OfferExpiresAt = nil

	cp := *t
	return &CommitResult{Ticket: &cp, Created: true}, nil
}

func (b *MemoryBackend) CancelEvent(ctx context.Context, eventID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	e.Status = domain.EventStatusCancelled
	for _, w := range b.entries {
		if w.EventID == eventID && (w.Status == domain.WaitingListWaiting || w.Status == domain.WaitingListOffered) {
			w.Status = domain.WaitingListExpired
			w.OfferExpiresAt = nil
		}
	}
	return nil
}

func (b *MemoryBackend) GetLatestUserTicket(ctx context.Context, userID string) (*domain.Ticket, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var latest *domain.Ticket
	for _, t := range b.tickets {
		if t.UserID != userID {
			continue
		}
		if latest == nil || t.PurchasedAt.After(latest.PurchasedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, domain.ErrTicketNotFound
	}
	cp := *latest
	return &cp, nil
}

func (b *MemoryBackend) Ping(ctx context.Context) error {
	return nil
}
