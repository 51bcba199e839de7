package domain

import "time"

// WaitingListStatus is the status of a waiting list entry
type WaitingListStatus string

const (
	WaitingListWaiting   WaitingListStatus = "waiting"
	WaitingListOffered   WaitingListStatus = "offered"
	WaitingListPurchased WaitingListStatus = "purchased"
	WaitingListExpired   WaitingListStatus = "expired"
)

// WaitingListEntry is a buyer's place in an event's queue.
// OfferExpiresAt is set only while Status is offered.
type WaitingListEntry struct {
	ID             string            `json:"id"`
	EventID        string            `json:"event_id"`
	UserID         string            `json:"user_id"`
	Status         WaitingListStatus `json:"status"`
	OfferExpiresAt *time.Time        `json:"offer_expires_at,omitempty"`
}

// IsOffered reports whether the entry holds a live offer
func (w *WaitingListEntry) IsOffered() bool {
	return w.Status == WaitingListOffered
}

// RemainingOffer returns how long the offer has left at now. ok is false
// when the entry has no expiration.
func (w *WaitingListEntry) RemainingOffer(now time.Time) (remaining time.Duration, ok bool) {
	if w.OfferExpiresAt == nil {
		return 0, false
	}
	return w.OfferExpiresAt.Sub(now), true
}
