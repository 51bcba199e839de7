package domain

import (
	"math"
	"time"
)

// Stripe only accepts checkout session expiries inside this window
const (
	MinCheckoutExpiry = 30 * time.Minute
	MaxCheckoutExpiry = 24 * time.Hour
)

// Checkout session metadata keys
const (
	MetadataEventID       = "eventId"
	MetadataUserID        = "userId"
	MetadataWaitingListID = "waitingListId"
)

// CheckoutMetadata correlates a payment session with the entities it will
// mutate on completion
type CheckoutMetadata struct {
	EventID       string `json:"eventId"`
	UserID        string `json:"userId"`
	WaitingListID string `json:"waitingListId"`
}

// ToMap renders the metadata for the payment processor
func (m CheckoutMetadata) ToMap() map[string]string {
	return map[string]string{
		MetadataEventID:       m.EventID,
		MetadataUserID:        m.UserID,
		MetadataWaitingListID: m.WaitingListID,
	}
}

// ParseCheckoutMetadata reads metadata back from a completed session.
// Every key is required.
func ParseCheckoutMetadata(md map[string]string) (CheckoutMetadata, error) {
	m := CheckoutMetadata{
		EventID:       md[MetadataEventID],
		UserID:        md[MetadataUserID],
		WaitingListID: md[MetadataWaitingListID],
	}
	if m.EventID == "" || m.UserID == "" || m.WaitingListID == "" {
		return CheckoutMetadata{}, ErrInvalidMetadata
	}
	return m, nil
}

// UnitAmount converts a major-unit price to minor units
func UnitAmount(price float64) int64 {
	return int64(math.Round(price * 100))
}

// ApplicationFee is the platform's cut of price, in minor units
func ApplicationFee(price, feePercent float64) int64 {
	return int64(math.Round(price * 100 * feePercent / 100))
}

// CheckoutExpiry returns when a checkout session opened at now should expire.
// The offer's remaining lifetime, capped at ttl, is clamped into the window
// the processor accepts.
func CheckoutExpiry(now, offerExpiresAt time.Time, ttl time.Duration) time.Time {
	d := offerExpiresAt.Sub(now)
	if ttl > 0 && d > ttl {
		d = ttl
	}
	if d < MinCheckoutExpiry {
		d = MinCheckoutExpiry
	}
	if d > MaxCheckoutExpiry {
		d = MaxCheckoutExpiry
	}
	return now.Add(d)
}

// CheckoutSession is what the caller needs to redirect the buyer
type CheckoutSession struct {
	SessionID string    `json:"session_id"`
	URL       string    `json:"session_url"`
	ExpiresAt time.Time `json:"expires_at"`
}
