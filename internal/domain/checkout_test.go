package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitAmountAndFee(t *testing.T) {
	tests := []struct {
		price   float64
		wantAmt int64
		wantFee int64
	}{
		{price: 500.00, wantAmt: 50000, wantFee: 500},
		{price: 19.99, wantAmt: 1999, wantFee: 20},
		{price: 0.5, wantAmt: 50, wantFee: 1},
		{price: 0.01, wantAmt: 1, wantFee: 0},
		{price: 1234.56, wantAmt: 123456, wantFee: 1235},
		{price: 0, wantAmt: 0, wantFee: 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.wantAmt, UnitAmount(tt.price), "amount for %v", tt.price)
		assert.Equal(t, tt.wantFee, ApplicationFee(tt.price, 1), "fee for %v", tt.price)
	}
}

func TestApplicationFee_CustomPercent(t *testing.T) {
	assert.Equal(t, int64(2500), ApplicationFee(500, 5))
	assert.Equal(t, int64(0), ApplicationFee(500, 0))
}

func TestCheckoutExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		remaining time.Duration
		ttl       time.Duration
		want      time.Duration
	}{
		{name: "offer longer than ttl capped at ttl", remaining: 40 * time.Minute, ttl: 30 * time.Minute, want: 30 * time.Minute},
		{name: "short offer raised to processor minimum", remaining: 5 * time.Minute, ttl: 30 * time.Minute, want: MinCheckoutExpiry},
		{name: "already expired offer raised to minimum", remaining: -time.Minute, ttl: 30 * time.Minute, want: MinCheckoutExpiry},
		{name: "remaining inside window honoured", remaining: 45 * time.Minute, ttl: time.Hour, want: 45 * time.Minute},
		{name: "long ttl capped at processor maximum", remaining: 48 * time.Hour, ttl: 72 * time.Hour, want: MaxCheckoutExpiry},
		{name: "zero ttl means no ttl cap", remaining: 2 * time.Hour, ttl: 0, want: 2 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckoutExpiry(now, now.Add(tt.remaining), tt.ttl)
			assert.Equal(t, now.Add(tt.want), got)
		})
	}
}

func TestCheckoutExpiry_NeverBelowMinimum(t *testing.T) {
	now := time.Now()
	for _, remaining := range []time.Duration{0, time.Second, 10 * time.Minute, 29 * time.Minute} {
		got := CheckoutExpiry(now, now.Add(remaining), 30*time.Minute)
		assert.False(t, got.Before(now.Add(MinCheckoutExpiry)), "remaining %v", remaining)
	}
}

func TestCheckoutMetadata_RoundTrip(t *testing.T) {
	md := CheckoutMetadata{EventID: "E1", UserID: "U1", WaitingListID: "W1"}

	m := md.ToMap()
	assert.Equal(t, "E1", m["eventId"])
	assert.Equal(t, "U1", m["userId"])
	assert.Equal(t, "W1", m["waitingListId"])

	parsed, err := ParseCheckoutMetadata(m)
	require.NoError(t, err)
	assert.Equal(t, md, parsed)
}

func TestParseCheckoutMetadata_MissingKey(t *testing.T) {
	for _, key := range []string{MetadataEventID, MetadataUserID, MetadataWaitingListID} {
		m := CheckoutMetadata{EventID: "E1", UserID: "U1", WaitingListID: "W1"}.ToMap()
		delete(m, key)
		_, err := ParseCheckoutMetadata(m)
		assert.ErrorIs(t, err, ErrInvalidMetadata, "without %s", key)
	}

	_, err := ParseCheckoutMetadata(nil)
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestWaitingListEntry_RemainingOffer(t *testing.T) {
	now := time.Now()
	entry := &WaitingListEntry{Status: WaitingListOffered}

	_, ok := entry.RemainingOffer(now)
	assert.False(t, ok)

	exp := now.Add(10 * time.Minute)
	entry.OfferExpiresAt = &exp
	remaining, ok := entry.RemainingOffer(now)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Minute, remaining)
	assert.True(t, entry.IsOffered())
}
