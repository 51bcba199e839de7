package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prohmpiriya/offer-checkout/internal/clock"
	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/prohmpiriya/offer-checkout/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCheckoutService(t *testing.T, remaining time.Duration) (CheckoutService, *MockPaymentGateway) {
	t.Helper()
	backend := newTestBackend()
	seedOffer(backend, remaining)
	gw := new(MockPaymentGateway)
	svc := NewCheckoutService(backend, gw, clock.NewFixed(testNow), &CheckoutServiceConfig{
		BaseURL:            "https://tickets.example.com/",
		Currency:           "inr",
		OfferTTL:           30 * time.Minute,
		PlatformFeePercent: 1,
	})
	return svc, gw
}

func TestCreateCheckoutSession_Success(t *testing.T) {
	svc, gw := newCheckoutService(t, 40*time.Minute)

	var captured *gateway.CheckoutSessionRequest
	gw.On("CreateCheckoutSession", mock.Anything, mock.AnythingOfType("*gateway.CheckoutSessionRequest")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*gateway.CheckoutSessionRequest)
		}).
		Return(&domain.CheckoutSession{SessionID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil)

	session, err := svc.CreateCheckoutSession(context.Background(), "E1", "buyer")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", session.URL)

	require.NotNil(t, captured)
	assert.Equal(t, "acct_owner", captured.ConnectAccountID)
	assert.Equal(t, int64(50000), captured.UnitAmount)
	assert.Equal(t, int64(500), captured.ApplicationFee)
	assert.Equal(t, "inr", captured.Currency)
	assert.Equal(t, "Concert", captured.ProductName)
	assert.Equal(t, testNow.Add(30*time.Minute), captured.ExpiresAt)
	assert.Equal(t, "https://tickets.example.com/tickets/purchase-success?session_id={CHECKOUT_SESSION_ID}", captured.SuccessURL)
	assert.Equal(t, "https://tickets.example.com/event/E1", captured.CancelURL)
	assert.Equal(t, domain.CheckoutMetadata{EventID: "E1", UserID: "buyer", WaitingListID: "W1"}, captured.Metadata)
	gw.AssertExpectations(t)
}

func TestCreateCheckoutSession_ShortOfferUsesProcessorMinimum(t *testing.T) {
	svc, gw := newCheckoutService(t, 5*time.Minute)

	gw.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req *gateway.CheckoutSessionRequest) bool {
		return req.ExpiresAt.Equal(testNow.Add(domain.MinCheckoutExpiry))
	})).Return(&domain.CheckoutSession{SessionID: "cs_test_2"}, nil)

	_, err := svc.CreateCheckoutSession(context.Background(), "E1", "buyer")
	require.NoError(t, err)
	gw.AssertExpectations(t)
}

func TestCreateCheckoutSession_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		eventID string
		userID  string
		mutate  func(svc *checkoutService)
		wantErr error
	}{
		{
			name:    "event not found",
			eventID: "missing",
			userID:  "buyer",
			wantErr: domain.ErrEventNotFound,
		},
		{
			name:    "no offer for user",
			eventID: "E1",
			userID:  "stranger",
			wantErr: domain.ErrNoValidOffer,
		},
		{
			name:    "entry still waiting",
			eventID: "E1",
			userID:  "buyer",
			mutate: func(svc *checkoutService) {
				b := svc.backend.(interface {
					PutWaitingListEntry(domain.WaitingListEntry)
				})
				b.PutWaitingListEntry(domain.WaitingListEntry{ID: "W1", EventID: "E1", UserID: "buyer", Status: domain.WaitingListWaiting})
			},
			wantErr: domain.ErrNoValidOffer,
		},
		{
			name:    "owner has no connect account",
			eventID: "E1",
			userID:  "buyer",
			mutate: func(svc *checkoutService) {
				_ = svc.backend.SetConnectAccountID(context.Background(), "owner", "")
			},
			wantErr: domain.ErrConnectAccountNotFound,
		},
		{
			name:    "offer without expiration",
			eventID: "E1",
			userID:  "buyer",
			mutate: func(svc *checkoutService) {
				b := svc.backend.(interface {
					PutWaitingListEntry(domain.WaitingListEntry)
				})
				b.PutWaitingListEntry(domain.WaitingListEntry{ID: "W1", EventID: "E1", UserID: "buyer", Status: domain.WaitingListOffered})
			},
			wantErr: domain.ErrOfferNoExpiration,
		},
		{
			name:    "offer already expired",
			eventID: "E1",
			userID:  "buyer",
			mutate: func(svc *checkoutService) {
				b := svc.backend.(interface {
					PutWaitingListEntry(domain.WaitingListEntry)
				})
				exp := testNow.Add(-time.Minute)
				b.PutWaitingListEntry(domain.WaitingListEntry{ID: "W1", EventID: "E1", UserID: "buyer", Status: domain.WaitingListOffered, OfferExpiresAt: &exp})
			},
			wantErr: domain.ErrOfferExpired,
		},
		{
			name:    "event cancelled",
			eventID: "E1",
			userID:  "buyer",
			mutate: func(svc *checkoutService) {
				b := svc.backend.(interface {
					PutEvent(domain.Event)
				})
				b.PutEvent(domain.Event{ID: "E1", OwnerID: "owner", Price: 500, Status: domain.EventStatusCancelled})
			},
			wantErr: domain.ErrEventCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, gw := newCheckoutService(t, 40*time.Minute)
			if tt.mutate != nil {
				tt.mutate(svc.(*checkoutService))
			}

			session, err := svc.CreateCheckoutSession(context.Background(), tt.eventID, tt.userID)
			assert.Nil(t, session)
			assert.ErrorIs(t, err, tt.wantErr)
			gw.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateCheckoutSession_ProcessorError(t *testing.T) {
	svc, gw := newCheckoutService(t, 40*time.Minute)
	upstream := errors.New("api_key_expired")
	gw.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(nil, upstream)

	_, err := svc.CreateCheckoutSession(context.Background(), "E1", "buyer")
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.Contains(t, err.Error(), "failed to create checkout session")
}

func TestCreateCheckoutSession_DoesNotMutate(t *testing.T) {
	backend := newTestBackend()
	seedOffer(backend, 40*time.Minute)
	gw := gateway.NewMockGateway(nil)
	svc := NewCheckoutService(backend, gw, clock.NewFixed(testNow), nil)

	session, err := svc.CreateCheckoutSession(context.Background(), "E1", "buyer")
	require.NoError(t, err)

	req, ok := gw.Session(session.SessionID)
	require.True(t, ok)
	assert.Equal(t, "acct_owner", req.ConnectAccountID)
	assert.Equal(t, "http://localhost:3000/event/E1", req.CancelURL)

	entry, ok := backend.GetWaitingListEntry("W1")
	require.True(t, ok)
	assert.Equal(t, domain.WaitingListOffered, entry.Status)
	assert.Empty(t, backend.TicketsForEvent("E1"))
}
