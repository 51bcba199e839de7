package service

import (
	"context"
	"sync"
	"time"

	"github.com/prohmpiriya/offer-checkout/internal/clock"
	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/prohmpiriya/offer-checkout/internal/dto"
	"github.com/prohmpiriya/offer-checkout/internal/gateway"
	"github.com/prohmpiriya/offer-checkout/internal/repository"
	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// MockPaymentGateway is a testify mock of gateway.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreateConnectAccount(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentGateway) CreateLoginLink(ctx context.Context, accountID string) (string, error) {
	args := m.Called(ctx, accountID)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentGateway) GetAccount(ctx context.Context, accountID string) (*domain.ConnectAccountStatus, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConnectAccountStatus), args.Error(1)
}

func (m *MockPaymentGateway) CreateAccountLink(ctx context.Context, req *gateway.AccountLinkRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentGateway) CreateCheckoutSession(ctx context.Context, req *gateway.CheckoutSessionRequest) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

func (m *MockPaymentGateway) CreateRefund(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RefundResponse), args.Error(1)
}

func (m *MockPaymentGateway) Name() string {
	return "mock"
}

// recordingPublisher records published events
type recordingPublisher struct {
	mu          sync.Mutex
	requests    []*dto.EventCancelRequest
	purchased   []*domain.Ticket
	cancelled   []string
	cancelFails []error
	err         error
}

func (p *recordingPublisher) PublishCancelRequested(ctx context.Context, req *dto.EventCancelRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.requests = append(p.requests, req)
	return nil
}

func (p *recordingPublisher) PublishTicketPurchased(ctx context.Context, ticket *domain.Ticket) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.purchased = append(p.purchased, ticket)
	return nil
}

func (p *recordingPublisher) PublishEventCancelled(ctx context.Context, eventID string, refunded int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.cancelled = append(p.cancelled, eventID)
	return nil
}

func (p *recordingPublisher) PublishEventCancelFailed(ctx context.Context, eventID string, cause error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.cancelFails = append(p.cancelFails, cause)
	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

// failingStatusBackend fails SetTicketStatus for one ticket
type failingStatusBackend struct {
	*repository.MemoryBackend
	ticketID string
	err      error
}

func (b *failingStatusBackend) SetTicketStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error {
	if ticketID == b.ticketID {
		return b.err
	}
	return b.MemoryBackend.SetTicketStatus(ctx, ticketID, status)
}

// seedOffer stores an active event owned by "owner" with a connect account
// and an offer to "buyer" expiring after remaining
func seedOffer(b *repository.MemoryBackend, remaining time.Duration) {
	b.PutEvent(domain.Event{
		ID:          "E1",
		OwnerID:     "owner",
		Name:        "Concert",
		Description: "Front row",
		Price:       500.00,
		Status:      domain.EventStatusActive,
	})
	_ = b.SetConnectAccountID(context.Background(), "owner", "acct_owner")
	exp := testNow.Add(remaining)
	b.PutWaitingListEntry(domain.WaitingListEntry{
		ID:             "W1",
		EventID:        "E1",
		UserID:         "buyer",
		Status:         domain.WaitingListOffered,
		OfferExpiresAt: &exp,
	})
}

func newTestBackend() *repository.MemoryBackend {
	return repository.NewMemoryBackend(clock.NewFixed(testNow))
}
