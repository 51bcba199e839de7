package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prohmpiriya/offer-checkout/internal/domain"
)

const alphanumericChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomID generates a Stripe-shaped id such as cs_test_XXXX
func randomID(prefix string) string {
	b := make([]byte, 24)
	for i := range b {
		b[i] = alphanumericChars[rand.Intn(len(alphanumericChars))]
	}
	return prefix + string(b)
}

// MockGateway implements PaymentGateway in memory for local development and tests
type MockGateway struct {
	config *MockGatewayConfig

	mu       sync.RWMutex
	accounts map[string]*domain.ConnectAccountStatus
	sessions map[string]*CheckoutSessionRequest
	refunds  map[string]*RefundResponse // by idempotency key, or refund id
}

// MockGatewayConfig holds configuration for the mock gateway
type MockGatewayConfig struct {
	// Delay simulates processor latency
	Delay time.Duration
	// FailingPaymentIntents makes refunds of these payment intents fail
	FailingPaymentIntents map[string]bool
	// CheckoutBaseURL prefixes the returned session URL
	CheckoutBaseURL string
}

// DefaultMockGatewayConfig returns default configuration
func DefaultMockGatewayConfig() *MockGatewayConfig {
	return &MockGatewayConfig{
		CheckoutBaseURL: "https://checkout.mock.local/c/pay/",
	}
}

// NewMockGateway creates a new mock gateway
func NewMockGateway(config *MockGatewayConfig) *MockGateway {
	if config == nil {
		config = DefaultMockGatewayConfig()
	}
	if config.FailingPaymentIntents == nil {
		config.FailingPaymentIntents = map[string]bool{}
	}
	return &MockGateway{
		config:   config,
		accounts: make(map[string]*domain.ConnectAccountStatus),
		sessions: make(map[string]*CheckoutSessionRequest),
		refunds:  make(map[string]*RefundResponse),
	}
}

// Name returns the gateway name
func (g *MockGateway) Name() string {
	return "mock"
}

func (g *MockGateway) wait(ctx context.Context) error {
	if g.config.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.config.Delay):
		return nil
	}
}

// CreateConnectAccount creates an account that is fully onboarded
func (g *MockGateway) CreateConnectAccount(ctx context.Context) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}

	id := randomID("acct_")
	g.mu.Lock()
	g.accounts[id] = &domain.ConnectAccountStatus{
		AccountID:      id,
		IsActive:       true,
		CurrentlyDue:   []string{},
		EventuallyDue:  []string{},
		PastDue:        []string{},
		ChargesEnabled: true,
		PayoutsEnabled: true,
	}
	g.mu.Unlock()
	return id, nil
}

// CreateLoginLink returns a fake dashboard URL
func (g *MockGateway) CreateLoginLink(ctx context.Context, accountID string) (string, error) {
	if _, err := g.GetAccount(ctx, accountID); err != nil {
		return "", err
	}
	return "https://connect.mock.local/express/" + accountID, nil
}

// GetAccount returns the stored account
func (g *MockGateway) GetAccount(ctx context.Context, accountID string) (*domain.ConnectAccountStatus, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	acct, ok := g.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: no such account: %s", domain.ErrPaymentProvider, accountID)
	}
	cp := *acct
	return &cp, nil
}

// CreateAccountLink returns a fake onboarding URL
func (g *MockGateway) CreateAccountLink(ctx context.Context, req *AccountLinkRequest) (string, error) {
	if _, err := g.GetAccount(ctx, req.AccountID); err != nil {
		return "", err
	}
	return "https://connect.mock.local/setup/" + req.AccountID + "?return_url=" + req.ReturnURL, nil
}

// CreateCheckoutSession records the session request
func (g *MockGateway) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*domain.CheckoutSession, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if req.ConnectAccountID == "" {
		return nil, fmt.Errorf("%w: connect account is required", domain.ErrPaymentProvider)
	}

	id := randomID("cs_test_")
	cp := *req
	g.mu.Lock()
	g.sessions[id] = &cp
	g.mu.Unlock()

	return &domain.CheckoutSession{
		SessionID: id,
		URL:       g.config.CheckoutBaseURL + id,
		ExpiresAt: req.ExpiresAt,
	}, nil
}

// CreateRefund refunds unless the payment intent is configured to fail.
// A repeated idempotency key returns the first refund.
func (g *MockGateway) CreateRefund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if req.PaymentIntentID == "" {
		return nil, fmt.Errorf("%w: payment_intent is required", domain.ErrPaymentProvider)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if req.IdempotencyKey != "" {
		if prev, ok := g.refunds[req.IdempotencyKey]; ok {
			return prev, nil
		}
	}
	if g.config.FailingPaymentIntents[req.PaymentIntentID] {
		return nil, fmt.Errorf("%w: refund of %s declined", domain.ErrPaymentProvider, req.PaymentIntentID)
	}

	resp := &RefundResponse{RefundID: randomID("re_"), Status: "succeeded"}
	key := req.IdempotencyKey
	if key == "" {
		key = resp.RefundID
	}
	g.refunds[key] = resp
	return resp, nil
}

// SetRefundFailure toggles refund failure for a payment intent
func (g *MockGateway) SetRefundFailure(paymentIntentID string, fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.config.FailingPaymentIntents[paymentIntentID] = fail
}

// Session returns a recorded checkout session request
func (g *MockGateway) Session(sessionID string) (*CheckoutSessionRequest, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.sessions[sessionID]
	return s, ok
}

// RefundCount returns the number of distinct refunds issued
func (g *MockGateway) RefundCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.refunds)
}
