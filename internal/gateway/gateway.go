package gateway

import (
	"context"
	"time"

	"github.com/prohmpiriya/offer-checkout/internal/domain"
)

// PaymentGateway is the payment processor as seen by the services. Every
// call except CreateConnectAccount is scoped to a connect account.
type PaymentGateway interface {
	// CreateConnectAccount creates an Express account and returns its id
	CreateConnectAccount(ctx context.Context) (string, error)
	// CreateLoginLink returns a dashboard login URL for the account
	CreateLoginLink(ctx context.Context, accountID string) (string, error)
	// GetAccount retrieves the account's onboarding state
	GetAccount(ctx context.Context, accountID string) (*domain.ConnectAccountStatus, error)
	// CreateAccountLink returns an onboarding URL for the account
	CreateAccountLink(ctx context.Context, req *AccountLinkRequest) (string, error)
	// CreateCheckoutSession opens a hosted checkout on the connect account
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*domain.CheckoutSession, error)
	// CreateRefund refunds a payment intent on the connect account
	CreateRefund(ctx context.Context, req *RefundRequest) (*RefundResponse, error)
	// Name returns the gateway name
	Name() string
}

// AccountLinkRequest describes an onboarding link
type AccountLinkRequest struct {
	AccountID  string
	RefreshURL string
	ReturnURL  string
}

// CheckoutSessionRequest describes a single-ticket checkout
type CheckoutSessionRequest struct {
	ConnectAccountID string
	ProductName      string
	Description      string
	Currency         string
	UnitAmount       int64
	ApplicationFee   int64
	ExpiresAt        time.Time
	SuccessURL       string
	CancelURL        string
	Metadata         domain.CheckoutMetadata
}

// RefundRequest describes a full refund of one payment intent
type RefundRequest struct {
	ConnectAccountID string
	PaymentIntentID  string
	// IdempotencyKey makes retried refunds of the same ticket a no-op
	IdempotencyKey string
	Metadata       map[string]string
}

// RefundResponse is the processor's refund
type RefundResponse struct {
	RefundID string
	Status   string
	Amount   int64
}
