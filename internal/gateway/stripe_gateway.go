package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeGateway implements PaymentGateway using Stripe Connect
type StripeGateway struct {
	api *client.API
}

// StripeGatewayConfig holds configuration for Stripe gateway
type StripeGatewayConfig struct {
	SecretKey string
	// Backends overrides the HTTP backends, used to point at stripe-mock
	Backends *stripe.Backends
}

// NewStripeGateway creates a Stripe gateway with its own client instead of
// the package-level key
func NewStripeGateway(config *StripeGatewayConfig) (*StripeGateway, error) {
	if config == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	return &StripeGateway{
		api: client.New(config.SecretKey, config.Backends),
	}, nil
}

// Name returns the gateway name
func (g *StripeGateway) Name() string {
	return "stripe"
}

// CreateConnectAccount creates an Express account requesting card payments and transfers
func (g *StripeGateway) CreateConnectAccount(ctx context.Context) (string, error) {
	params := &stripe.AccountParams{
		Type: stripe.String(string(stripe.AccountTypeExpress)),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	params.Context = ctx

	acct, err := g.api.Accounts.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create connect account: %w", domain.ErrPaymentProvider, err)
	}
	return acct.ID, nil
}

// CreateLoginLink creates an Express dashboard login link
func (g *StripeGateway) CreateLoginLink(ctx context.Context, accountID string) (string, error) {
	params := &stripe.LoginLinkParams{Account: stripe.String(accountID)}
	params.Context = ctx

	link, err := g.api.LoginLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create login link: %w", domain.ErrPaymentProvider, err)
	}
	return link.URL, nil
}

// GetAccount retrieves the account and summarizes its requirements
func (g *StripeGateway) GetAccount(ctx context.Context, accountID string) (*domain.ConnectAccountStatus, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := g.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve account: %w", domain.ErrPaymentProvider, err)
	}
	return accountStatus(acct), nil
}

func accountStatus(acct *stripe.Account) *domain.ConnectAccountStatus {
	status := &domain.ConnectAccountStatus{
		AccountID:      acct.ID,
		CurrentlyDue:   []string{},
		EventuallyDue:  []string{},
		PastDue:        []string{},
		ChargesEnabled: acct.ChargesEnabled,
		PayoutsEnabled: acct.PayoutsEnabled,
	}
	if req := acct.Requirements; req != nil {
		if req.CurrentlyDue != nil {
			status.CurrentlyDue = req.CurrentlyDue
		}
		if req.EventuallyDue != nil {
			status.EventuallyDue = req.EventuallyDue
		}
		if req.PastDue != nil {
			status.PastDue = req.PastDue
		}
	}
	status.IsActive = acct.DetailsSubmitted && len(status.CurrentlyDue) == 0
	status.RequiresInformation = len(status.CurrentlyDue) > 0 ||
		len(status.EventuallyDue) > 0 ||
		len(status.PastDue) > 0
	return status
}

// CreateAccountLink creates an onboarding link
func (g *StripeGateway) CreateAccountLink(ctx context.Context, req *AccountLinkRequest) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(req.AccountID),
		RefreshURL: stripe.String(req.RefreshURL),
		ReturnURL:  stripe.String(req.ReturnURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx

	link, err := g.api.AccountLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create account link: %w", domain.ErrPaymentProvider, err)
	}
	return link.URL, nil
}

// CreateCheckoutSession creates a one-ticket card checkout on the connect
// account with the platform fee taken as an application fee
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*domain.CheckoutSession, error) {
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.ProductName),
	}
	if req.Description != "" {
		product.Description = stripe.String(req.Description)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(req.Currency),
					ProductData: product,
					UnitAmount:  stripe.Int64(req.UnitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripe.Int64(req.ApplicationFee),
		},
		ExpiresAt:  stripe.Int64(req.ExpiresAt.Unix()),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	for k, v := range req.Metadata.ToMap() {
		params.AddMetadata(k, v)
	}
	params.SetStripeAccount(req.ConnectAccountID)
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %w", domain.ErrPaymentProvider, err)
	}

	return &domain.CheckoutSession{
		SessionID: sess.ID,
		URL:       sess.URL,
		ExpiresAt: req.ExpiresAt,
	}, nil
}

// CreateRefund fully refunds a payment intent on the connect account
func (g *StripeGateway) CreateRefund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.SetStripeAccount(req.ConnectAccountID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	r, err := g.api.Refunds.New(params)
	if isAlreadyRefunded(err) {
		// idempotency keys expire, so a late retry lands here
		r, err = g.existingRefund(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create refund: %w", domain.ErrPaymentProvider, err)
	}

	return &RefundResponse{
		RefundID: r.ID,
		Status:   string(r.Status),
		Amount:   r.Amount,
	}, nil
}

func isAlreadyRefunded(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeChargeAlreadyRefunded
}

// existingRefund returns the successful refund already made for the payment intent
func (g *StripeGateway) existingRefund(ctx context.Context, req *RefundRequest) (*stripe.Refund, error) {
	params := &stripe.RefundListParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
	}
	params.SetStripeAccount(req.ConnectAccountID)
	params.Context = ctx

	iter := g.api.Refunds.List(params)
	for iter.Next() {
		r := iter.Refund()
		if r.Status == stripe.RefundStatusSucceeded || r.Status == stripe.RefundStatusPending {
			return r, nil
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("payment intent %s reported refunded but no refund found", req.PaymentIntentID)
}
