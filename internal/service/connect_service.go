package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/prohmpiriya/offer-checkout/internal/gateway"
	"github.com/prohmpiriya/offer-checkout/internal/repository"
	"github.com/prohmpiriya/offer-checkout/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ConnectService manages event owners' connect accounts
type ConnectService interface {
	// CreateConnectAccount returns the user's connect account, creating it on
	// first use
	CreateConnectAccount(ctx context.Context, userID string) (string, error)

	// GetConnectAccount returns the stored account id, "" when none exists
	GetConnectAccount(ctx context.Context, userID string) (string, error)

	// GetConnectAccountStatus returns the onboarding state of the account
	GetConnectAccountStatus(ctx context.Context, userID string) (*domain.ConnectAccountStatus, error)

	// CreateLoginLink returns a dashboard login URL
	CreateLoginLink(ctx context.Context, userID string) (string, error)

	// CreateAccountLink returns an onboarding URL. An empty origin falls back
	// to the configured base URL.
	CreateAccountLink(ctx context.Context, userID, origin string) (string, error)
}

// ConnectServiceConfig contains configuration for the connect service
type ConnectServiceConfig struct {
	BaseURL string
}

type connectService struct {
	backend repository.Backend
	gateway gateway.PaymentGateway
	config  *ConnectServiceConfig
	group   singleflight.Group
}

// NewConnectService creates a new ConnectService
func NewConnectService(backend repository.Backend, gw gateway.PaymentGateway, config *ConnectServiceConfig) ConnectService {
	if config == nil {
		config = &ConnectServiceConfig{}
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:3000"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &connectService{
		backend: backend,
		gateway: gw,
		config:  config,
	}
}

// CreateConnectAccount gets or creates the account. Concurrent calls for the
// same user share one creation.
func (s *connectService) CreateConnectAccount(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", domain.ErrUserNotFound
	}

	v, err, _ := s.group.Do(userID, func() (interface{}, error) {
		existing, err := s.backend.GetConnectAccountID(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("failed to load connect account: %w", err)
		}
		if existing != "" {
			return existing, nil
		}

		accountID, err := s.gateway.CreateConnectAccount(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to create connect account: %w", err)
		}
		if err := s.backend.SetConnectAccountID(ctx, userID, accountID); err != nil {
			return "", fmt.Errorf("failed to store connect account %s: %w", accountID, err)
		}

		logger.Get().Info("Connect account created",
			zap.String("user_id", userID),
			zap.String("account_id", accountID),
		)
		return accountID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetConnectAccount returns the stored account id
func (s *connectService) GetConnectAccount(ctx context.Context, userID string) (string, error) {
	return s.backend.GetConnectAccountID(ctx, userID)
}

// GetConnectAccountStatus returns the account's onboarding state
func (s *connectService) GetConnectAccountStatus(ctx context.Context, userID string) (*domain.ConnectAccountStatus, error) {
	accountID, err := s.requireAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	status, err := s.gateway.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get connect account status: %w", err)
	}
	return status, nil
}

// CreateLoginLink returns a dashboard login URL
func (s *connectService) CreateLoginLink(ctx context.Context, userID string) (string, error) {
	accountID, err := s.requireAccount(ctx, userID)
	if err != nil {
		return "", err
	}
	link, err := s.gateway.CreateLoginLink(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("failed to create login link: %w", err)
	}
	return link, nil
}

// CreateAccountLink returns an onboarding URL
func (s *connectService) CreateAccountLink(ctx context.Context, userID, origin string) (string, error) {
	accountID, err := s.requireAccount(ctx, userID)
	if err != nil {
		return "", err
	}

	base := s.config.BaseURL
	if origin = strings.TrimRight(origin, "/"); origin != "" {
		if u, err := url.Parse(origin); err == nil && u.Scheme != "" && u.Host != "" {
			base = origin
		}
	}

	link, err := s.gateway.CreateAccountLink(ctx, &gateway.AccountLinkRequest{
		AccountID:  accountID,
		RefreshURL: base + "/connect/refresh/" + accountID,
		ReturnURL:  base + "/connect/return/" + accountID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create account link: %w", err)
	}
	return link, nil
}

func (s *connectService) requireAccount(ctx context.Context, userID string) (string, error) {
	accountID, err := s.backend.GetConnectAccountID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load connect account: %w", err)
	}
	if accountID == "" {
		return "", domain.ErrConnectAccountNotFound
	}
	return accountID, nil
}
