package di

import (
	"context"
	"fmt"

	"github.com/prohmpiriya/offer-checkout/internal/clock"
	"github.com/prohmpiriya/offer-checkout/internal/gateway"
	"github.com/prohmpiriya/offer-checkout/internal/repository"
	"github.com/prohmpiriya/offer-checkout/pkg/config"
	"github.com/prohmpiriya/offer-checkout/pkg/database"
	"github.com/prohmpiriya/offer-checkout/pkg/logger"
	"go.uber.org/zap"
)

// NewBackend opens the backend selected by BACKEND_STORE. The returned
// close func releases the pool and is never nil.
func NewBackend(ctx context.Context, cfg *config.Config, clk clock.Clock) (repository.Backend, func(), error) {
	log := logger.Get()

	if cfg.App.BackendStore == "memory" {
		if cfg.IsProduction() {
			return nil, nil, fmt.Errorf("memory backend is not allowed in production")
		}
		log.Warn("Using in-memory backend (data will not persist)")
		return repository.NewMemoryBackend(clk), func() {}, nil
	}

	dbCfg := database.DefaultPostgresConfig(cfg.Database.DSN())
	dbCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	dbCfg.MinConns = int32(cfg.Database.MinIdleConns)
	dbCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	dbCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	dbCfg.EnableTracing = cfg.OTel.Enabled

	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connected",
		zap.Int32("min_conns", dbCfg.MinConns),
		zap.Int32("max_conns", dbCfg.MaxConns),
	)

	backend := repository.NewPostgresBackend(db.Pool(), clk)
	if err := backend.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return backend, db.Close, nil
}

// NewPaymentGateway builds the gateway selected by PAYMENT_GATEWAY
func NewPaymentGateway(cfg *config.Config) (gateway.PaymentGateway, error) {
	log := logger.Get()

	switch cfg.Stripe.Gateway {
	case "stripe":
		gw, err := gateway.NewStripeGateway(&gateway.StripeGatewayConfig{SecretKey: cfg.Stripe.SecretKey})
		if err != nil {
			return nil, fmt.Errorf("failed to create stripe gateway: %w", err)
		}
		log.Info("Using Stripe payment gateway")
		return gw, nil
	case "mock":
		log.Warn("Using mock payment gateway")
		return gateway.NewMockGateway(gateway.DefaultMockGatewayConfig()), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", cfg.Stripe.Gateway)
	}
}
