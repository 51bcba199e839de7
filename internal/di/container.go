package di

import (
	"github.com/prohmpiriya/offer-checkout/internal/clock"
	"github.com/prohmpiriya/offer-checkout/internal/gateway"
	"github.com/prohmpiriya/offer-checkout/internal/handler"
	"github.com/prohmpiriya/offer-checkout/internal/repository"
	"github.com/prohmpiriya/offer-checkout/internal/service"
	"github.com/prohmpiriya/offer-checkout/pkg/redis"
)

// Container holds all dependencies for the offer checkout service
type Container struct {
	// Infrastructure
	Redis *redis.Client

	// Gateways
	PaymentGateway gateway.PaymentGateway
	EventPublisher service.EventPublisher

	// Backend
	Backend repository.Backend

	// Services
	CheckoutService service.CheckoutService
	PurchaseService service.PurchaseService
	RefundService   service.RefundService
	ConnectService  service.ConnectService

	// Handlers
	HealthHandler   *handler.HealthHandler
	CheckoutHandler *handler.CheckoutHandler
	EventHandler    *handler.EventHandler
	ConnectHandler  *handler.ConnectHandler
	WebhookHandler  *handler.WebhookHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	Redis          *redis.Client
	Backend        repository.Backend
	PaymentGateway gateway.PaymentGateway
	EventPublisher service.EventPublisher
	Clock          clock.Clock

	CheckoutConfig      *service.CheckoutServiceConfig
	RefundConfig        *service.RefundServiceConfig
	StripeWebhookSecret string
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		Redis:          cfg.Redis,
		Backend:        cfg.Backend,
		PaymentGateway: cfg.PaymentGateway,
		EventPublisher: cfg.EventPublisher,
	}
	if c.EventPublisher == nil {
		c.EventPublisher = service.NewNoOpEventPublisher()
	}

	checkoutCfg := cfg.CheckoutConfig
	if checkoutCfg == nil {
		checkoutCfg = &service.CheckoutServiceConfig{}
	}

	c.CheckoutService = service.NewCheckoutService(c.Backend, c.PaymentGateway, cfg.Clock, checkoutCfg)
	c.PurchaseService = service.NewPurchaseService(c.Backend, c.EventPublisher)
	c.RefundService = service.NewRefundService(c.Backend, c.PaymentGateway, c.EventPublisher, cfg.RefundConfig)
	c.ConnectService = service.NewConnectService(c.Backend, c.PaymentGateway, &service.ConnectServiceConfig{
		BaseURL: checkoutCfg.BaseURL,
	})

	c.HealthHandler = handler.NewHealthHandler(c.Backend, c.Redis)
	c.CheckoutHandler = handler.NewCheckoutHandler(c.CheckoutService, c.PurchaseService)
	c.EventHandler = handler.NewEventHandler(c.RefundService)
	c.ConnectHandler = handler.NewConnectHandler(c.ConnectService)
	c.WebhookHandler = handler.NewWebhookHandler(c.PurchaseService, gateway.NewWebhookVerifier(cfg.StripeWebhookSecret))

	return c
}
