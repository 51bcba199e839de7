package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/offer-checkout/internal/clock"
	"github.com/prohmpiriya/offer-checkout/internal/di"
	"github.com/prohmpiriya/offer-checkout/internal/metrics"
	"github.com/prohmpiriya/offer-checkout/internal/service"
	"github.com/prohmpiriya/offer-checkout/pkg/config"
	"github.com/prohmpiriya/offer-checkout/pkg/logger"
	"github.com/prohmpiriya/offer-checkout/pkg/middleware"
	pkgredis "github.com/prohmpiriya/offer-checkout/pkg/redis"
	"github.com/prohmpiriya/offer-checkout/pkg/telemetry"
	"go.uber.org/zap"
)

const serviceName = "offer-checkout"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(&logger.Config{
		Level:       cfg.App.Environment,
		ServiceName: serviceName,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Offer Checkout Service...", zap.String("version", cfg.App.Version))

	ctx := context.Background()

	// Initialize telemetry
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn("Telemetry initialization failed", zap.Error(err))
	}
	metrics.Init()

	clk := clock.NewSystem()

	backend, closeBackend, err := di.NewBackend(ctx, cfg, clk)
	if err != nil {
		appLog.Fatal("Failed to initialize backend", zap.Error(err))
	}
	defer closeBackend()

	// Redis only backs idempotency replay, so the service runs without it
	redisCfg := &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		MaxRetries:    3,
		RetryInterval: 100 * time.Millisecond,
	}
	redisClient, err := pkgredis.NewClient(ctx, redisCfg)
	if err != nil {
		appLog.Warn("Redis connection failed, idempotency replay disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		appLog.Info("Redis connected", zap.String("addr", redisCfg.Addr()))
	}

	paymentGateway, err := di.NewPaymentGateway(cfg)
	if err != nil {
		appLog.Fatal("Failed to initialize payment gateway", zap.Error(err))
	}

	// Kafka is optional. Without it purchases and cancellations are not
	// announced and async cancellation is unavailable.
	var eventPublisher service.EventPublisher = service.NewNoOpEventPublisher()
	if cfg.Kafka.Enabled {
		publisher, err := service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:     cfg.Kafka.Brokers,
			ServiceName: serviceName,
			ClientID:    cfg.Kafka.ClientID + "-api",
		})
		if err != nil {
			appLog.Warn("Kafka publisher unavailable, events will not be published", zap.Error(err))
		} else {
			eventPublisher = publisher
			appLog.Info("Kafka publisher connected", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	}
	defer eventPublisher.Close()

	container := di.NewContainer(&di.ContainerConfig{
		Redis:          redisClient,
		Backend:        backend,
		PaymentGateway: paymentGateway,
		EventPublisher: eventPublisher,
		Clock:          clk,
		CheckoutConfig: &service.CheckoutServiceConfig{
			BaseURL:            cfg.Checkout.BaseURL,
			Currency:           cfg.Stripe.Currency,
			OfferTTL:           cfg.Checkout.OfferTTL,
			PlatformFeePercent: cfg.Checkout.PlatformFeePercent,
		},
		RefundConfig: &service.RefundServiceConfig{
			Concurrency: cfg.Refund.Concurrency,
		},
		StripeWebhookSecret: cfg.Stripe.WebhookSecret,
	})

	// Setup Gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var idempotencyStore middleware.IdempotencyStore
	if redisClient != nil {
		idempotencyStore = redisClient
	}
	router := setupRouter(cfg, container, idempotencyStore)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	go func() {
		appLog.Info("Offer Checkout Service listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("Telemetry shutdown failed", zap.Error(err))
	}

	appLog.Info("Server exited gracefully")
}

// setupRouter registers middleware and routes. A nil store disables
// idempotency replay.
func setupRouter(cfg *config.Config, container *di.Container, store middleware.IdempotencyStore) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(telemetry.TracingMiddleware(serviceName))
	router.Use(middleware.RequestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.IdempotencyKeyHeader},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	idempotent := middleware.Idempotency(&middleware.IdempotencyConfig{
		Store:         store,
		TTL:           middleware.DefaultIdempotencyTTL,
		ProcessingTTL: middleware.DefaultProcessingTTL,
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"version": cfg.App.Version,
				"service": serviceName,
				"gateway": container.PaymentGateway.Name(),
			})
		})

		// Stripe authenticates itself through the signature header
		v1.POST("/webhooks/stripe", container.WebhookHandler.HandleStripeWebhook)

		authed := v1.Group("", middleware.JWTAuth(&middleware.AuthConfig{
			Secret: cfg.JWT.Secret,
			Issuer: cfg.JWT.Issuer,
		}))

		events := authed.Group("/events")
		{
			events.POST("/:eventId/checkout", idempotent, container.CheckoutHandler.CreateCheckoutSession)
			events.POST("/:eventId/cancel", idempotent, container.EventHandler.CancelEvent)
		}

		authed.GET("/tickets/latest", container.CheckoutHandler.GetLatestTicket)

		connect := authed.Group("/connect")
		{
			connect.POST("/account", idempotent, container.ConnectHandler.CreateAccount)
			connect.GET("/account", container.ConnectHandler.GetAccount)
			connect.GET("/account/status", container.ConnectHandler.GetAccountStatus)
			connect.POST("/account/login-link", container.ConnectHandler.CreateLoginLink)
			connect.POST("/account/onboarding-link", container.ConnectHandler.CreateOnboardingLink)
		}
	}

	return router
}
