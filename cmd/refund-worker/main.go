package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prohmpiriya/offer-checkout/internal/clock"
	"github.com/prohmpiriya/offer-checkout/internal/consumer"
	"github.com/prohmpiriya/offer-checkout/internal/di"
	"github.com/prohmpiriya/offer-checkout/internal/dto"
	"github.com/prohmpiriya/offer-checkout/internal/metrics"
	"github.com/prohmpiriya/offer-checkout/internal/service"
	"github.com/prohmpiriya/offer-checkout/pkg/config"
	"github.com/prohmpiriya/offer-checkout/pkg/kafka"
	"github.com/prohmpiriya/offer-checkout/pkg/logger"
	"github.com/prohmpiriya/offer-checkout/pkg/retry"
	"github.com/prohmpiriya/offer-checkout/pkg/telemetry"
	"go.uber.org/zap"
)

const workerName = "refund-worker"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(&logger.Config{
		Level:       cfg.App.Environment,
		ServiceName: workerName,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Refund Worker...")

	if len(cfg.Kafka.Brokers) == 0 {
		appLog.Fatal("KAFKA_BROKERS is required for the refund worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    workerName,
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

	paymentGateway, err := di.NewPaymentGateway(cfg)
	if err != nil {
		appLog.Fatal("Failed to initialize payment gateway", zap.Error(err))
	}

	// One producer serves both outcome events and the DLQ
	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Kafka.Brokers,
		ClientID:      cfg.Kafka.ClientID + "-" + workerName,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	})
	if err != nil {
		appLog.Fatal("Failed to create kafka producer", zap.Error(err))
	}
	defer producer.Close()

	publisher := service.NewEventPublisherFromProducer(producer, workerName)
	refundService := service.NewRefundService(backend, paymentGateway, publisher, &service.RefundServiceConfig{
		Concurrency: cfg.Refund.Concurrency,
	})

	source, err := kafka.NewConsumer(ctx, &kafka.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		GroupID:       cfg.Kafka.ConsumerGroup + "-" + workerName,
		ClientID:      cfg.Kafka.ClientID + "-" + workerName + "-consumer",
		Topics:        []string{dto.TopicEventCancelRequested},
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	})
	if err != nil {
		appLog.Fatal("Failed to create kafka consumer", zap.Error(err))
	}

	cancelConsumer := consumer.NewCancelConsumer(
		source,
		retry.NewDLQPublisher(producer, workerName),
		refundService,
		consumer.DefaultCancelConsumerConfig(),
	)

	done := make(chan error, 1)
	go func() {
		done <- cancelConsumer.Run(ctx)
	}()

	appLog.Info("Refund worker started",
		zap.String("topic", dto.TopicEventCancelRequested),
		zap.String("gateway", paymentGateway.Name()),
	)

	// Wait for interrupt signal or consumer exit
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		appLog.Info("Shutting down refund worker...")
		cancel()
		// the in-flight record is not committed and will be redelivered
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			appLog.Warn("Cancel consumer did not stop in time")
		}
	case err := <-done:
		if err != nil {
			appLog.Error("Cancel consumer stopped", zap.Error(err))
		}
		cancel()
	}

	source.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("Telemetry shutdown failed", zap.Error(err))
	}

	appLog.Info("Refund worker stopped")
}
