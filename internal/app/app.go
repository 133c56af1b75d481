// Package app assembles the gateway from config: market table, provider
// adapters, event sink, HTTP surface, health checks.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agropay/config"
	"agropay/internal/controller/rest"
	"agropay/internal/controller/rest/handlers"
	"agropay/internal/domain/payment"
	"agropay/internal/domain/registry"
	"agropay/internal/external/mpesa"
	"agropay/internal/external/mtnmomo"
	kafkasink "agropay/internal/external/sink/kafka"
	ossink "agropay/internal/external/sink/opensearch"
	"agropay/internal/gateway"
	"agropay/internal/token"
	"agropay/pkg/health"
	"agropay/pkg/logger"
	"agropay/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const shutdownTimeout = 10 * time.Second

func Run(cfg config.Config) error {
	logger.Setup(logger.Options{Level: cfg.LogLevel, Console: cfg.LogFormat == "console"})

	reg, err := registry.Load(cfg.MarketsPath)
	if err != nil {
		return fmt.Errorf("load market table: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := newEventSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create event sink: %w", err)
	}
	defer sink.Close()

	adapters, checkers, err := buildAdapters(cfg, reg)
	if err != nil {
		return err
	}
	if cfg.EventSinkMode == "kafka" {
		checkers = append(checkers, health.NewKafkaChecker(cfg.KafkaBrokers))
	}

	service := gateway.NewService(reg, adapters, sink)
	normalizer := gateway.NewNormalizer(adapters, sink)

	engine := newEngine()
	router := rest.NewRouter(
		handlers.NewPaymentHandler(service),
		handlers.NewCallbackHandler(normalizer),
		health.NewRegistry(checkers...),
	)
	router.SetUp(engine)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("payment gateway started", "port", cfg.Port, "providers", len(adapters), "sink", cfg.EventSinkMode)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// buildAdapters constructs one adapter per provider with configured
// credentials. Provider minimum amounts come from the market table.
func buildAdapters(cfg config.Config, reg *registry.Registry) ([]gateway.Adapter, []health.Checker, error) {
	tokenOpts := []token.Option{token.WithSafetyMargin(cfg.TokenSafetyMargin)}

	var adapters []gateway.Adapter
	var checkers []health.Checker

	if cfg.Mpesa.Enabled() {
		adapters = append(adapters, mpesa.New(mpesa.Config{
			BaseURL:        cfg.Mpesa.BaseURL,
			ConsumerKey:    cfg.Mpesa.ConsumerKey,
			ConsumerSecret: cfg.Mpesa.ConsumerSecret,
			ShortCode:      cfg.Mpesa.ShortCode,
			Passkey:        cfg.Mpesa.Passkey,
			CallbackURL:    cfg.Mpesa.CallbackURL,
			Environment:    cfg.Mpesa.Environment,
			Timeout:        cfg.ProviderHTTPTimeout,
			MinAmount:      minAmount(reg, payment.ProviderMpesa),
		}, tokenOpts...))
		checkers = append(checkers, health.NewProviderChecker("mpesa", cfg.Mpesa.BaseURL, nil))
	}

	if cfg.MTN.Enabled() {
		adapters = append(adapters, mtnmomo.New(mtnmomo.Config{
			BaseURL:           cfg.MTN.BaseURL,
			SubscriptionKey:   cfg.MTN.SubscriptionKey,
			APIUser:           cfg.MTN.APIUser,
			APIKey:            cfg.MTN.APIKey,
			TargetEnvironment: cfg.MTN.TargetEnvironment,
			CallbackURL:       cfg.MTN.CallbackURL,
			Timeout:           cfg.ProviderHTTPTimeout,
			MinAmount:         minAmount(reg, payment.ProviderMTNMoMo),
		}, tokenOpts...))
		checkers = append(checkers, health.NewProviderChecker("mtn_momo", cfg.MTN.BaseURL, nil))
	}

	if len(adapters) == 0 {
		return nil, nil, errors.New("no payment providers configured")
	}
	return adapters, checkers, nil
}

// minAmount returns the smallest configured market minimum for a provider.
func minAmount(reg *registry.Registry, p payment.Provider) decimal.Decimal {
	var min decimal.Decimal
	found := false
	for _, m := range reg.Markets() {
		if m.Provider != p {
			continue
		}
		if !found || m.MinAmount.LessThan(min) {
			min = m.MinAmount
			found = true
		}
	}
	return min
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		metrics.GinMiddleware(),
		logger.CorrelationMiddleware(),
		logger.RequestLogger(),
		gin.Recovery(),
	)
	return engine
}

func newEventSink(ctx context.Context, cfg config.Config) (gateway.EventSink, error) {
	switch cfg.EventSinkMode {
	case "kafka":
		return kafkasink.NewPublisher(cfg.KafkaBrokers, cfg.KafkaPaymentsTopic), nil
	case "opensearch":
		return ossink.NewSink(ctx, cfg.OpensearchURLs, cfg.OpensearchIndex)
	default:
		return gateway.NewLogSink(), nil
	}
}
