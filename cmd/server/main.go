package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/DukeRupert/challan/internal"
	"github.com/DukeRupert/challan/internal/billing"
	"github.com/DukeRupert/challan/internal/domain"
	"github.com/DukeRupert/challan/internal/email"
	"github.com/DukeRupert/challan/internal/handler"
	"github.com/DukeRupert/challan/internal/jobs"
	"github.com/DukeRupert/challan/internal/lock"
	"github.com/DukeRupert/challan/internal/metrics"
	"github.com/DukeRupert/challan/internal/middleware"
	"github.com/DukeRupert/challan/internal/notify"
	"github.com/DukeRupert/challan/internal/payment"
	"github.com/DukeRupert/challan/internal/repository"
	"github.com/DukeRupert/challan/internal/service"
	"github.com/DukeRupert/challan/internal/sms"
	"github.com/DukeRupert/challan/internal/storage"
	"github.com/DukeRupert/challan/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	store := repository.NewStore(db)

	// ==========================================================================
	// Delivery: senders run in the worker, channels enqueue
	// ==========================================================================

	mailer, err := newEmailSender(cfg, logger)
	if err != nil {
		return err
	}
	texter := newSMSSender(cfg, logger)

	gateways := newGatewayRegistry(cfg)
	logger.Info("Payment gateways ready", "gateways", gateways.Gateways())

	var w *worker.Worker
	if cfg.WorkerEnabled {
		w, err = worker.New(store.Queries(), worker.Config{
			Concurrency:       cfg.WorkerConcurrency,
			PollInterval:      cfg.WorkerPollInterval,
			JobTimeout:        cfg.WorkerJobTimeout,
			ShutdownTimeout:   30 * time.Second,
			StaleJobThreshold: 10 * time.Minute,
		}, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		w.Register(jobs.NewDeliverEmailHandler(mailer, logger))
		w.Register(jobs.NewDeliverSMSHandler(texter, logger))
		w.Register(jobs.NewRecordRefundHandler(func(ctx context.Context, paymentID uuid.UUID, refundID string, amount decimal.Decimal, at time.Time) error {
			_, _, err := service.RecordRefund(ctx, store, paymentID, refundID, amount, at)
			return err
		}, logger))
		w.Register(jobs.NewReverseChargeHandler(gateways, logger))
		w.Start(ctx)
		defer w.Stop()
	}

	archive, err := newStorage(cfg, logger)
	if err != nil {
		return err
	}

	channels := []notify.Channel{
		notify.NewEmailChannel(store.Queries()),
		notify.NewSMSChannel(store.Queries()),
		notify.NewAuditChannel(archive),
	}
	if cfg.NATSURL != "" {
		nc, err := notify.ConnectNATS(cfg.NATSURL, logger)
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		defer nc.Drain()
		channels = append(channels, notify.NewNATSChannel(nc))
	}
	bus := notify.NewBus(logger, cfg.NotifyChannelTimeout, channels...)
	logger.Info("Notification bus ready", "channels", bus.Channels())

	// ==========================================================================
	// Payments, refunds and locking
	// ==========================================================================

	locker, err := newLocker(ctx, cfg)
	if err != nil {
		return err
	}

	disabled := make(map[domain.Capability]bool, len(cfg.DisabledCapabilities))
	for _, c := range cfg.DisabledCapabilities {
		disabled[domain.Capability(c)] = true
	}

	svc := service.NewChallanService(
		store,
		payment.NewDispatcher(),
		gateways,
		locker,
		store.Queries(),
		bus,
		service.ChallanConfig{DueDays: cfg.ChallanDueDays, Disabled: disabled},
		logger,
	)
	facade := service.NewFacade(svc, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty; bearer tokens cannot be verified")
	}
	authMw := middleware.NewAuthMiddleware(cfg.JWTSecret, logger)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute, logger)
	defer limiter.Stop()
	rateMw := middleware.NewRateLimitMiddleware(limiter, logger)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	if !metricsAuth.Enabled() {
		logger.Warn("METRICS_USERNAME and METRICS_PASSWORD are empty; /metrics is unprotected")
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", handler.NewHealthHandler(db, logger))
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	requireUser := middleware.Stack(authMw.RequireUser, rateMw.Limit)
	handler.NewChallanHandler(facade, logger).RegisterRoutes(mux, requireUser)

	root := middleware.Stack(
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		metrics.Middleware,
		middleware.NewSecurityHeadersMiddleware(cfg.IsProduction()).Handler,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-errCh:
		logger.Error("Server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func newEmailSender(cfg *internal.Config, logger *slog.Logger) (email.Sender, error) {
	switch cfg.EmailProvider {
	case "sendgrid":
		return email.NewSendGridSender(cfg.SendGridAPIKey, cfg.SMTPFrom, cfg.SMTPFromName, logger), nil
	case "smtp":
		return email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}, logger), nil
	}
	return nil, fmt.Errorf("unknown email provider %q", cfg.EmailProvider)
}

func newSMSSender(cfg *internal.Config, logger *slog.Logger) sms.Sender {
	var s sms.Sender = sms.NewLogSender(logger)
	if cfg.SMSProvider == "twilio" {
		s = sms.NewTwilioSender(sms.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
		}, logger)
	}
	return sms.NewThrottled(s, cfg.SMSRatePerMinute, 5)
}

func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.StorageProvider == "r2" {
		s, err := storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			Endpoint:        cfg.R2Endpoint,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("r2 storage initialization failed: %w", err)
		}
		return s, nil
	}
	s, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: cfg.LocalStoragePath}, logger)
	if err != nil {
		return nil, fmt.Errorf("local storage initialization failed: %w", err)
	}
	return s, nil
}

// newGatewayRegistry routes each payment gateway to a provider that both
// charges and refunds, so refunds always reach the account holding the
// charge. Gateways without credentials are simulated. UPI payments settle
// through Razorpay.
func newGatewayRegistry(cfg *internal.Config) *billing.Registry {
	reg := billing.NewRegistry()

	if cfg.StripeSecretKey != "" {
		reg.Register(payment.GatewayStripe, billing.NewStripeGateway(cfg.StripeSecretKey))
	} else {
		reg.Register(payment.GatewayStripe, billing.NewSimulated(payment.GatewayStripe))
	}

	if cfg.RazorpayKeyID != "" {
		rp := billing.NewRazorpayGateway(billing.RazorpayConfig{
			KeyID:     cfg.RazorpayKeyID,
			KeySecret: cfg.RazorpayKeySecret,
			BaseURL:   cfg.RazorpayBaseURL,
		})
		reg.Register(payment.GatewayRazorpay, rp)
		reg.Register(payment.GatewayUPI, rp)
	} else {
		reg.Register(payment.GatewayRazorpay, billing.NewSimulated(payment.GatewayRazorpay))
		reg.Register(payment.GatewayUPI, billing.NewSimulated(payment.GatewayUPI))
	}
	return reg
}

func newLocker(ctx context.Context, cfg *internal.Config) (lock.Locker, error) {
	if cfg.LockBackend == lock.BackendRedis {
		client, err := lock.NewRedisFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return lock.NewRedis(client, "challan:lock:", lock.DefaultTTL), nil
	}
	return lock.NewLocal(), nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
