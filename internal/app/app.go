package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gdvshop/backoffice/internal/domain/box"
	"github.com/gdvshop/backoffice/internal/domain/delivery"
	"github.com/gdvshop/backoffice/internal/domain/order"
	"github.com/gdvshop/backoffice/internal/domain/quote"
	"github.com/gdvshop/backoffice/internal/handler"
	"github.com/gdvshop/backoffice/internal/notification"
	"github.com/gdvshop/backoffice/internal/payment"
	"github.com/gdvshop/backoffice/internal/repository"
	"github.com/gdvshop/backoffice/pkg/health"
	"github.com/gdvshop/backoffice/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the outbox
// worker, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	addressRepo := repository.NewAddressRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	quoteRepo := repository.NewQuoteRepository(pool)
	rateRepo := repository.NewDeliveryRateRepository(pool)
	boxRepo := repository.NewBoxRepository(pool)
	outboxRepo := repository.NewOutboxRepository(pool)

	appMetrics, err := newMetrics(m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create metrics")
	}

	// Payment provider: Stripe when configured, local fake otherwise.
	var provider payment.Provider
	if cfg.Stripe.SecretKey != "" {
		provider = payment.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL)
	} else {
		lg.Warn("No Stripe key configured, using fake payment provider")
		provider = &payment.FakeProvider{BaseURL: cfg.Stripe.FakeCheckoutURL}
	}
	provider = &instrumentedProvider{next: provider, m: appMetrics}

	// Domain services.
	orderService := order.NewService(productRepo, customerRepo, orderRepo, order.Config{
		ReferencePrefix: cfg.Order.ReferencePrefix,
		MinQtyStandard:  cfg.Order.MinQtyStandard,
		MinQtyPro:       cfg.Order.MinQtyPro,
	})
	checkoutService := order.NewCheckoutService(orderRepo, provider, cfg.Order.ReferencePrefix, cfg.Currency)
	conversionService := quote.NewConversionService(quoteRepo, customerRepo, addressRepo, orderService, checkoutService)
	boxService := box.NewService(boxRepo, provider, cfg.Currency)
	deliveryEngine := delivery.NewEngine(rateRepo)

	// Confirmation outbox worker.
	var sender notification.Sender
	if cfg.SMTP.Host != "" {
		sender = notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		lg.Warn("No SMTP relay configured, confirmation emails will be logged")
		sender = notification.LogSender{}
	}
	worker := notification.NewWorker(outboxRepo, &instrumentedSender{next: sender, m: appMetrics},
		cfg.Outbox.Interval, cfg.Outbox.BatchSize)

	// HTTP handlers: health endpoints + API routes on one server.
	h := handler.NewHandler(productRepo, orderService, checkoutService, conversionService, boxService, deliveryEngine)
	mux := h.Routes()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "Idempotency-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("backoffice-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "outbox worker")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	<-shutdownDone
	return nil
}
