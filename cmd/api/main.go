package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kicksnairobi/footwear-backend/api/responses"
	"github.com/kicksnairobi/footwear-backend/api/routes"
	"github.com/kicksnairobi/footwear-backend/internal/cart"
	"github.com/kicksnairobi/footwear-backend/internal/coupons"
	"github.com/kicksnairobi/footwear-backend/internal/events"
	"github.com/kicksnairobi/footwear-backend/internal/invoices"
	"github.com/kicksnairobi/footwear-backend/internal/numbering"
	"github.com/kicksnairobi/footwear-backend/internal/orders"
	"github.com/kicksnairobi/footwear-backend/internal/packaging"
	"github.com/kicksnairobi/footwear-backend/internal/payments"
	"github.com/kicksnairobi/footwear-backend/internal/products"
	"github.com/kicksnairobi/footwear-backend/internal/receipts"
	"github.com/kicksnairobi/footwear-backend/internal/webhooks"
	"github.com/kicksnairobi/footwear-backend/pkg/config"
	"github.com/kicksnairobi/footwear-backend/pkg/db"
	"github.com/kicksnairobi/footwear-backend/pkg/instance"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
	"github.com/kicksnairobi/footwear-backend/pkg/metrics"
	"github.com/kicksnairobi/footwear-backend/pkg/migrate"
	"github.com/kicksnairobi/footwear-backend/pkg/mpesa"
	"github.com/kicksnairobi/footwear-backend/pkg/outbox"
	"github.com/kicksnairobi/footwear-backend/pkg/paystack"
	"github.com/kicksnairobi/footwear-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	responses.SetDebug(!cfg.App.IsProd())

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Dependencies, error) {
	conn := dbClient.DB()
	registerer := prometheus.DefaultRegisterer
	processorMetrics := metrics.NewProcessorMetrics(registerer)

	publisher := events.Multi{
		events.NewRedisBroadcaster(redisClient, cfg.Eventing.RealtimeChannelPrefix, logg),
		events.NewLogPublisher(logg),
	}
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)
	numbers := numbering.NewGenerator(redisClient, logg)

	packagingSvc, err := packaging.NewService(packaging.NewRepository(conn), dbClient, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	if err != nil {
		return routes.Dependencies{}, err
	}

	invoiceRepo := invoices.NewRepository(conn)
	invoiceSvc, err := invoices.NewService(invoices.ServiceParams{
		Repo:      invoiceRepo,
		Tx:        dbClient,
		Outbox:    outboxSvc,
		Numbers:   numbers,
		Publisher: publisher,
		Logger:    logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	receiptSvc, err := receipts.NewService(receipts.ServiceParams{
		Repo:      receipts.NewRepository(conn),
		Invoices:  invoiceRepo,
		Tx:        dbClient,
		Outbox:    outboxSvc,
		Numbers:   numbers,
		Publisher: publisher,
		Logger:    logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	orderRepo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:      orderRepo,
		Carts:     cart.NewRepository(conn),
		Products:  products.NewRepository(conn),
		Packaging: packagingSvc,
		Coupons:   couponSvc,
		Invoices:  invoiceSvc,
		Receipts:  receiptSvc,
		Fees:      orders.ZeroFees{},
		Tx:        dbClient,
		Outbox:    outboxSvc,
		Publisher: publisher,
		Logger:    logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	paymentParams := payments.ServiceParams{
		Repo:              payments.NewRepository(conn),
		Invoices:          invoiceRepo,
		Orders:            orderRepo,
		Receipts:          receiptSvc,
		Limiter:           redisClient,
		Tx:                dbClient,
		Outbox:            outboxSvc,
		Publisher:         publisher,
		Metrics:           metrics.NewSettlementMetrics(registerer),
		Logger:            logg,
		MpesaCallbackPath: strings.TrimRight(cfg.App.APIBasePath, "/") + "/payments/webhooks/mpesa",
	}

	// Processors stay nil when unconfigured so their methods report a
	// dependency error instead of failing at boot.
	if mpesaClient, err := mpesa.NewClient(cfg.Mpesa, mpesa.WithMetrics(processorMetrics)); err == nil {
		paymentParams.Mpesa = mpesaClient
	} else {
		logg.Warn(logg.WithFields(context.Background(), map[string]any{"reason": err.Error()}), "mpesa disabled")
	}

	deps := routes.Dependencies{}
	if paystackClient, err := paystack.NewClient(cfg.Paystack, paystack.WithMetrics(processorMetrics)); err == nil {
		paymentParams.Paystack = paystackClient
		deps.PaystackVerifier = paystackClient
	} else {
		logg.Warn(logg.WithFields(context.Background(), map[string]any{"reason": err.Error()}), "paystack disabled")
	}

	paymentSvc, err := payments.NewService(paymentParams)
	if err != nil {
		return routes.Dependencies{}, err
	}

	mpesaGuard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, webhooks.ScopeMpesa)
	if err != nil {
		return routes.Dependencies{}, err
	}
	paystackGuard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, webhooks.ScopePaystack)
	if err != nil {
		return routes.Dependencies{}, err
	}

	deps.DB = dbClient
	deps.Cache = redisClient
	deps.IdempotencyStore = redisClient
	deps.Orders = orderSvc
	deps.Invoices = invoiceSvc
	deps.Payments = paymentSvc
	deps.Receipts = receiptSvc
	deps.Packaging = packagingSvc
	deps.MpesaCallbacks = paymentSvc
	deps.PaystackWebhooks = paymentSvc
	deps.MpesaGuard = mpesaGuard
	deps.PaystackGuard = paystackGuard
	return deps, nil
}
