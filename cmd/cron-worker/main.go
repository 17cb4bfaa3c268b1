package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kicksnairobi/footwear-backend/internal/cart"
	"github.com/kicksnairobi/footwear-backend/internal/cron"
	"github.com/kicksnairobi/footwear-backend/internal/events"
	"github.com/kicksnairobi/footwear-backend/internal/invoices"
	"github.com/kicksnairobi/footwear-backend/internal/numbering"
	"github.com/kicksnairobi/footwear-backend/internal/orders"
	"github.com/kicksnairobi/footwear-backend/internal/payments"
	"github.com/kicksnairobi/footwear-backend/internal/receipts"
	"github.com/kicksnairobi/footwear-backend/pkg/config"
	"github.com/kicksnairobi/footwear-backend/pkg/db"
	"github.com/kicksnairobi/footwear-backend/pkg/instance"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
	"github.com/kicksnairobi/footwear-backend/pkg/metrics"
	"github.com/kicksnairobi/footwear-backend/pkg/migrate"
	"github.com/kicksnairobi/footwear-backend/pkg/mpesa"
	"github.com/kicksnairobi/footwear-backend/pkg/outbox"
	"github.com/kicksnairobi/footwear-backend/pkg/redis"
)

const lockKeyFormat = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

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

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	jobs, err := buildJobs(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Reconcile.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"instance":    instance.GetID(),
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) ([]cron.Job, error) {
	conn := dbClient.DB()
	publisher := events.Multi{
		events.NewRedisBroadcaster(redisClient, cfg.Eventing.RealtimeChannelPrefix, logg),
		events.NewLogPublisher(logg),
	}
	outboxRepo := outbox.NewRepository(conn)
	outboxSvc := outbox.NewService(outboxRepo, logg)
	invoiceRepo := invoices.NewRepository(conn)

	receiptSvc, err := receipts.NewService(receipts.ServiceParams{
		Repo:      receipts.NewRepository(conn),
		Invoices:  invoiceRepo,
		Tx:        dbClient,
		Outbox:    outboxSvc,
		Numbers:   numbering.NewGenerator(redisClient, logg),
		Publisher: publisher,
		Logger:    logg,
	})
	if err != nil {
		return nil, err
	}

	paymentParams := payments.ServiceParams{
		Repo:      payments.NewRepository(conn),
		Invoices:  invoiceRepo,
		Orders:    orders.NewRepository(conn),
		Receipts:  receiptSvc,
		Limiter:   redisClient,
		Tx:        dbClient,
		Outbox:    outboxSvc,
		Publisher: publisher,
		Metrics:   metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
		Logger:    logg,
	}

	jobs := []cron.Job{}
	mpesaClient, err := mpesa.NewClient(cfg.Mpesa, mpesa.WithMetrics(metrics.NewProcessorMetrics(prometheus.DefaultRegisterer)))
	if err == nil {
		paymentParams.Mpesa = mpesaClient
		paymentSvc, err := payments.NewService(paymentParams)
		if err != nil {
			return nil, err
		}
		reconcile, err := cron.NewPaymentReconcileJob(cron.PaymentReconcileJobParams{
			Logger:     logg,
			Payments:   paymentSvc,
			StaleAfter: cfg.Reconcile.StaleAfter,
			MaxAge:     cfg.Reconcile.MaxAge,
			BatchSize:  cfg.Reconcile.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, reconcile)
	} else {
		logg.Warn(logg.WithFields(context.Background(), map[string]any{"reason": err.Error()}), "mpesa disabled; payment reconcile job skipped")
	}

	abandonment, err := cron.NewCartAbandonmentJob(cron.CartAbandonmentJobParams{
		Logger: logg,
		Carts:  cart.NewRepository(conn),
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:           logg,
		DB:               dbClient,
		Events:           outboxRepo,
		DeadLetters:      outbox.NewDLQRepository(conn),
		RetentionDays:    cfg.Outbox.RetentionDays,
		DLQRetentionDays: cfg.Outbox.DLQRetentionDays,
	})
	if err != nil {
		return nil, err
	}
	return append(jobs, abandonment, retention), nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
