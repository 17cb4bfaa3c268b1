package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/kicksnairobi/footwear-backend/internal/payments"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

const (
	defaultReconcileStaleAfter = 2 * time.Minute
	defaultReconcileMaxAge     = 24 * time.Hour
	defaultReconcileBatch      = 25
)

type stkReconciler interface {
	StalePendingSTK(ctx context.Context, staleAfter, maxAge time.Duration, limit int) ([]models.Payment, error)
	QueryMpesaStatus(ctx context.Context, id uuid.UUID) (*payments.StatusResult, error)
}

// PaymentReconcileJobParams configures the stuck STK push resolver.
type PaymentReconcileJobParams struct {
	Logger     *logger.Logger
	Payments   stkReconciler
	StaleAfter time.Duration
	MaxAge     time.Duration
	BatchSize  int
}

// NewPaymentReconcileJob polls Daraja for mpesa_stk payments whose callback
// never arrived.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultReconcileStaleAfter
	}
	maxAge := params.MaxAge
	if maxAge <= staleAfter {
		maxAge = defaultReconcileMaxAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &paymentReconcileJob{
		logg:       params.Logger,
		payments:   params.Payments,
		staleAfter: staleAfter,
		maxAge:     maxAge,
		batch:      batch,
	}, nil
}

type paymentReconcileJob struct {
	logg       *logger.Logger
	payments   stkReconciler
	staleAfter time.Duration
	maxAge     time.Duration
	batch      int
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	stale, err := j.payments.StalePendingSTK(ctx, j.staleAfter, j.maxAge, j.batch)
	if err != nil {
		return fmt.Errorf("list stale stk payments: %w", err)
	}
	var (
		errs    error
		settled int
		failed  int
		waiting int
	)
	for _, payment := range stale {
		result, err := j.payments.QueryMpesaStatus(ctx, payment.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("payment %s: %w", payment.ID, err))
			continue
		}
		switch result.Status {
		case enums.PaymentStatusSuccess:
			settled++
		case enums.PaymentStatusFailed:
			failed++
		default:
			waiting++
		}
	}
	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(stale),
		"settled":    settled,
		"failed":     failed,
		"waiting":    waiting,
	})
	j.logg.Info(reportCtx, "stk reconcile loop complete")
	return errs
}
