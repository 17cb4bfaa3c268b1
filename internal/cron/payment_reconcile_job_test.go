package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kicksnairobi/footwear-backend/internal/payments"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

type fakeReconciler struct {
	stale      []models.Payment
	listErr    error
	results    map[uuid.UUID]enums.PaymentStatus
	errs       map[uuid.UUID]error
	queried    []uuid.UUID
	staleAfter time.Duration
	maxAge     time.Duration
	limit      int
}

func (f *fakeReconciler) StalePendingSTK(_ context.Context, staleAfter, maxAge time.Duration, limit int) ([]models.Payment, error) {
	f.staleAfter, f.maxAge, f.limit = staleAfter, maxAge, limit
	return f.stale, f.listErr
}

func (f *fakeReconciler) QueryMpesaStatus(_ context.Context, id uuid.UUID) (*payments.StatusResult, error) {
	f.queried = append(f.queried, id)
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return &payments.StatusResult{PaymentID: id, Status: f.results[id]}, nil
}

func TestPaymentReconcileJobQueriesEveryStalePayment(t *testing.T) {
	settled, failed, broken := uuid.New(), uuid.New(), uuid.New()
	fake := &fakeReconciler{
		stale: []models.Payment{{ID: settled}, {ID: broken}, {ID: failed}},
		results: map[uuid.UUID]enums.PaymentStatus{
			settled: enums.PaymentStatusSuccess,
			failed:  enums.PaymentStatusFailed,
		},
		errs: map[uuid.UUID]error{broken: errors.New("daraja down")},
	}
	job, err := NewPaymentReconcileJob(PaymentReconcileJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Payments:  fake,
		BatchSize: 10,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatalf("expected aggregated error for the broken payment")
	}
	if len(fake.queried) != 3 {
		t.Fatalf("expected every payment queried despite the failure, got %d", len(fake.queried))
	}
	if fake.staleAfter != defaultReconcileStaleAfter || fake.maxAge != defaultReconcileMaxAge || fake.limit != 10 {
		t.Fatalf("unexpected window %s/%s/%d", fake.staleAfter, fake.maxAge, fake.limit)
	}
}

func TestPaymentReconcileJobListError(t *testing.T) {
	job, _ := NewPaymentReconcileJob(PaymentReconcileJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Payments: &fakeReconciler{listErr: errors.New("db down")},
	})
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected list error")
	}
}

func TestPaymentReconcileJobNothingStale(t *testing.T) {
	fake := &fakeReconciler{}
	job, _ := NewPaymentReconcileJob(PaymentReconcileJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Payments: fake,
	})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fake.queried) != 0 {
		t.Fatalf("expected no queries")
	}
}
