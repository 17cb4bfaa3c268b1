package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

const (
	cartIdleDays           = 14
	cartAbandonmentCadence = time.Hour
)

type idleCartSweeper interface {
	AbandonIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CartAbandonmentJobParams configures the idle cart sweep.
type CartAbandonmentJobParams struct {
	Logger   *logger.Logger
	Carts    idleCartSweeper
	IdleDays int
}

// NewCartAbandonmentJob marks active carts idle for IdleDays as abandoned so
// they can no longer be converted into orders.
func NewCartAbandonmentJob(params CartAbandonmentJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	idle := params.IdleDays
	if idle <= 0 {
		idle = cartIdleDays
	}
	return &cartAbandonmentJob{
		logg:     params.Logger,
		carts:    params.Carts,
		idleDays: idle,
		now:      time.Now,
	}, nil
}

type cartAbandonmentJob struct {
	logg     *logger.Logger
	carts    idleCartSweeper
	idleDays int
	now      func() time.Time
}

func (j *cartAbandonmentJob) Name() string { return "cart-abandonment" }

func (j *cartAbandonmentJob) Cadence() time.Duration { return cartAbandonmentCadence }

func (j *cartAbandonmentJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.idleDays) * 24 * time.Hour)
	affected, err := j.carts.AbandonIdleBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("abandon idle carts: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"abandoned": affected,
	}), "idle carts abandoned")
	return nil
}
