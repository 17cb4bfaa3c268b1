package cron

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

const (
	defaultOutboxRetentionDays = 30
	defaultDLQRetentionDays    = 90
	outboxRetentionCadence     = 24 * time.Hour
	day                        = 24 * time.Hour
)

type publishedEventPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger           *logger.Logger
	DB               txRunner
	Events           publishedEventPruner
	DeadLetters      deadLetterPruner
	RetentionDays    int
	DLQRetentionDays int
}

// NewOutboxRetentionJob prunes relayed outbox rows and old dead letters once
// a day. Dead letters are kept longer so operators can inspect them.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Events == nil:
		return nil, errors.New("outbox repository required")
	case params.DeadLetters == nil:
		return nil, errors.New("outbox dlq repository required")
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		events:      params.Events,
		deadLetters: params.DeadLetters,
		keepEvents:  daysOr(params.RetentionDays, defaultOutboxRetentionDays),
		keepDLQ:     daysOr(params.DLQRetentionDays, defaultDLQRetentionDays),
		now:         time.Now,
	}, nil
}

func daysOr(days, fallback int) time.Duration {
	if days <= 0 {
		days = fallback
	}
	return time.Duration(days) * day
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	events      publishedEventPruner
	deadLetters deadLetterPruner
	keepEvents  time.Duration
	keepDLQ     time.Duration
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Cadence() time.Duration { return outboxRetentionCadence }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	eventCutoff := now.Add(-j.keepEvents)
	dlqCutoff := now.Add(-j.keepDLQ)

	var events, deadLetters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if events, err = j.events.DeletePublishedBefore(ctx, tx, eventCutoff); err != nil {
			return err
		}
		deadLetters, err = j.deadLetters.DeleteFailedBefore(ctx, tx, dlqCutoff)
		return err
	})
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"event_cutoff":         eventCutoff,
		"dlq_cutoff":           dlqCutoff,
		"events_deleted":       events,
		"dead_letters_deleted": deadLetters,
	}), "outbox.retention.done")
	return nil
}
