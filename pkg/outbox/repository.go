package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
)

var errTxRequired = errors.New("outbox: transaction required")

// Repository persists outbox_events rows. Writes go through the caller's
// transaction so an event never outlives a rolled back state change.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errTxRequired
	}
	if !event.EventType.IsValid() || !event.AggregateType.IsValid() {
		return fmt.Errorf("outbox: unknown event %s on %s", event.EventType, event.AggregateType)
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return tx.Create(&event).Error
}

// FetchUnpublishedForPublish returns the oldest pending rows still under the
// attempt ceiling. On Postgres the rows stay locked with SKIP LOCKED until tx
// ends, so parallel publishers never relay the same event.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	var rows []models.OutboxEvent
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at, id").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	return r.update(tx, id, map[string]any{
		"published_at":  r.now().UTC(),
		"attempt_count": gorm.Expr("attempt_count + 1"),
		"last_error":    nil,
	})
}

func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	return r.update(tx, id, map[string]any{
		"attempt_count": gorm.Expr("attempt_count + 1"),
		"last_error":    cause.Error(),
	})
}

// MarkTerminalTx pins attempt_count at the ceiling so the row is never
// fetched again. The dead-letter copy lives in outbox_dlq.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, cause error, terminalAttempts int) error {
	return r.update(tx, id, map[string]any{
		"attempt_count": terminalAttempts,
		"last_error":    cause.Error(),
	})
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if tx == nil {
		return errTxRequired
	}
	res := tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("outbox: event %s not found", id)
	}
	return nil
}

// DeletePublishedBefore prunes relayed rows older than cutoff. Pending and
// dead-lettered rows are kept.
func (r *Repository) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}
