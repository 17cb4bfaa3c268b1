// Package products exposes the catalog lookups checkout depends on.
package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
)

// Repository is the read-only catalog surface.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	TitlesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// TitlesByID returns the current title of each known product. Unknown ids are
// absent from the map.
func (r *repository) TitlesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	titles := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).
		Select("id", "title").
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		titles[row.ID] = row.Title
	}
	return titles, nil
}
