package packaging

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
)

// Repository persists packaging options.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, option *models.PackagingOption) error
	Save(ctx context.Context, option *models.PackagingOption) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PackagingOption, error)
	FindActiveDefault(ctx context.Context) (*models.PackagingOption, error)
	FindCheapestActive(ctx context.Context, exclude uuid.UUID) (*models.PackagingOption, error)
	List(ctx context.Context, activeOnly bool) ([]models.PackagingOption, error)
	ClearDefaults(ctx context.Context, except uuid.UUID) error
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

func (r *repository) Create(ctx context.Context, option *models.PackagingOption) error {
	if option.ID == uuid.Nil {
		option.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(option).Error
}

func (r *repository) Save(ctx context.Context, option *models.PackagingOption) error {
	return r.db.WithContext(ctx).Save(option).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PackagingOption{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PackagingOption, error) {
	var option models.PackagingOption
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&option).Error; err != nil {
		return nil, err
	}
	return &option, nil
}

func (r *repository) FindActiveDefault(ctx context.Context) (*models.PackagingOption, error) {
	var option models.PackagingOption
	err := r.db.WithContext(ctx).
		Where("is_default = ? AND is_active = ?", true, true).
		First(&option).Error
	if err != nil {
		return nil, err
	}
	return &option, nil
}

// FindCheapestActive returns the lowest priced active option other than exclude.
// Ties go to the oldest option.
func (r *repository) FindCheapestActive(ctx context.Context, exclude uuid.UUID) (*models.PackagingOption, error) {
	var option models.PackagingOption
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND id <> ?", true, exclude).
		Order("price ASC").
		Order("created_at ASC").
		First(&option).Error
	if err != nil {
		return nil, err
	}
	return &option, nil
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]models.PackagingOption, error) {
	var options []models.PackagingOption
	q := r.db.WithContext(ctx).Order("price ASC").Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&options).Error; err != nil {
		return nil, err
	}
	return options, nil
}

// ClearDefaults unsets is_default on every option except the given id.
func (r *repository) ClearDefaults(ctx context.Context, except uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PackagingOption{}).
		Where("is_default = ? AND id <> ?", true, except).
		Update("is_default", false).Error
}
