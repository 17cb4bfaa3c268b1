// Package packaging manages priced packaging add-ons and the storefront default.
package packaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/pkg/db"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput describes a new packaging option.
type CreateInput struct {
	Name        string
	Description *string
	Price       decimal.Decimal
	IsDefault   bool
	IsActive    *bool
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	IsDefault   *bool
	IsActive    *bool
}

// Service enforces the single-default rule across packaging options.
type Service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

func NewService(repo Repository, tx txRunner, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("packaging repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Service{repo: repo, tx: tx, logg: logg}, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]models.PackagingOption, error) {
	options, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list packaging options")
	}
	return options, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.PackagingOption, error) {
	option, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return option, nil
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*models.PackagingOption, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	option := &models.PackagingOption{
		ID:          uuid.New(),
		Name:        name,
		Description: input.Description,
		Price:       input.Price.Round(2),
		IsDefault:   input.IsDefault && active,
		IsActive:    active,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if option.IsDefault {
			if err := repo.ClearDefaults(ctx, option.ID); err != nil {
				return err
			}
		}
		return repo.Create(ctx, option)
	})
	if err != nil {
		return nil, mapWriteError(err, "create packaging option")
	}
	return option, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.PackagingOption, error) {
	var updated *models.PackagingOption
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		option, err := repo.FindByID(ctx, id)
		if err != nil {
			return mapLookupError(err)
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
			}
			option.Name = name
		}
		if input.Description != nil {
			option.Description = input.Description
		}
		if input.Price != nil {
			if input.Price.IsNegative() {
				return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
			}
			option.Price = input.Price.Round(2)
		}
		if input.IsActive != nil {
			option.IsActive = *input.IsActive
		}
		if input.IsDefault != nil {
			option.IsDefault = *input.IsDefault
		}
		// an inactive option can never be the default
		if !option.IsActive {
			option.IsDefault = false
		}
		if option.IsDefault {
			if err := repo.ClearDefaults(ctx, option.ID); err != nil {
				return err
			}
		}
		if err := repo.Save(ctx, option); err != nil {
			return err
		}
		updated = option
		return nil
	})
	if err != nil {
		return nil, mapWriteError(err, "update packaging option")
	}
	return updated, nil
}

// Delete removes an option. Removing the active default promotes the cheapest
// remaining active option.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	var promoted *models.PackagingOption
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		option, err := repo.FindByID(ctx, id)
		if err != nil {
			return mapLookupError(err)
		}
		if err := repo.Delete(ctx, id); err != nil {
			return err
		}
		if !option.IsDefault || !option.IsActive {
			return nil
		}
		next, err := repo.FindCheapestActive(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		next.IsDefault = true
		if err := repo.Save(ctx, next); err != nil {
			return err
		}
		promoted = next
		return nil
	})
	if err != nil {
		return mapWriteError(err, "delete packaging option")
	}
	if promoted != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event":        "packaging.default_promoted",
			"deleted_id":   id.String(),
			"promoted_id":  promoted.ID.String(),
			"promoted_fee": promoted.Price.StringFixed(2),
		})
		s.logg.Info(logCtx, "packaging default promoted")
	}
	return nil
}

// Resolve picks the option applied to a new order: the explicit id when it is
// active, otherwise the active default. A nil result means no packaging fee.
func (s *Service) Resolve(ctx context.Context, id *uuid.UUID) (*models.PackagingOption, error) {
	if id != nil && *id != uuid.Nil {
		option, err := s.repo.FindByID(ctx, *id)
		switch {
		case err == nil && option.IsActive:
			return option, nil
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load packaging option")
		}
	}
	option, err := s.repo.FindActiveDefault(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load default packaging option")
	}
	return option, nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound("packaging option")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load packaging option")
}

func mapWriteError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound("packaging option")
	}
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "packaging option name already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
