package packaging

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kicksnairobi/footwear-backend/api/controllers/dto"
	"github.com/kicksnairobi/footwear-backend/api/middleware"
	"github.com/kicksnairobi/footwear-backend/api/responses"
	"github.com/kicksnairobi/footwear-backend/api/validators"
	internalpackaging "github.com/kicksnairobi/footwear-backend/internal/packaging"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

type Service interface {
	List(ctx context.Context, activeOnly bool) ([]models.PackagingOption, error)
	Create(ctx context.Context, input internalpackaging.CreateInput) (*models.PackagingOption, error)
	Update(ctx context.Context, id uuid.UUID, input internalpackaging.UpdateInput) (*models.PackagingOption, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type createRequest struct {
	Name        string          `json:"name" validate:"required,min=2,max=80"`
	Description *string         `json:"description" validate:"omitempty,max=500"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	IsDefault   bool            `json:"isDefault"`
	IsActive    *bool           `json:"isActive"`
}

type updateRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=2,max=80"`
	Description *string          `json:"description" validate:"omitempty,max=500"`
	Price       *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	IsDefault   *bool            `json:"isDefault"`
	IsActive    *bool            `json:"isActive"`
}

// List returns packaging options. Customers only ever see active options;
// staff may pass active=false to include retired ones.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "packaging service unavailable"))
			return
		}

		activeOnly, err := validators.ParseQueryBool(r, "active", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !middleware.RoleFromContext(r.Context()).IsStaff() {
			activeOnly = true
		}

		options, err := svc.List(r.Context(), activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"packagingOptions": dto.PackagingOptions(options)})
	}
}

func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "packaging service unavailable"))
			return
		}

		var payload createRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		option, err := svc.Create(r.Context(), internalpackaging.CreateInput{
			Name:        validators.SanitizeString(payload.Name, 80),
			Description: sanitizeOptional(payload.Description),
			Price:       payload.Price,
			IsDefault:   payload.IsDefault,
			IsActive:    payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"packagingOption": dto.PackagingOption(option)})
	}
}

func Update(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "packaging service unavailable"))
			return
		}

		id, err := dto.ParseUUIDParam(r, "packagingOptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalpackaging.UpdateInput{
			Description: sanitizeOptional(payload.Description),
			Price:       payload.Price,
			IsDefault:   payload.IsDefault,
			IsActive:    payload.IsActive,
		}
		if payload.Name != nil {
			name := validators.SanitizeString(*payload.Name, 80)
			input.Name = &name
		}

		option, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"packagingOption": dto.PackagingOption(option)})
	}
}

func Delete(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "packaging service unavailable"))
			return
		}

		id, err := dto.ParseUUIDParam(r, "packagingOptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

func sanitizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	cleaned := validators.SanitizeString(*value, 500)
	return &cleaned
}
