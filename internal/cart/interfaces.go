package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
)

// Repository is the read side of the storefront cart plus the conversion
// write performed at checkout.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	MarkConverted(ctx context.Context, id uuid.UUID) error
	AbandonIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
