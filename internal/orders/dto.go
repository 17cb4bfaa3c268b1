package orders

import (
	"github.com/google/uuid"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/kicksnairobi/footwear-backend/pkg/types"
)

// Actor identifies who performs an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// CreateInput captures checkout choices. CustomerID is the cart owner; the
// actor may be that customer or a staff member ordering on their behalf.
type CreateInput struct {
	Actor               Actor
	CustomerID          uuid.UUID
	CartID              *uuid.UUID
	FulfillmentType     enums.FulfillmentType
	FulfillmentLocation *string
	Timing              types.DeliveryTiming
	AddressID           *uuid.UUID
	PaymentPreference   types.PaymentPreference
	PackagingOptionID   *uuid.UUID
	CouponCode          string
}

// CreateResult reports the persisted order and how the coupon was handled.
type CreateResult struct {
	Order                *models.Order
	Invoice              *models.Invoice
	CouponApplied        bool
	CouponRejectedReason string
}

// OrderDetail is an order with its invoice and receipt resolved.
type OrderDetail struct {
	Order   *models.Order
	Invoice *models.Invoice
	Receipt *models.Receipt
}

// StatusInput carries an order status transition.
type StatusInput struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus
	Actor   Actor
}
