package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/internal/cart"
	"github.com/kicksnairobi/footwear-backend/internal/coupons"
	"github.com/kicksnairobi/footwear-backend/internal/events"
	"github.com/kicksnairobi/footwear-backend/internal/invoices"
	"github.com/kicksnairobi/footwear-backend/internal/products"
	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
	"github.com/kicksnairobi/footwear-backend/pkg/outbox"
	"github.com/kicksnairobi/footwear-backend/pkg/outbox/payloads"
	"github.com/kicksnairobi/footwear-backend/pkg/types"
)

const unknownProductTitle = "Unknown product"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type packagingResolver interface {
	Resolve(ctx context.Context, id *uuid.UUID) (*models.PackagingOption, error)
}

type couponService interface {
	Lookup(ctx context.Context, code string) (*models.Coupon, error)
	Validate(ctx context.Context, coupon *models.Coupon, customerID uuid.UUID, subtotal decimal.Decimal) error
	IncrementUsage(ctx context.Context, couponID uuid.UUID) error
}

type invoiceService interface {
	Issue(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Invoice, error)
	CancelForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

type receiptReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Receipt, error)
}

// ServiceParams wires the order assembly service.
type ServiceParams struct {
	Repo      Repository
	Carts     cart.Repository
	Products  products.Repository
	Packaging packagingResolver
	Coupons   couponService
	Invoices  invoiceService
	Receipts  receiptReader
	Fees      FeeQuoter
	Tx        txRunner
	Outbox    outboxPublisher
	Publisher events.Publisher
	Logger    *logger.Logger
}

// Service assembles orders from carts and drives their lifecycle status.
type Service struct {
	repo      Repository
	carts     cart.Repository
	products  products.Repository
	packaging packagingResolver
	coupons   couponService
	invoices  invoiceService
	receipts  receiptReader
	fees      FeeQuoter
	tx        txRunner
	outbox    outboxPublisher
	publisher events.Publisher
	logg      *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case params.Products == nil:
		return nil, fmt.Errorf("products repository required")
	case params.Packaging == nil:
		return nil, fmt.Errorf("packaging resolver required")
	case params.Coupons == nil:
		return nil, fmt.Errorf("coupon service required")
	case params.Invoices == nil:
		return nil, fmt.Errorf("invoice service required")
	case params.Receipts == nil:
		return nil, fmt.Errorf("receipt reader required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	fees := params.Fees
	if fees == nil {
		fees = ZeroFees{}
	}
	publisher := params.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		repo:      params.Repo,
		carts:     params.Carts,
		products:  params.Products,
		packaging: params.Packaging,
		coupons:   params.Coupons,
		invoices:  params.Invoices,
		receipts:  params.Receipts,
		fees:      fees,
		tx:        params.Tx,
		outbox:    params.Outbox,
		publisher: publisher,
		logg:      params.Logger,
	}, nil
}

// CreateFromCart converts the customer's cart into an order and its invoice.
// Order, invoice and cart conversion commit together; coupon usage is bumped
// afterwards on a best-effort basis.
func (s *Service) CreateFromCart(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if err := normalizeCreateInput(&input); err != nil {
		return nil, err
	}
	ctx = s.withLogFields(ctx, map[string]any{
		"event":       "orders.create",
		"customer_id": input.CustomerID.String(),
	})

	source, err := s.loadCart(ctx, input)
	if err != nil {
		return nil, err
	}
	items, subtotal, err := s.snapshotItems(ctx, source)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:                  uuid.New(),
		CustomerID:          input.CustomerID,
		CreatedByID:         input.Actor.UserID,
		CartID:              &source.ID,
		FulfillmentType:     input.FulfillmentType,
		FulfillmentLocation: input.FulfillmentLocation,
		Timing:              input.Timing,
		AddressID:           input.AddressID,
		PaymentPreference:   input.PaymentPreference,
		Items:               items,
		Status:              enums.OrderStatusPlaced,
		PaymentStatus:       input.PaymentPreference.Mode.InitialOrderPaymentStatus(),
	}
	order.Pricing.Subtotal = subtotal

	if option := s.resolvePackaging(ctx, input.PackagingOptionID); option != nil {
		order.Packaging = &types.PackagingSnapshot{ID: option.ID, Name: option.Name, Price: option.Price}
		order.Pricing.PackagingFee = option.Price
	}

	result := &CreateResult{}
	var coupon *models.Coupon
	if input.CouponCode != "" {
		applied, discount, reason := s.applyCoupon(ctx, input, subtotal)
		if applied != nil {
			coupon = applied
			order.CouponID = &applied.ID
			order.Coupon = &types.CouponSnapshot{
				ID:             applied.ID,
				Code:           applied.Code,
				Name:           applied.Name,
				DiscountType:   applied.DiscountType,
				DiscountValue:  applied.DiscountValue,
				DiscountAmount: discount,
			}
			order.Pricing.Discounts = discount
			result.CouponApplied = true
		} else {
			result.CouponRejectedReason = reason
		}
	}

	quote, err := s.fees.Quote(ctx, input, subtotal)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "quote order fees")
	}
	order.Pricing.SchedulingFee = quote.SchedulingFee
	order.Pricing.DeliveryFee = quote.DeliveryFee
	order.Pricing.Tax = quote.Tax
	order.Pricing.ComputeTotal()
	if order.Pricing.Total.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must not be negative")
	}

	var invoice *models.Invoice
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		issued, err := s.invoices.Issue(ctx, tx, order)
		if err != nil {
			return err
		}
		invoice = issued
		if err := s.carts.WithTx(tx).MarkConverted(ctx, source.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert cart")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         buildActor(input.Actor),
			Data:          createdPayload(order),
		})
	})
	if err != nil {
		return nil, err
	}

	if coupon != nil {
		if err := s.coupons.IncrementUsage(ctx, coupon.ID); err != nil {
			s.logError(ctx, "coupon usage increment failed", err)
		}
	}

	s.publisher.Publish(ctx, string(enums.EventOrderCreated), createdPayload(order))
	s.publisher.Publish(ctx, string(enums.EventInvoiceCreated), invoices.CreatedPayload(invoice))
	s.logInfo(s.withLogFields(ctx, map[string]any{
		"order_id":   order.ID.String(),
		"invoice_id": invoice.ID.String(),
		"total":      order.Pricing.Total.StringFixed(2),
	}), "order created")

	result.Order = order
	result.Invoice = invoice
	return result, nil
}

// GetOrder returns the order with its invoice and receipt. Customers only see
// their own orders.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID, viewer Actor) (*OrderDetail, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !viewer.Role.IsStaff() && order.CustomerID != viewer.UserID {
		return nil, pkgerrors.NotFound("order")
	}
	detail := &OrderDetail{Order: order}
	if order.InvoiceID != nil {
		invoice, err := s.invoices.Get(ctx, *order.InvoiceID)
		if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
		detail.Invoice = invoice
	}
	if order.ReceiptID != nil {
		receipt, err := s.receipts.Get(ctx, *order.ReceiptID)
		if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
		detail.Receipt = receipt
	}
	return detail, nil
}

// UpdateStatus moves an order to a new lifecycle status. COMPLETED and
// CANCELLED are final. Cancelling voids an unpaid invoice.
func (s *Service) UpdateStatus(ctx context.Context, input StatusInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": string(input.Status)})
	}

	var changed *payloads.OrderStatusChangedEvent
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == input.Status {
			return nil
		}
		if order.Status.IsFinal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status is final").
				WithDetails(map[string]any{"from": string(order.Status), "to": string(input.Status)})
		}
		if err := repo.UpdateStatus(ctx, order.ID, input.Status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if input.Status == enums.OrderStatusCancelled {
			if err := s.invoices.CancelForOrder(ctx, tx, order.ID); err != nil {
				return err
			}
		}
		changed = &payloads.OrderStatusChangedEvent{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			From:       order.Status,
			To:         input.Status,
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         buildActor(input.Actor),
			Data:          changed,
		})
	})
	if err != nil {
		return err
	}
	if changed != nil {
		s.publisher.Publish(ctx, string(enums.EventOrderStatusChanged), changed)
		s.logInfo(s.withLogFields(ctx, map[string]any{
			"event":    "orders.status_changed",
			"order_id": changed.OrderID.String(),
			"from":     string(changed.From),
			"to":       string(changed.To),
		}), "order status changed")
	}
	return nil
}

func (s *Service) loadCart(ctx context.Context, input CreateInput) (*models.Cart, error) {
	var (
		source *models.Cart
		err    error
	)
	if input.CartID != nil {
		source, err = s.carts.FindByID(ctx, *input.CartID)
	} else {
		source, err = s.carts.FindActiveByOwner(ctx, input.CustomerID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "no active cart found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if source.OwnerID != input.CustomerID || source.Status != enums.CartStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "no active cart found")
	}
	if len(source.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}
	return source, nil
}

// snapshotItems freezes each cart line at the price recorded when it was added.
func (s *Service) snapshotItems(ctx context.Context, source *models.Cart) ([]models.OrderItem, decimal.Decimal, error) {
	productIDs := make([]uuid.UUID, 0, len(source.Items))
	for _, item := range source.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	titles, err := s.products.TitlesByID(ctx, productIDs)
	if err != nil {
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product titles")
	}

	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(source.Items))
	for _, line := range source.Items {
		if line.Quantity <= 0 || line.UnitPrice.IsNegative() {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "cart contains an invalid line").
				WithDetails(map[string]any{"cartItemId": line.ID.String()})
		}
		title, ok := titles[line.ProductID]
		if !ok || strings.TrimSpace(title) == "" {
			title = unknownProductTitle
		}
		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.OrderItem{
			ID:        uuid.New(),
			SKUID:     line.SKUID,
			ProductID: line.ProductID,
			Title:     title,
			Options:   line.Options,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: lineTotal,
		})
	}
	return items, subtotal.Round(2), nil
}

func (s *Service) resolvePackaging(ctx context.Context, id *uuid.UUID) *models.PackagingOption {
	option, err := s.packaging.Resolve(ctx, id)
	if err != nil {
		s.logError(ctx, "packaging resolution failed; continuing without packaging", err)
		return nil
	}
	return option
}

// applyCoupon returns the coupon and discount when it applies, otherwise the
// rejection reason. Rejections never fail the order.
func (s *Service) applyCoupon(ctx context.Context, input CreateInput, subtotal decimal.Decimal) (*models.Coupon, decimal.Decimal, string) {
	coupon, err := s.coupons.Lookup(ctx, input.CouponCode)
	if err == nil {
		err = s.coupons.Validate(ctx, coupon, input.CustomerID, subtotal)
	}
	if err != nil {
		reason := "unavailable"
		if rej, ok := coupons.AsRejection(err); ok {
			reason = string(rej.Reason)
		}
		s.logWarn(s.withLogFields(ctx, map[string]any{
			"coupon_code": input.CouponCode,
			"reason":      reason,
		}), "coupon ignored: "+err.Error())
		return nil, decimal.Zero, reason
	}
	return coupon, coupons.CalculateDiscount(coupon, subtotal), ""
}

func normalizeCreateInput(input *CreateInput) error {
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Actor.Role.IsStaff() && input.Actor.UserID != input.CustomerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "customers can only order for themselves")
	}
	if !input.FulfillmentType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid fulfillment type")
	}
	if input.FulfillmentType == enums.FulfillmentDelivery && input.AddressID == nil && input.FulfillmentLocation == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery requires an address or location")
	}
	if input.Timing.Mode == "" {
		input.Timing.Mode = enums.TimingASAP
	}
	if !input.Timing.Mode.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid timing mode")
	}
	if input.Timing.Mode == enums.TimingScheduled && input.Timing.ScheduledFor == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "scheduled timing requires scheduledFor")
	}
	if input.Timing.Mode == enums.TimingASAP {
		input.Timing.ScheduledFor = nil
	}
	if input.PaymentPreference.Mode == "" {
		input.PaymentPreference.Mode = enums.PaymentModePayLater
	}
	if !input.PaymentPreference.Mode.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment mode")
	}
	if m := input.PaymentPreference.Method; m != nil && !m.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	input.CouponCode = coupons.NormalizeCode(input.CouponCode)
	return nil
}

func createdPayload(order *models.Order) payloads.OrderCreatedEvent {
	return payloads.OrderCreatedEvent{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		InvoiceID:     order.InvoiceID,
		Total:         order.Pricing.Total,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
	}
}

func buildActor(actor Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}

func (s *Service) withLogFields(ctx context.Context, fields map[string]any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, fields)
}

func (s *Service) logInfo(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}

func (s *Service) logError(ctx context.Context, msg string, err error) {
	if s.logg != nil {
		s.logg.Error(ctx, msg, err)
	}
}
