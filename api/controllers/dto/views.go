package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/kicksnairobi/footwear-backend/pkg/types"
)

type OrderItemView struct {
	ID        uuid.UUID            `json:"id"`
	SKUID     uuid.UUID            `json:"skuId"`
	ProductID uuid.UUID            `json:"productId"`
	Title     string               `json:"title"`
	Options   types.VariantOptions `json:"options,omitempty"`
	Quantity  int                  `json:"quantity"`
	UnitPrice decimal.Decimal      `json:"unitPrice"`
	LineTotal decimal.Decimal      `json:"lineTotal"`
}

type OrderView struct {
	ID                  uuid.UUID                `json:"id"`
	CustomerID          uuid.UUID                `json:"customerId"`
	CreatedByID         uuid.UUID                `json:"createdById"`
	FulfillmentType     enums.FulfillmentType    `json:"fulfillmentType"`
	FulfillmentLocation *string                  `json:"fulfillmentLocation,omitempty"`
	Timing              types.DeliveryTiming     `json:"timing"`
	AddressID           *uuid.UUID               `json:"addressId,omitempty"`
	PaymentPreference   types.PaymentPreference  `json:"paymentPreference"`
	Pricing             types.OrderPricing       `json:"pricing"`
	Packaging           *types.PackagingSnapshot `json:"packaging,omitempty"`
	Coupon              *types.CouponSnapshot    `json:"coupon,omitempty"`
	Status              enums.OrderStatus        `json:"status"`
	PaymentStatus       enums.OrderPaymentStatus `json:"paymentStatus"`
	Items               []OrderItemView          `json:"items"`
	InvoiceID           *uuid.UUID               `json:"invoiceId,omitempty"`
	ReceiptID           *uuid.UUID               `json:"receiptId,omitempty"`
	Invoice             *InvoiceView             `json:"invoice,omitempty"`
	Receipt             *ReceiptView             `json:"receipt,omitempty"`
	CreatedAt           time.Time                `json:"createdAt"`
	UpdatedAt           time.Time                `json:"updatedAt"`
}

type InvoiceView struct {
	ID            uuid.UUID                  `json:"id"`
	OrderID       uuid.UUID                  `json:"orderId"`
	Number        string                     `json:"invoiceNumber"`
	LineItems     types.InvoiceLineItems     `json:"lineItems"`
	Subtotal      decimal.Decimal            `json:"subtotal"`
	Discounts     decimal.Decimal            `json:"discounts"`
	Fees          decimal.Decimal            `json:"fees"`
	Tax           decimal.Decimal            `json:"tax"`
	Total         decimal.Decimal            `json:"total"`
	BalanceDue    decimal.Decimal            `json:"balanceDue"`
	Currency      enums.Currency             `json:"currency"`
	PaymentStatus enums.InvoicePaymentStatus `json:"paymentStatus"`
	ReceiptID     *uuid.UUID                 `json:"receiptId,omitempty"`
	PaidAt        *time.Time                 `json:"paidAt,omitempty"`
	CreatedAt     time.Time                  `json:"createdAt"`
}

type PaymentView struct {
	ID            uuid.UUID           `json:"id"`
	InvoiceID     uuid.UUID           `json:"invoiceId"`
	Method        enums.PaymentMethod `json:"method"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      enums.Currency      `json:"currency"`
	Status        enums.PaymentStatus `json:"status"`
	ProcessorRefs types.ProcessorRefs `json:"processorRefs"`
	ResultCode    *string             `json:"resultCode,omitempty"`
	ResultDesc    *string             `json:"resultDesc,omitempty"`
	CompletedAt   *time.Time          `json:"completedAt,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

type ReceiptView struct {
	ID         uuid.UUID           `json:"id"`
	OrderID    uuid.UUID           `json:"orderId"`
	InvoiceID  uuid.UUID           `json:"invoiceId"`
	PaymentID  *uuid.UUID          `json:"paymentId,omitempty"`
	Number     string              `json:"receiptNumber"`
	AmountPaid decimal.Decimal     `json:"amountPaid"`
	Method     enums.PaymentMethod `json:"method"`
	IssuedAt   time.Time           `json:"issuedAt"`
	PDFURL     *string             `json:"pdfUrl,omitempty"`
}

type PackagingOptionView struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	IsDefault   bool            `json:"isDefault"`
	IsActive    bool            `json:"isActive"`
}

func Order(order *models.Order) *OrderView {
	if order == nil {
		return nil
	}
	items := make([]OrderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemView{
			ID:        item.ID,
			SKUID:     item.SKUID,
			ProductID: item.ProductID,
			Title:     item.Title,
			Options:   item.Options,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}
	return &OrderView{
		ID:                  order.ID,
		CustomerID:          order.CustomerID,
		CreatedByID:         order.CreatedByID,
		FulfillmentType:     order.FulfillmentType,
		FulfillmentLocation: order.FulfillmentLocation,
		Timing:              order.Timing,
		AddressID:           order.AddressID,
		PaymentPreference:   order.PaymentPreference,
		Pricing:             order.Pricing,
		Packaging:           order.Packaging,
		Coupon:              order.Coupon,
		Status:              order.Status,
		PaymentStatus:       order.PaymentStatus,
		Items:               items,
		InvoiceID:           order.InvoiceID,
		ReceiptID:           order.ReceiptID,
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
	}
}

func Invoice(invoice *models.Invoice) *InvoiceView {
	if invoice == nil {
		return nil
	}
	return &InvoiceView{
		ID:            invoice.ID,
		OrderID:       invoice.OrderID,
		Number:        invoice.Number,
		LineItems:     invoice.LineItems,
		Subtotal:      invoice.Subtotal,
		Discounts:     invoice.Discounts,
		Fees:          invoice.Fees,
		Tax:           invoice.Tax,
		Total:         invoice.Total,
		BalanceDue:    invoice.BalanceDue,
		Currency:      invoice.Currency,
		PaymentStatus: invoice.PaymentStatus,
		ReceiptID:     invoice.ReceiptID,
		PaidAt:        invoice.PaidAt,
		CreatedAt:     invoice.CreatedAt,
	}
}

func Payment(payment *models.Payment) *PaymentView {
	if payment == nil {
		return nil
	}
	return &PaymentView{
		ID:            payment.ID,
		InvoiceID:     payment.InvoiceID,
		Method:        payment.Method,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		Status:        payment.Status,
		ProcessorRefs: payment.ProcessorRefs,
		ResultCode:    payment.ResultCode,
		ResultDesc:    payment.ResultDesc,
		CompletedAt:   payment.CompletedAt,
		CreatedAt:     payment.CreatedAt,
	}
}

func Receipt(receipt *models.Receipt) *ReceiptView {
	if receipt == nil {
		return nil
	}
	return &ReceiptView{
		ID:         receipt.ID,
		OrderID:    receipt.OrderID,
		InvoiceID:  receipt.InvoiceID,
		PaymentID:  receipt.PaymentID,
		Number:     receipt.Number,
		AmountPaid: receipt.AmountPaid,
		Method:     receipt.Method,
		IssuedAt:   receipt.IssuedAt,
		PDFURL:     receipt.PDFURL,
	}
}

func PackagingOption(option *models.PackagingOption) *PackagingOptionView {
	if option == nil {
		return nil
	}
	return &PackagingOptionView{
		ID:          option.ID,
		Name:        option.Name,
		Description: option.Description,
		Price:       option.Price,
		IsDefault:   option.IsDefault,
		IsActive:    option.IsActive,
	}
}

func PackagingOptions(options []models.PackagingOption) []PackagingOptionView {
	out := make([]PackagingOptionView, 0, len(options))
	for i := range options {
		out = append(out, *PackagingOption(&options[i]))
	}
	return out
}
