package invoices

import (
	"fmt"

	"github.com/kicksnairobi/footwear-backend/pkg/db/models"
	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	"github.com/kicksnairobi/footwear-backend/pkg/types"
)

// Build snapshots an order's pricing into a new PENDING invoice.
func Build(order *models.Order, number string) models.Invoice {
	pricing := order.Pricing
	return models.Invoice{
		OrderID:       order.ID,
		Number:        number,
		LineItems:     LineItems(order),
		Subtotal:      pricing.Subtotal,
		Discounts:     pricing.Discounts,
		Fees:          pricing.Fees(),
		Tax:           pricing.Tax,
		Total:         pricing.Total,
		BalanceDue:    pricing.Total,
		Currency:      enums.CurrencyKES,
		PaymentStatus: enums.InvoicePending,
	}
}

// LineItems lists one entry per product line followed by each non-zero fee.
// Discounts and tax are carried on the invoice totals, not as lines.
func LineItems(order *models.Order) types.InvoiceLineItems {
	items := make(types.InvoiceLineItems, 0, len(order.Items)+3)
	for _, item := range order.Items {
		label := item.Title
		if item.Quantity > 1 {
			label = fmt.Sprintf("%s x%d", item.Title, item.Quantity)
		}
		items = append(items, types.InvoiceLineItem{Label: label, Amount: item.LineTotal})
	}
	pricing := order.Pricing
	if pricing.PackagingFee.IsPositive() {
		label := "Packaging"
		if order.Packaging != nil && order.Packaging.Name != "" {
			label = "Packaging: " + order.Packaging.Name
		}
		items = append(items, types.InvoiceLineItem{Label: label, Amount: pricing.PackagingFee})
	}
	if pricing.SchedulingFee.IsPositive() {
		items = append(items, types.InvoiceLineItem{Label: "Scheduling fee", Amount: pricing.SchedulingFee})
	}
	if pricing.DeliveryFee.IsPositive() {
		items = append(items, types.InvoiceLineItem{Label: "Delivery fee", Amount: pricing.DeliveryFee})
	}
	return items
}
