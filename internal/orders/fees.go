package orders

import (
	"context"

	"github.com/shopspring/decimal"
)

// FeeQuote is the logistics portion of an order's pricing.
type FeeQuote struct {
	SchedulingFee decimal.Decimal
	DeliveryFee   decimal.Decimal
	Tax           decimal.Decimal
}

// FeeQuoter prices scheduling, delivery and tax for an order.
type FeeQuoter interface {
	Quote(ctx context.Context, input CreateInput, subtotal decimal.Decimal) (FeeQuote, error)
}

// ZeroFees quotes nothing. Rider pricing lives outside this service.
type ZeroFees struct{}

func (ZeroFees) Quote(context.Context, CreateInput, decimal.Decimal) (FeeQuote, error) {
	return FeeQuote{}, nil
}
