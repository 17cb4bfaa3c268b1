package enums

import "fmt"

// DiscountType selects how a coupon value is applied.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// IsValid reports whether the value is a known DiscountType.
func (d DiscountType) IsValid() bool {
	return d == DiscountPercentage || d == DiscountFixed
}

// ParseDiscountType converts raw input into a DiscountType.
func ParseDiscountType(value string) (DiscountType, error) {
	d := DiscountType(value)
	if !d.IsValid() {
		return "", fmt.Errorf("invalid discount type %q", value)
	}
	return d, nil
}
