package pricing

import "github.com/fjod/storefront/domain"

// Policy holds the configuration constants for shipping and tax.
type Policy struct {
	FreeDeliveryThreshold float64
	FlatShippingFee       float64
	TaxRate               float64
}

type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// SummaryTotals computes the cart-page totals. Tax is never applied here;
// it belongs to the final checkout stage only.
func SummaryTotals(snap domain.CartSnapshot, coupon *domain.AppliedCoupon, p Policy) Totals {
	return compute(snap, coupon, p, false)
}

// CheckoutTotals computes the final totals at order submission, including
// tax over the discounted subtotal.
func CheckoutTotals(snap domain.CartSnapshot, coupon *domain.AppliedCoupon, p Policy) Totals {
	return compute(snap, coupon, p, true)
}

func compute(snap domain.CartSnapshot, coupon *domain.AppliedCoupon, p Policy, withTax bool) Totals {
	t := Totals{Subtotal: snap.Subtotal()}

	if coupon != nil && coupon.DiscountAmount > 0 {
		t.Discount = coupon.DiscountAmount
	}

	// shipping is a step function, not interpolated
	if t.Subtotal < p.FreeDeliveryThreshold {
		t.Shipping = p.FlatShippingFee
	}

	discounted := t.Subtotal - t.Discount
	if discounted < 0 {
		discounted = 0
	}

	if withTax {
		t.Tax = discounted * p.TaxRate
	}

	t.Total = discounted + t.Shipping + t.Tax
	return t
}
