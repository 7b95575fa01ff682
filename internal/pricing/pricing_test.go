package pricing

import (
	"testing"

	"github.com/fjod/storefront/domain"
	"github.com/stretchr/testify/assert"
)

var testPolicy = Policy{
	FreeDeliveryThreshold: 500,
	FlatShippingFee:       50,
	TaxRate:               0.1,
}

func testSnapshot() domain.CartSnapshot {
	return domain.CartSnapshot{
		Items: []domain.LineItem{
			{ProductRef: "p-1", UnitPrice: 100, Quantity: 2},
			{ProductRef: "p-2", UnitPrice: 50, Quantity: 1},
		},
		Mode: domain.CartModeGuest,
	}
}

func TestSummaryTotals_NoCoupon(t *testing.T) {
	totals := SummaryTotals(testSnapshot(), nil, testPolicy)

	assert.Equal(t, 250.0, totals.Subtotal)
	assert.Equal(t, 0.0, totals.Discount)
	assert.Equal(t, 50.0, totals.Shipping)
	assert.Equal(t, 0.0, totals.Tax) // no tax on the cart-summary stage
	assert.Equal(t, 300.0, totals.Total)
}

func TestSummaryTotals_WithCoupon(t *testing.T) {
	coupon := &domain.AppliedCoupon{Code: "SAVE30", DiscountAmount: 30, Scope: domain.CouponScopeCart}

	totals := SummaryTotals(testSnapshot(), coupon, testPolicy)

	assert.Equal(t, 30.0, totals.Discount)
	assert.Equal(t, 270.0, totals.Total) // 250 - 30 + 50
}

func TestSummaryTotals_FreeDelivery(t *testing.T) {
	snap := domain.CartSnapshot{
		Items: []domain.LineItem{{ProductRef: "p-1", UnitPrice: 500, Quantity: 1}},
	}

	totals := SummaryTotals(snap, nil, testPolicy)

	assert.Equal(t, 0.0, totals.Shipping)
	assert.Equal(t, 500.0, totals.Total)
}

func TestSummaryTotals_DiscountClampedAtZero(t *testing.T) {
	coupon := &domain.AppliedCoupon{Code: "HUGE", DiscountAmount: 10000, Scope: domain.CouponScopeCart}

	totals := SummaryTotals(testSnapshot(), coupon, testPolicy)

	// discount floors at zero before shipping is added
	assert.Equal(t, 50.0, totals.Total)
	assert.GreaterOrEqual(t, totals.Total, 0.0)
}

func TestCheckoutTotals_AppliesTax(t *testing.T) {
	coupon := &domain.AppliedCoupon{Code: "SAVE30", DiscountAmount: 30, Scope: domain.CouponScopeCart}

	totals := CheckoutTotals(testSnapshot(), coupon, testPolicy)

	assert.Equal(t, 22.0, totals.Tax) // (250 - 30) * 0.1
	assert.Equal(t, 292.0, totals.Total)
}

func TestCheckoutTotals_EmptyCart(t *testing.T) {
	totals := CheckoutTotals(domain.CartSnapshot{}, nil, testPolicy)

	assert.Equal(t, 0.0, totals.Subtotal)
	assert.Equal(t, 50.0, totals.Shipping)
	assert.Equal(t, 50.0, totals.Total)
}

func TestSubtotal_IgnoresZeroQuantityItems(t *testing.T) {
	snap := domain.CartSnapshot{
		Items: []domain.LineItem{
			{ProductRef: "p-1", UnitPrice: 100, Quantity: 2},
			{ProductRef: "p-2", UnitPrice: 999, Quantity: 0},
		},
	}

	assert.Equal(t, 200.0, snap.Subtotal())
}
