package domain

type CouponScope string

const (
	CouponScopeCart     CouponScope = "CART"
	CouponScopeProduct  CouponScope = "PRODUCT"
	CouponScopeShipping CouponScope = "SHIPPING"
)

// AppliedCoupon carries the discount the backend computed for a specific
// cart subtotal. It is valid only for the snapshot it was validated
// against; any cart mutation must clear it.
type AppliedCoupon struct {
	Code           string      `json:"code"`
	DiscountAmount float64     `json:"discount_amount"`
	Scope          CouponScope `json:"scope"`
}
