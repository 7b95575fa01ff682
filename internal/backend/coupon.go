package backend

import (
	"context"
	"net/http"
)

type CouponLineItem struct {
	ProductRef string  `json:"product_ref"`
	UnitPrice  float64 `json:"unit_price"`
	Quantity   int     `json:"quantity"`
}

type CouponValidationRequest struct {
	Code     string           `json:"code"`
	Subtotal float64          `json:"subtotal"`
	Items    []CouponLineItem `json:"items"`
}

type CouponPayload struct {
	Code           string  `json:"code"`
	DiscountAmount float64 `json:"discount_amount"`
	Scope          string  `json:"scope"`
}

type CouponValidationResponse struct {
	Valid  bool           `json:"valid"`
	Reason string         `json:"reason,omitempty"`
	Coupon *CouponPayload `json:"coupon,omitempty"`
}

// ValidateCoupon submits the current cart contents for validation. The
// backend computes the discount against the given subtotal; the result
// is only meaningful for that exact cart state.
func (c *Client) ValidateCoupon(ctx context.Context, req CouponValidationRequest) (*CouponValidationResponse, error) {
	var resp CouponValidationResponse
	if err := c.doJSON(ctx, http.MethodPost, "/coupons/validate", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
