package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/backend"
)

var (
	ErrEmptyCode = errors.New("coupon code is required")
	// ErrRejected wraps the backend's rejection reason; errors.Is works,
	// the message carries the reason verbatim.
	ErrRejected = errors.New("coupon rejected")
)

const fallbackReason = "invalid coupon"

// Backend is the slice of the collaborator API the validator needs.
type Backend interface {
	ValidateCoupon(ctx context.Context, req backend.CouponValidationRequest) (*backend.CouponValidationResponse, error)
}

// Validator turns a raw code plus the current cart snapshot into an
// AppliedCoupon, or a rejection. The discount it returns is tied to the
// snapshot's subtotal; the Cart Store clears it on any mutation.
type Validator struct {
	backend Backend
}

func New(b Backend) *Validator {
	return &Validator{backend: b}
}

func (v *Validator) Validate(ctx context.Context, code string, snap domain.CartSnapshot) (*domain.AppliedCoupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyCode
	}

	items := domain.FilterValid(snap.Items)
	req := backend.CouponValidationRequest{
		Code:     code,
		Subtotal: snap.Subtotal(),
	}
	for _, item := range items {
		req.Items = append(req.Items, backend.CouponLineItem{
			ProductRef: item.ProductRef,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
		})
	}

	resp, err := v.backend.ValidateCoupon(ctx, req)
	if err != nil {
		return nil, err
	}

	if !resp.Valid {
		reason := resp.Reason
		if reason == "" {
			reason = fallbackReason
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, reason)
	}

	// a "valid" response without a usable discount is malformed
	if resp.Coupon == nil || resp.Coupon.DiscountAmount <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrRejected, fallbackReason)
	}

	return &domain.AppliedCoupon{
		Code:           resp.Coupon.Code,
		DiscountAmount: resp.Coupon.DiscountAmount,
		Scope:          normalizeScope(resp.Coupon.Scope),
	}, nil
}

func normalizeScope(raw string) domain.CouponScope {
	switch domain.CouponScope(strings.ToUpper(raw)) {
	case domain.CouponScopeProduct:
		return domain.CouponScopeProduct
	case domain.CouponScopeShipping:
		return domain.CouponScopeShipping
	default:
		return domain.CouponScopeCart
	}
}
