package checkout

import (
	"context"
	"encoding/json"
	"log"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/backend"
	"github.com/fjod/storefront/internal/pricing"
)

// submitOrder runs the final step. Callers have already moved the
// session into SubmittingOrder and hold the busy guard.
func (m *Machine) submitOrder(ctx context.Context) error {
	m.mu.Lock()
	session := m.sessions(m.token)
	shipping := m.session.Shipping
	snapshot := m.session.Snapshot
	coupon := m.session.Coupon
	paymentMethod := m.session.PaymentMethod
	sessionID := m.session.ID
	email := m.session.Email
	m.mu.Unlock()

	// profile sync is a non-critical side effect
	if err := session.UpdateProfile(ctx, backend.ProfileUpdate{
		FirstName: shipping.FirstName,
		LastName:  shipping.LastName,
		Phone:     shipping.Phone,
		Address:   shipping.Address,
	}); err != nil {
		log.Printf("profile sync before order failed (non-critical): %v", err)
	}

	totals := pricing.CheckoutTotals(snapshot, coupon, m.policy)
	req := backend.OrderRequest{
		Items:         domain.FilterValid(snapshot.Items),
		Subtotal:      totals.Subtotal,
		Discount:      totals.Discount,
		Shipping:      totals.Shipping,
		Tax:           totals.Tax,
		Total:         totals.Total,
		ShippingInfo:  shipping,
		PaymentMethod: paymentMethod,
	}
	if coupon != nil {
		req.CouponCode = coupon.Code
		req.CouponDiscount = coupon.DiscountAmount
	}

	resp, err := session.SubmitOrder(ctx, req)
	if err != nil {
		// surface the failure, then hand control back to the shipping
		// form with everything still populated for a retry
		m.mu.Lock()
		m.setStateLocked(ctx, domain.CheckoutStateFailed)
		m.setStateLocked(ctx, domain.CheckoutStateCollectingInfo)
		m.setErrLocked(err.Error())
		m.mu.Unlock()
		return err
	}

	payload, marshalErr := json.Marshal(map[string]interface{}{
		"order_id":   resp.OrderID,
		"session_id": sessionID,
		"email":      email,
		"items":      req.Items,
		"total":      totals.Total,
	})
	if marshalErr != nil {
		log.Printf("failed to marshal order-completed payload: %v", marshalErr)
	} else if err := m.repo.CompleteSession(ctx, sessionID, payload); err != nil {
		log.Printf("failed to complete checkout session %v: %v", sessionID, err)
	}

	m.mu.Lock()
	m.session.State = domain.CheckoutStateSucceeded
	m.orderID = resp.OrderID
	m.lastErr = ""
	m.mu.Unlock()

	if err := m.cart.Clear(ctx); err != nil {
		log.Printf("failed to clear cart after order %v: %v", resp.OrderID, err)
	}
	return nil
}
