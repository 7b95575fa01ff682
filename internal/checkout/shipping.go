package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/fjod/storefront/domain"
)

// SubmitShipping accepts the shipping form and decides the path to the
// order: straight to submission for an authenticated buyer, otherwise
// into identity resolution.
func (m *Machine) SubmitShipping(ctx context.Context, info domain.ShippingInfo, paymentMethod string) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	if err := validateShipping(info, paymentMethod); err != nil {
		return err
	}

	m.mu.Lock()
	if m.session.State != domain.CheckoutStateCollectingInfo {
		m.mu.Unlock()
		return ErrWrongState
	}
	m.session.Shipping = info
	m.session.Email = strings.TrimSpace(info.Email)
	m.session.PaymentMethod = paymentMethod
	// capture what is being bought now, so identity transitions during
	// resolution cannot change the order
	m.session.Snapshot = m.cart.Snapshot()
	m.session.Coupon = m.cart.Coupon()
	m.lastErr = ""
	email := m.session.Email

	if m.identity.Authenticated() && m.token != "" {
		m.setStateLocked(ctx, domain.CheckoutStateSubmittingOrder)
		m.mu.Unlock()
		return m.submitOrder(ctx)
	}

	m.setStateLocked(ctx, domain.CheckoutStateCheckingIdentity)
	m.mu.Unlock()

	return m.resolveIdentity(ctx, email)
}

// resolveIdentity routes an unauthenticated buyer to the password or
// OTP path depending on whether the email is already registered.
func (m *Machine) resolveIdentity(ctx context.Context, email string) error {
	exists, err := m.auth.CheckIdentity(ctx, email)
	if err != nil {
		m.mu.Lock()
		m.setStateLocked(ctx, domain.CheckoutStateCollectingInfo)
		m.setErrLocked(err.Error())
		m.mu.Unlock()
		return err
	}

	if exists {
		m.mu.Lock()
		m.setStateLocked(ctx, domain.CheckoutStateAwaitingPassword)
		m.mu.Unlock()
		return nil
	}

	if err := m.auth.IssueOTP(ctx, email); err != nil {
		// backend rejected the address; do not advance
		m.mu.Lock()
		m.setStateLocked(ctx, domain.CheckoutStateCollectingInfo)
		m.setErrLocked(err.Error())
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.setStateLocked(ctx, domain.CheckoutStateAwaitingOtp)
	m.resendCount = 0
	m.cooldownUntil = m.clock.Now().Add(resendCooldownBase)
	m.mu.Unlock()
	return nil
}

func validateShipping(info domain.ShippingInfo, paymentMethod string) error {
	if strings.TrimSpace(info.FirstName) == "" {
		return fmt.Errorf("%w: first name is required", ErrInvalidInput)
	}
	email := strings.TrimSpace(info.Email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(info.Phone) == "" {
		return fmt.Errorf("%w: phone is required", ErrInvalidInput)
	}
	if strings.TrimSpace(info.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	if strings.TrimSpace(paymentMethod) == "" {
		return fmt.Errorf("%w: payment method is required", ErrInvalidInput)
	}
	return nil
}
