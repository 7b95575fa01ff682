package checkout

import (
	"context"
	"fmt"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/backend"
)

// SubmitPassword logs an existing user in and proceeds to order
// submission. Wrong passwords keep the buyer here; retries are
// unlimited and user-initiated.
func (m *Machine) SubmitPassword(ctx context.Context, password string) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.Lock()
	if m.session.State != domain.CheckoutStateAwaitingPassword {
		m.mu.Unlock()
		return ErrWrongState
	}
	email := m.session.Email
	m.mu.Unlock()

	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	res, err := m.auth.Login(ctx, email, password)
	if err != nil {
		m.mu.Lock()
		m.setErrLocked("Incorrect password")
		m.mu.Unlock()
		return err
	}

	m.afterLogin(ctx, res)

	m.mu.Lock()
	m.setStateLocked(ctx, domain.CheckoutStateSubmittingOrder)
	m.lastErr = ""
	m.mu.Unlock()
	return m.submitOrder(ctx)
}

// SubmitNewPassword finishes signup for a new user: register with the
// verified OTP as proof, log in with the fresh credentials, refresh the
// identity context, then submit the order.
func (m *Machine) SubmitNewPassword(ctx context.Context, password, confirmation string) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.Lock()
	if m.session.State != domain.CheckoutStateAwaitingNewPassword {
		m.mu.Unlock()
		return ErrWrongState
	}
	shipping := m.session.Shipping
	email := m.session.Email
	otp := m.verifiedOTP
	m.mu.Unlock()

	if len(password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}
	if password != confirmation {
		return fmt.Errorf("%w: passwords do not match", ErrInvalidInput)
	}

	_, err := m.auth.Register(ctx, backend.RegisterRequest{
		FirstName: shipping.FirstName,
		LastName:  shipping.LastName,
		Email:     email,
		Phone:     shipping.Phone,
		Password:  password,
		OTP:       otp,
		Role:      "customer",
	})
	if err != nil {
		m.mu.Lock()
		m.setErrLocked(err.Error())
		m.mu.Unlock()
		return err
	}

	res, err := m.auth.Login(ctx, email, password)
	if err != nil {
		m.mu.Lock()
		m.setErrLocked(err.Error())
		m.mu.Unlock()
		return err
	}

	m.afterLogin(ctx, res)

	m.mu.Lock()
	m.setStateLocked(ctx, domain.CheckoutStateSubmittingOrder)
	m.lastErr = ""
	m.mu.Unlock()
	return m.submitOrder(ctx)
}
