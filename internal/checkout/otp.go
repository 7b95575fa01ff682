package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/storefront/domain"
)

const (
	otpLength          = 6
	resendCooldownBase = 60 * time.Second
)

// SubmitOTP verifies the one-time code. A failed verification keeps the
// buyer in AwaitingOtp; the entered code is not cleared for them.
func (m *Machine) SubmitOTP(ctx context.Context, code string) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.Lock()
	if m.session.State != domain.CheckoutStateAwaitingOtp {
		m.mu.Unlock()
		return ErrWrongState
	}
	email := m.session.Email
	m.mu.Unlock()

	if len(code) != otpLength {
		return fmt.Errorf("%w: OTP must be %d characters", ErrInvalidInput, otpLength)
	}

	if err := m.auth.VerifyOTP(ctx, email, code); err != nil {
		m.mu.Lock()
		m.setErrLocked("Invalid OTP")
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.verifiedOTP = code
	m.setStateLocked(ctx, domain.CheckoutStateAwaitingNewPassword)
	m.lastErr = ""
	m.mu.Unlock()
	return nil
}

// ResendOTP re-issues the code. Each resend lengthens the next cooldown
// linearly to discourage abuse.
func (m *Machine) ResendOTP(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.Lock()
	if m.session.State != domain.CheckoutStateAwaitingOtp {
		m.mu.Unlock()
		return ErrWrongState
	}
	now := m.clock.Now()
	if now.Before(m.cooldownUntil) {
		m.mu.Unlock()
		return ErrCooldownActive
	}
	email := m.session.Email
	m.mu.Unlock()

	if err := m.auth.IssueOTP(ctx, email); err != nil {
		m.mu.Lock()
		m.setErrLocked(err.Error())
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.resendCount++
	m.cooldownUntil = now.Add(time.Duration(m.resendCount+1) * resendCooldownBase)
	m.lastErr = ""
	m.mu.Unlock()
	return nil
}
