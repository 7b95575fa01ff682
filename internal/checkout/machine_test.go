package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/fjod/storefront/internal/repository"
)

func defaultTestPolicy() pricing.Policy {
	return pricing.Policy{
		FreeDeliveryThreshold: 300,
		FlatShippingFee:       50,
		TaxRate:               0.1,
	}
}

type testHarness struct {
	auth    *mockAuth
	session *mockSession
	cart    *mockCart
	repo    *mockSessionStore
	clock   *fakeClock
	machine *Machine
}

func newHarness(t *testing.T, token string) *testHarness {
	t.Helper()
	h := &testHarness{
		auth:    &mockAuth{},
		session: &mockSession{},
		cart: &mockCart{
			Items: []domain.LineItem{
				{LineID: "l1", ProductRef: "sku-1", UnitPrice: 100, Quantity: 2},
				{LineID: "l2", ProductRef: "sku-2", UnitPrice: 50, Quantity: 1},
			},
		},
		repo:  &mockSessionStore{},
		clock: &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	identity := domain.NewIdentityContext()
	if token != "" {
		identity.SetUser(&domain.User{ID: "u-1", Email: "buyer@x.com"})
	}
	factory := func(string) SessionAPI { return h.session }
	h.machine = NewMachineWithClock(
		context.Background(),
		h.auth,
		factory,
		h.cart,
		identity,
		h.repo,
		defaultTestPolicy(),
		token,
		h.clock,
	)
	return h
}

func validShipping() domain.ShippingInfo {
	return domain.ShippingInfo{
		FirstName: "Ann",
		LastName:  "Lee",
		Email:     "buyer@x.com",
		Phone:     "+1555",
		Address:   "1 Main St",
	}
}

func TestMachine_StartsCollectingInfo(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, domain.CheckoutStateCollectingInfo, h.machine.State())
	require.NotNil(t, h.repo.Created)
	assert.Equal(t, h.machine.SessionID(), h.repo.Created.ID)
}

func TestMachine_ShippingValidation(t *testing.T) {
	h := newHarness(t, "")

	info := validShipping()
	info.Email = "not-an-email"
	err := h.machine.SubmitShipping(context.Background(), info, "card")

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, domain.CheckoutStateCollectingInfo, h.machine.State())
}

func TestMachine_AuthenticatedSubmitsDirectly(t *testing.T) {
	h := newHarness(t, "tok-1")
	h.cart.AppliedC = &domain.AppliedCoupon{Code: "SAVE30", DiscountAmount: 30, Scope: domain.CouponScopeCart}

	err := h.machine.SubmitShipping(context.Background(), validShipping(), "card")
	require.NoError(t, err)

	assert.Equal(t, domain.CheckoutStateSucceeded, h.machine.State())
	assert.Equal(t, "ord-1", h.machine.OrderID())
	assert.True(t, h.cart.Cleared)
	assert.NotNil(t, h.repo.Completed)

	require.NotNil(t, h.session.GotOrder)
	got := h.session.GotOrder
	// 250 subtotal, 30 off, under free-delivery so flat fee applies,
	// tax on the discounted amount
	assert.Equal(t, 250.0, got.Subtotal)
	assert.Equal(t, 30.0, got.Discount)
	assert.Equal(t, 50.0, got.Shipping)
	assert.InDelta(t, 22.0, got.Tax, 0.001)
	assert.InDelta(t, 292.0, got.Total, 0.001)
	assert.Equal(t, "SAVE30", got.CouponCode)
	assert.Equal(t, 1, h.session.ProfileCalls)
}

func TestMachine_ExistingUserPasswordFlow(t *testing.T) {
	h := newHarness(t, "")
	h.auth.Exists = true

	err := h.machine.SubmitShipping(context.Background(), validShipping(), "card")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStateAwaitingPassword, h.machine.State())

	// wrong password keeps the buyer here with a message
	h.auth.LoginErr = errors.New("401")
	err = h.machine.SubmitPassword(context.Background(), "wrong")
	require.Error(t, err)
	assert.Equal(t, domain.CheckoutStateAwaitingPassword, h.machine.State())
	assert.Equal(t, "Incorrect password", h.machine.Err())

	// correct password logs in and submits
	h.auth.LoginErr = nil
	err = h.machine.SubmitPassword(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStateSucceeded, h.machine.State())
	assert.Equal(t, "", h.machine.Err())
	assert.True(t, h.cart.Switched)
	assert.True(t, h.cart.Cleared)
}

func TestMachine_NewUserOtpFlow(t *testing.T) {
	h := newHarness(t, "")
	h.auth.Exists = false

	info := validShipping()
	info.Email = "new@x.com"
	err := h.machine.SubmitShipping(context.Background(), info, "card")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStateAwaitingOtp, h.machine.State())
	assert.Equal(t, 1, h.auth.IssueCalls)

	// too short to even send
	err = h.machine.SubmitOTP(context.Background(), "123")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, domain.CheckoutStateAwaitingOtp, h.machine.State())

	// wrong code keeps the buyer here
	h.auth.VerifyErr = errors.New("mismatch")
	err = h.machine.SubmitOTP(context.Background(), "000000")
	require.Error(t, err)
	assert.Equal(t, domain.CheckoutStateAwaitingOtp, h.machine.State())
	assert.Equal(t, "Invalid OTP", h.machine.Err())

	// correct code advances
	h.auth.VerifyErr = nil
	err = h.machine.SubmitOTP(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStateAwaitingNewPassword, h.machine.State())
	assert.Equal(t, "", h.machine.Err())
}

func TestMachine_OtpIssueFailureReturnsToForm(t *testing.T) {
	h := newHarness(t, "")
	h.auth.Exists = false
	h.auth.IssueErr = errors.New("address rejected")

	err := h.machine.SubmitShipping(context.Background(), validShipping(), "card")
	require.Error(t, err)
	assert.Equal(t, domain.CheckoutStateCollectingInfo, h.machine.State())
	assert.Equal(t, "address rejected", h.machine.Err())
}

func TestMachine_NewPasswordFinishesSignup(t *testing.T) {
	h := newHarness(t, "")
	h.auth.Exists = false

	require.NoError(t, h.machine.SubmitShipping(context.Background(), validShipping(), "card"))
	require.NoError(t, h.machine.SubmitOTP(context.Background(), "123456"))

	err := h.machine.SubmitNewPassword(context.Background(), "short", "short")
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = h.machine.SubmitNewPassword(context.Background(), "secret1", "secret2")
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = h.machine.SubmitNewPassword(context.Background(), "secret1", "secret1")
	require.NoError(t, err)

	require.NotNil(t, h.auth.Registered)
	assert.Equal(t, "123456", h.auth.Registered.OTP)
	assert.Equal(t, "customer", h.auth.Registered.Role)
	assert.Equal(t, 1, h.auth.LoginCalls)
	assert.Equal(t, domain.CheckoutStateSucceeded, h.machine.State())
	assert.True(t, h.cart.Switched)
	assert.True(t, h.cart.Cleared)
}

func TestMachine_ResendCooldownGrowsLinearly(t *testing.T) {
	h := newHarness(t, "")
	h.auth.Exists = false

	require.NoError(t, h.machine.SubmitShipping(context.Background(), validShipping(), "card"))
	assert.Equal(t, 60*time.Second, h.machine.ResendCooldownRemaining())

	// still inside the first window
	err := h.machine.ResendOTP(context.Background())
	assert.ErrorIs(t, err, ErrCooldownActive)

	h.clock.advance(61 * time.Second)
	require.NoError(t, h.machine.ResendOTP(context.Background()))
	assert.Equal(t, 120*time.Second, h.machine.ResendCooldownRemaining())

	h.clock.advance(121 * time.Second)
	require.NoError(t, h.machine.ResendOTP(context.Background()))
	assert.Equal(t, 180*time.Second, h.machine.ResendCooldownRemaining())
	assert.Equal(t, 3, h.auth.IssueCalls)
}

func TestMachine_OrderFailureReturnsToForm(t *testing.T) {
	h := newHarness(t, "tok-1")
	h.session.OrderErr = errors.New("payment declined")

	err := h.machine.SubmitShipping(context.Background(), validShipping(), "card")
	require.Error(t, err)

	assert.Equal(t, domain.CheckoutStateCollectingInfo, h.machine.State())
	assert.Equal(t, "payment declined", h.machine.Err())
	assert.False(t, h.cart.Cleared)
	assert.Empty(t, h.machine.OrderID())

	// retry after the backend recovers
	h.session.OrderErr = nil
	err = h.machine.SubmitShipping(context.Background(), validShipping(), "card")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStateSucceeded, h.machine.State())
	assert.Equal(t, "", h.machine.Err())
}

func TestMachine_ProfileSyncFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, "tok-1")
	h.session.ProfileErr = errors.New("profile service down")

	err := h.machine.SubmitShipping(context.Background(), validShipping(), "card")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStateSucceeded, h.machine.State())
}

func TestMachine_WrongStateRejected(t *testing.T) {
	h := newHarness(t, "")

	assert.ErrorIs(t, h.machine.SubmitPassword(context.Background(), "x"), ErrWrongState)
	assert.ErrorIs(t, h.machine.SubmitOTP(context.Background(), "123456"), ErrWrongState)
	assert.ErrorIs(t, h.machine.ResendOTP(context.Background()), ErrWrongState)
	assert.ErrorIs(t, h.machine.SubmitNewPassword(context.Background(), "secret1", "secret1"), ErrWrongState)
}

func TestMachine_BackReturnsToForm(t *testing.T) {
	h := newHarness(t, "")
	h.auth.Exists = true

	assert.ErrorIs(t, h.machine.Back(context.Background()), ErrWrongState)

	require.NoError(t, h.machine.SubmitShipping(context.Background(), validShipping(), "card"))
	require.Equal(t, domain.CheckoutStateAwaitingPassword, h.machine.State())

	require.NoError(t, h.machine.Back(context.Background()))
	assert.Equal(t, domain.CheckoutStateCollectingInfo, h.machine.State())
}

func TestMachine_AbandonDeletesSession(t *testing.T) {
	h := newHarness(t, "")

	require.NoError(t, h.machine.Abandon(context.Background()))
	assert.Equal(t, h.machine.SessionID(), h.repo.DeletedID)
}

func TestMachine_SucceededRejectsFurtherSubmissions(t *testing.T) {
	h := newHarness(t, "tok-1")

	require.NoError(t, h.machine.SubmitShipping(context.Background(), validShipping(), "card"))
	require.Equal(t, domain.CheckoutStateSucceeded, h.machine.State())

	assert.ErrorIs(t, h.machine.SubmitShipping(context.Background(), validShipping(), "card"), ErrWrongState)
	assert.ErrorIs(t, h.machine.Back(context.Background()), ErrWrongState)
	assert.Equal(t, domain.CheckoutStateSucceeded, h.machine.State())
}

func TestMachine_ResumeInterruptedSession(t *testing.T) {
	h := newHarness(t, "")
	h.auth.Exists = false

	info := validShipping()
	info.Email = "new@x.com"
	require.NoError(t, h.machine.SubmitShipping(context.Background(), info, "card"))
	require.Equal(t, domain.CheckoutStateAwaitingOtp, h.machine.State())
	sessionID := h.machine.SessionID()

	// a fresh process rebuilds the machine from the persisted session;
	// the resolution sub-state cannot survive, the form data does
	resumed, err := ResumeMachine(
		context.Background(),
		h.auth,
		func(string) SessionAPI { return h.session },
		h.cart,
		domain.NewIdentityContext(),
		h.repo,
		defaultTestPolicy(),
		"",
		sessionID,
	)
	require.NoError(t, err)
	assert.Equal(t, sessionID, resumed.SessionID())
	assert.Equal(t, domain.CheckoutStateCollectingInfo, resumed.State())
	require.NotNil(t, h.repo.Stored)
	assert.Equal(t, "new@x.com", h.repo.Stored.Email)
	assert.Equal(t, "Ann", h.repo.Stored.Shipping.FirstName)
}

func TestMachine_ResumeRejectsFinishedSession(t *testing.T) {
	h := newHarness(t, "tok-1")

	require.NoError(t, h.machine.SubmitShipping(context.Background(), validShipping(), "card"))
	sessionID := h.machine.SessionID()

	_, err := ResumeMachine(
		context.Background(),
		h.auth,
		func(string) SessionAPI { return h.session },
		h.cart,
		domain.NewIdentityContext(),
		h.repo,
		defaultTestPolicy(),
		"",
		sessionID,
	)
	assert.ErrorIs(t, err, ErrSessionFinished)
}

func TestMachine_ResumeUnknownSession(t *testing.T) {
	h := newHarness(t, "")

	_, err := ResumeMachine(
		context.Background(),
		h.auth,
		func(string) SessionAPI { return h.session },
		h.cart,
		domain.NewIdentityContext(),
		h.repo,
		defaultTestPolicy(),
		"",
		"no-such-session",
	)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestMachine_BusyGuard(t *testing.T) {
	h := newHarness(t, "")
	h.machine.busy.Store(true)

	err := h.machine.SubmitShipping(context.Background(), validShipping(), "card")
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
}
