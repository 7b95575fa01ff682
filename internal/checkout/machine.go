package checkout

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/backend"
	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/google/uuid"
)

// Clock provides current time (for testability of the resend cooldown).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// AuthBackend is the slice of the collaborator API used for identity
// resolution.
type AuthBackend interface {
	CheckIdentity(ctx context.Context, email string) (bool, error)
	IssueOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) error
	Register(ctx context.Context, req backend.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*backend.LoginResult, error)
}

// SessionAPI bundles the session-bound collaborator calls the machine
// needs once a token exists.
type SessionAPI interface {
	cart.RemoteCart
	UpdateProfile(ctx context.Context, upd backend.ProfileUpdate) error
	SubmitOrder(ctx context.Context, req backend.OrderRequest) (*backend.OrderResponse, error)
}

// SessionFactory binds a token to a SessionAPI.
type SessionFactory func(token string) SessionAPI

// CartStore is the read-plus-clear contract the machine borrows from the
// Cart Store. The machine never mutates line items.
type CartStore interface {
	Snapshot() domain.CartSnapshot
	Coupon() *domain.AppliedCoupon
	Clear(ctx context.Context) error
	SwitchToAuthenticated(ctx context.Context, remote cart.RemoteCart) error
}

// SessionStore persists checkout sessions. All writes from the machine
// are best-effort; persistence failures never block the buyer. Reads
// back a session only when resuming.
type SessionStore interface {
	CreateSession(ctx context.Context, session *domain.CheckoutSession) error
	GetSession(ctx context.Context, id string) (*domain.CheckoutSession, error)
	SaveSession(ctx context.Context, session *domain.CheckoutSession) error
	CompleteSession(ctx context.Context, id string, payload []byte) error
	DeleteSession(ctx context.Context, id string) error
}

// Machine drives the guest-to-authenticated transition required before
// an order can be submitted. One transition method per state; every
// edge is checked against the domain transition table.
type Machine struct {
	auth     AuthBackend
	sessions SessionFactory
	cart     CartStore
	identity *domain.IdentityContext
	repo     SessionStore
	policy   pricing.Policy
	clock    Clock

	// busy rejects a second request while one is in flight; retries are
	// user-initiated, never concurrent.
	busy atomic.Bool

	mu            sync.Mutex
	session       *domain.CheckoutSession
	token         string
	verifiedOTP   string
	resendCount   int
	cooldownUntil time.Time
	lastErr       string
	orderID       string
}

func NewMachine(
	ctx context.Context,
	auth AuthBackend,
	sessions SessionFactory,
	cartStore CartStore,
	identity *domain.IdentityContext,
	repo SessionStore,
	policy pricing.Policy,
	token string,
) *Machine {
	return newMachine(ctx, auth, sessions, cartStore, identity, repo, policy, token, systemClock{})
}

// NewMachineWithClock is useful for tests.
func NewMachineWithClock(
	ctx context.Context,
	auth AuthBackend,
	sessions SessionFactory,
	cartStore CartStore,
	identity *domain.IdentityContext,
	repo SessionStore,
	policy pricing.Policy,
	token string,
	clock Clock,
) *Machine {
	if clock == nil {
		clock = systemClock{}
	}
	return newMachine(ctx, auth, sessions, cartStore, identity, repo, policy, token, clock)
}

func newMachine(
	ctx context.Context,
	auth AuthBackend,
	sessions SessionFactory,
	cartStore CartStore,
	identity *domain.IdentityContext,
	repo SessionStore,
	policy pricing.Policy,
	token string,
	clock Clock,
) *Machine {
	now := clock.Now()
	m := &Machine{
		auth:     auth,
		sessions: sessions,
		cart:     cartStore,
		identity: identity,
		repo:     repo,
		policy:   policy,
		clock:    clock,
		token:    token,
		session: &domain.CheckoutSession{
			ID:        uuid.NewString(),
			State:     domain.CheckoutStateCollectingInfo,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	if err := repo.CreateSession(ctx, m.session); err != nil {
		log.Printf("failed to persist checkout session %v: %v", m.session.ID, err)
	}
	return m
}

// ErrSessionFinished rejects resuming a checkout that already succeeded.
var ErrSessionFinished = errors.New("checkout: session already finished")

// ResumeMachine rehydrates a persisted, unfinished checkout session.
// Identity-resolution context (token, verified code) does not survive a
// restart, so any resolution or submission sub-state falls back to the
// shipping form with the entered data intact.
func ResumeMachine(
	ctx context.Context,
	auth AuthBackend,
	sessions SessionFactory,
	cartStore CartStore,
	identity *domain.IdentityContext,
	repo SessionStore,
	policy pricing.Policy,
	token string,
	sessionID string,
) (*Machine, error) {
	return resumeMachine(ctx, auth, sessions, cartStore, identity, repo, policy, token, sessionID, systemClock{})
}

func resumeMachine(
	ctx context.Context,
	auth AuthBackend,
	sessions SessionFactory,
	cartStore CartStore,
	identity *domain.IdentityContext,
	repo SessionStore,
	policy pricing.Policy,
	token string,
	sessionID string,
	clock Clock,
) (*Machine, error) {
	session, err := repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State.IsTerminal() {
		return nil, ErrSessionFinished
	}

	m := &Machine{
		auth:     auth,
		sessions: sessions,
		cart:     cartStore,
		identity: identity,
		repo:     repo,
		policy:   policy,
		clock:    clock,
		token:    token,
		session:  session,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch session.State {
	case domain.CheckoutStateCollectingInfo:
	case domain.CheckoutStateSubmittingOrder:
		// interrupted mid-submit; the recovery poller may not have swept
		// it yet
		m.setStateLocked(ctx, domain.CheckoutStateFailed)
		m.setStateLocked(ctx, domain.CheckoutStateCollectingInfo)
	default:
		m.setStateLocked(ctx, domain.CheckoutStateCollectingInfo)
	}
	return m, nil
}

func (m *Machine) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.ID
}

func (m *Machine) State() domain.CheckoutState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.State
}

// Err returns the message for the current sub-state, empty when none.
func (m *Machine) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Machine) OrderID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderID
}

// Token exposes the session token acquired during identity resolution,
// empty until a login happened.
func (m *Machine) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// ResendCooldownRemaining reports how long until resend is allowed.
func (m *Machine) ResendCooldownRemaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := m.cooldownUntil.Sub(m.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Back abandons the current identity-resolution sub-state and returns to
// the shipping form. Nothing entered so far is lost.
func (m *Machine) Back(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.session.State {
	case domain.CheckoutStateAwaitingPassword, domain.CheckoutStateAwaitingOtp, domain.CheckoutStateAwaitingNewPassword:
		m.setStateLocked(ctx, domain.CheckoutStateCollectingInfo)
		m.lastErr = ""
		return nil
	default:
		return ErrWrongState
	}
}

// Abandon destroys the session (navigation away from checkout).
func (m *Machine) Abandon(ctx context.Context) error {
	m.mu.Lock()
	id := m.session.ID
	m.mu.Unlock()
	return m.repo.DeleteSession(ctx, id)
}

func (m *Machine) begin() error {
	if !m.busy.CompareAndSwap(false, true) {
		return ErrSubmissionInFlight
	}
	return nil
}

func (m *Machine) end() {
	m.busy.Store(false)
}

// setStateLocked moves the session along an edge of the transition
// table and persists the new state best-effort. An illegal edge is a
// programming error; it is logged and refused so the session never
// records an impossible history. Callers hold m.mu.
func (m *Machine) setStateLocked(ctx context.Context, to domain.CheckoutState) {
	if !domain.CanTransitionTo(m.session.State, to) {
		log.Printf("refusing illegal checkout transition %v -> %v for session %v", m.session.State, to, m.session.ID)
		return
	}
	m.session.State = to
	m.session.UpdatedAt = m.clock.Now()
	if err := m.repo.SaveSession(ctx, m.session); err != nil {
		log.Printf("failed to save checkout session %v: %v", m.session.ID, err)
	}
}

func (m *Machine) setErrLocked(msg string) {
	m.lastErr = msg
}

// afterLogin installs the authenticated identity and kicks off cart
// reconciliation. Reconciliation failure is logged, not surfaced: the
// order payload was snapshotted when the shipping form was submitted.
func (m *Machine) afterLogin(ctx context.Context, res *backend.LoginResult) {
	m.mu.Lock()
	m.token = res.Token
	m.mu.Unlock()

	user := res.User
	m.identity.SetUser(&user)

	if err := m.cart.SwitchToAuthenticated(ctx, m.sessions(res.Token)); err != nil {
		log.Printf("cart reconciliation after login failed: %v", err)
	}
}
