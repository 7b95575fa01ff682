package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/backend"
	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockAuth implements AuthBackend
type mockAuth struct {
	Exists      bool
	CheckErr    error
	IssueErr    error
	IssueCalls  int
	VerifyErr   error
	RegisterErr error
	Registered  *backend.RegisterRequest
	LoginErr    error
	LoginRes    *backend.LoginResult
	LoginCalls  int
}

func (m *mockAuth) CheckIdentity(_ context.Context, _ string) (bool, error) {
	return m.Exists, m.CheckErr
}

func (m *mockAuth) IssueOTP(_ context.Context, _ string) error {
	m.IssueCalls++
	return m.IssueErr
}

func (m *mockAuth) VerifyOTP(_ context.Context, _, _ string) error {
	return m.VerifyErr
}

func (m *mockAuth) Register(_ context.Context, req backend.RegisterRequest) (*domain.User, error) {
	m.Registered = &req
	if m.RegisterErr != nil {
		return nil, m.RegisterErr
	}
	return &domain.User{ID: "u-1", Email: req.Email, Role: req.Role}, nil
}

func (m *mockAuth) Login(_ context.Context, email, _ string) (*backend.LoginResult, error) {
	m.LoginCalls++
	if m.LoginErr != nil {
		return nil, m.LoginErr
	}
	if m.LoginRes != nil {
		return m.LoginRes, nil
	}
	return &backend.LoginResult{
		User:  domain.User{ID: "u-1", Email: email},
		Token: "session-token",
	}, nil
}

// mockSession implements SessionAPI
type mockSession struct {
	ProfileErr   error
	ProfileCalls int
	OrderResp    *backend.OrderResponse
	OrderErr     error
	GotOrder     *backend.OrderRequest
	RemoteItems  []domain.LineItem
}

func (m *mockSession) FetchCart(context.Context) ([]domain.LineItem, error) {
	return m.RemoteItems, nil
}

func (m *mockSession) AddCartItem(context.Context, string, int) ([]domain.LineItem, error) {
	return m.RemoteItems, nil
}

func (m *mockSession) UpdateCartItem(context.Context, string, int) ([]domain.LineItem, error) {
	return m.RemoteItems, nil
}

func (m *mockSession) RemoveCartItem(context.Context, string) ([]domain.LineItem, error) {
	return m.RemoteItems, nil
}

func (m *mockSession) ClearCart(context.Context) error {
	return nil
}

func (m *mockSession) UpdateProfile(_ context.Context, _ backend.ProfileUpdate) error {
	m.ProfileCalls++
	return m.ProfileErr
}

func (m *mockSession) SubmitOrder(_ context.Context, req backend.OrderRequest) (*backend.OrderResponse, error) {
	m.GotOrder = &req
	if m.OrderErr != nil {
		return nil, m.OrderErr
	}
	if m.OrderResp != nil {
		return m.OrderResp, nil
	}
	return &backend.OrderResponse{OrderID: "ord-1"}, nil
}

// mockCart implements CartStore
type mockCart struct {
	Items       []domain.LineItem
	AppliedC    *domain.AppliedCoupon
	Cleared     bool
	Switched    bool
	SwitchToken cart.RemoteCart
	SwitchErr   error
}

func (m *mockCart) Snapshot() domain.CartSnapshot {
	return domain.CartSnapshot{Items: m.Items, Mode: domain.CartModeGuest}
}

func (m *mockCart) Coupon() *domain.AppliedCoupon {
	return m.AppliedC
}

func (m *mockCart) Clear(context.Context) error {
	m.Cleared = true
	return nil
}

func (m *mockCart) SwitchToAuthenticated(_ context.Context, remote cart.RemoteCart) error {
	m.Switched = true
	m.SwitchToken = remote
	return m.SwitchErr
}

// mockSessionStore implements SessionStore
type mockSessionStore struct {
	Created    *domain.CheckoutSession
	Stored     *domain.CheckoutSession
	SavedState domain.CheckoutState
	SaveCalls  int
	Completed  []byte
	DeletedID  string
	CreateErr  error
	SaveErr    error
}

func (m *mockSessionStore) CreateSession(_ context.Context, s *domain.CheckoutSession) error {
	created := *s
	stored := *s
	m.Created = &created
	m.Stored = &stored
	return m.CreateErr
}

func (m *mockSessionStore) GetSession(_ context.Context, id string) (*domain.CheckoutSession, error) {
	if m.Stored == nil || m.Stored.ID != id {
		return nil, repository.ErrSessionNotFound
	}
	copied := *m.Stored
	return &copied, nil
}

func (m *mockSessionStore) SaveSession(_ context.Context, s *domain.CheckoutSession) error {
	m.SaveCalls++
	m.SavedState = s.State
	if m.SaveErr == nil {
		copied := *s
		m.Stored = &copied
	}
	return m.SaveErr
}

func (m *mockSessionStore) CompleteSession(_ context.Context, id string, payload []byte) error {
	m.Completed = payload
	if m.Stored != nil && m.Stored.ID == id {
		m.Stored.State = domain.CheckoutStateSucceeded
	}
	return nil
}

func (m *mockSessionStore) DeleteSession(_ context.Context, id string) error {
	m.DeletedID = id
	return nil
}
