package http

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/backend"
	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/fjod/storefront/internal/repository"
)

// ClientSession is the per-browser-profile state: one cart store, one
// identity context, at most one checkout machine.
type ClientSession struct {
	GuestID  string
	Store    *cart.Store
	Identity *domain.IdentityContext

	mu      sync.Mutex
	machine *checkout.Machine
	token   string
}

func (s *ClientSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *ClientSession) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *ClientSession) Machine() *checkout.Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine
}

func (s *ClientSession) SetMachine(m *checkout.Machine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine = m
}

// Registry hands out client sessions keyed by guest id, creating them
// lazily on first contact.
type Registry struct {
	storage     cart.GuestStorage
	validator   cart.CouponValidator
	backend     *backend.Client
	repo        repository.RepoInterface
	policy      pricing.Policy
	settleDelay time.Duration

	mu       sync.Mutex
	sessions map[string]*ClientSession
}

func NewRegistry(
	storage cart.GuestStorage,
	validator cart.CouponValidator,
	backendClient *backend.Client,
	repo repository.RepoInterface,
	policy pricing.Policy,
	settleDelay time.Duration,
) *Registry {
	return &Registry{
		storage:     storage,
		validator:   validator,
		backend:     backendClient,
		repo:        repo,
		policy:      policy,
		settleDelay: settleDelay,
		sessions:    make(map[string]*ClientSession),
	}
}

func (reg *Registry) Session(ctx context.Context, guestID string) *ClientSession {
	reg.mu.Lock()
	if existing, ok := reg.sessions[guestID]; ok {
		reg.mu.Unlock()
		return existing
	}
	session := &ClientSession{
		GuestID:  guestID,
		Store:    cart.NewStore(guestID, reg.storage, reg.validator, reg.settleDelay),
		Identity: domain.NewIdentityContext(),
	}
	reg.sessions[guestID] = session
	reg.mu.Unlock()

	if err := session.Store.LoadGuest(ctx); err != nil {
		log.Printf("failed to load guest cart %v: %v", guestID, err)
	}
	return session
}

// NewMachine builds a checkout machine bound to the client session's
// cart, identity and current token.
func (reg *Registry) NewMachine(ctx context.Context, session *ClientSession) *checkout.Machine {
	factory := func(token string) checkout.SessionAPI {
		return reg.backend.Session(token)
	}
	return checkout.NewMachine(
		ctx,
		reg.backend,
		factory,
		session.Store,
		session.Identity,
		reg.repo,
		reg.policy,
		session.Token(),
	)
}

// ResumeMachine rehydrates a persisted checkout session for this client.
func (reg *Registry) ResumeMachine(ctx context.Context, session *ClientSession, sessionID string) (*checkout.Machine, error) {
	factory := func(token string) checkout.SessionAPI {
		return reg.backend.Session(token)
	}
	return checkout.ResumeMachine(
		ctx,
		reg.backend,
		factory,
		session.Store,
		session.Identity,
		reg.repo,
		reg.policy,
		session.Token(),
		sessionID,
	)
}
