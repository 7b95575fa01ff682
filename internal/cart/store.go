package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidProductRef = errors.New("cart: product reference is required")
	ErrInvalidQuantity   = errors.New("cart: quantity must be positive")
	ErrMutationInFlight  = errors.New("cart: mutation already in flight for this product")
	ErrItemNotFound      = errors.New("cart: product not in cart")
)

const clearGuardKey = "\x00clear"

// Store owns the cart snapshot and the applied coupon. It runs as a
// state machine over the identity mode: guest mutations are local and
// persisted synchronously, authenticated mutations are round trips that
// replace the snapshot with whatever the collaborator returns.
type Store struct {
	mu      sync.Mutex
	mode    domain.CartMode
	items   []domain.LineItem
	coupon  *domain.AppliedCoupon
	guestID string

	storage   GuestStorage
	remote    RemoteCart
	validator CouponValidator

	// suppress blocks guest persistence during the identity transition
	// window. It is set before the remote fetch starts and cleared only
	// after settleDelay has passed since the fetch finished.
	suppress    bool
	settleDelay time.Duration

	// gen invalidates responses that started under a previous identity;
	// a stale remote reply must not overwrite the current snapshot.
	gen uint64

	inFlight   map[string]struct{}
	fetchGroup singleflight.Group
}

func NewStore(guestID string, storage GuestStorage, validator CouponValidator, settleDelay time.Duration) *Store {
	return &Store{
		mode:        domain.CartModeGuest,
		guestID:     guestID,
		storage:     storage,
		validator:   validator,
		settleDelay: settleDelay,
		inFlight:    make(map[string]struct{}),
	}
}

// LoadGuest hydrates the store from the persisted guest cart. A missing
// record is an empty cart, not an error.
func (s *Store) LoadGuest(ctx context.Context) error {
	items, err := s.storage.Load(ctx, s.guestID)
	if err != nil && !errors.Is(err, ErrNoGuestCart) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = domain.FilterValid(items)
	return nil
}

func (s *Store) Mode() domain.CartMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Store) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LineItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Snapshot() domain.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.LineItem, len(s.items))
	copy(items, s.items)
	return domain.CartSnapshot{Items: items, Mode: s.mode}
}

func (s *Store) Coupon() *domain.AppliedCoupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coupon == nil {
		return nil
	}
	c := *s.coupon
	return &c
}

// ApplyCoupon validates code against the current snapshot and installs
// the result. At most one coupon is active; success replaces the
// previous one.
func (s *Store) ApplyCoupon(ctx context.Context, code string) (*domain.AppliedCoupon, error) {
	applied, err := s.validator.Validate(ctx, code, s.Snapshot())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupon = applied
	return applied, nil
}

// ClearCoupon is idempotent.
func (s *Store) ClearCoupon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupon = nil
}

// Add puts quantity units of productRef in the cart. In guest mode
// unitPrice is recorded as given; in authenticated mode the server
// decides pricing and the argument is ignored.
func (s *Store) Add(ctx context.Context, productRef string, unitPrice float64, quantity int) error {
	if productRef == "" {
		return ErrInvalidProductRef
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if err := s.beginMutation(productRef); err != nil {
		return err
	}
	defer s.endMutation(productRef)

	s.mu.Lock()
	if s.mode == domain.CartModeGuest {
		defer s.mu.Unlock()
		found := false
		for i := range s.items {
			if s.items[i].ProductRef == productRef {
				s.items[i].Quantity += quantity
				found = true
				break
			}
		}
		if !found {
			s.items = append(s.items, domain.LineItem{
				LineID:     uuid.NewString(),
				ProductRef: productRef,
				UnitPrice:  unitPrice,
				Quantity:   quantity,
			})
		}
		s.coupon = nil
		s.persistLocked(ctx)
		return nil
	}
	remote, gen := s.remote, s.gen
	s.mu.Unlock()

	items, err := remote.AddCartItem(ctx, productRef, quantity)
	if err != nil {
		return fmt.Errorf("failed to add item: %w", err)
	}
	s.replaceIfCurrent(gen, items)
	return nil
}

// UpdateQuantity sets the quantity for productRef. A non-positive
// quantity removes the line instead of keeping a zero row.
func (s *Store) UpdateQuantity(ctx context.Context, productRef string, quantity int) error {
	if productRef == "" {
		return ErrInvalidProductRef
	}
	if quantity <= 0 {
		return s.Remove(ctx, productRef)
	}
	if err := s.beginMutation(productRef); err != nil {
		return err
	}
	defer s.endMutation(productRef)

	s.mu.Lock()
	if s.mode == domain.CartModeGuest {
		defer s.mu.Unlock()
		for i := range s.items {
			if s.items[i].ProductRef == productRef {
				s.items[i].Quantity = quantity
				s.coupon = nil
				s.persistLocked(ctx)
				return nil
			}
		}
		// nothing changed, so the applied coupon stays valid
		return ErrItemNotFound
	}
	remote, gen := s.remote, s.gen
	s.mu.Unlock()

	items, err := remote.UpdateCartItem(ctx, productRef, quantity)
	if err != nil {
		return fmt.Errorf("failed to update quantity: %w", err)
	}
	s.replaceIfCurrent(gen, items)
	return nil
}

func (s *Store) Remove(ctx context.Context, productRef string) error {
	if productRef == "" {
		return ErrInvalidProductRef
	}
	if err := s.beginMutation(productRef); err != nil {
		return err
	}
	defer s.endMutation(productRef)

	s.mu.Lock()
	if s.mode == domain.CartModeGuest {
		defer s.mu.Unlock()
		kept := s.items[:0]
		for _, item := range s.items {
			if item.ProductRef != productRef {
				kept = append(kept, item)
			}
		}
		s.items = kept
		s.coupon = nil
		s.persistLocked(ctx)
		return nil
	}
	remote, gen := s.remote, s.gen
	s.mu.Unlock()

	items, err := remote.RemoveCartItem(ctx, productRef)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	s.replaceIfCurrent(gen, items)
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.beginMutation(clearGuardKey); err != nil {
		return err
	}
	defer s.endMutation(clearGuardKey)

	s.mu.Lock()
	if s.mode == domain.CartModeGuest {
		defer s.mu.Unlock()
		s.items = nil
		s.coupon = nil
		if !s.suppress {
			if err := s.storage.Clear(ctx, s.guestID); err != nil {
				log.Printf("failed to clear guest cart %v: %v", s.guestID, err)
			}
		}
		return nil
	}
	remote, gen := s.remote, s.gen
	s.mu.Unlock()

	if err := remote.ClearCart(ctx); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.items = nil
		s.coupon = nil
	}
	return nil
}

// SwitchToAuthenticated runs the guest-to-authenticated reconciliation:
// suppression goes up before the fetch begins, the remote snapshot
// replaces local state, and guest persistence is re-enabled only after
// the settle delay. The remote cart is authoritative from here on.
func (s *Store) SwitchToAuthenticated(ctx context.Context, remote RemoteCart) error {
	s.mu.Lock()
	s.suppress = true
	s.gen++
	gen := s.gen
	s.remote = remote
	s.coupon = nil
	s.mu.Unlock()

	v, err, _ := s.fetchGroup.Do("remote-fetch", func() (interface{}, error) {
		return remote.FetchCart(ctx)
	})

	// cool-down window: let dependent state settle before guest
	// persistence may fire again
	time.AfterFunc(s.settleDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen == gen {
			s.suppress = false
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil // a newer transition superseded this one
	}
	s.mode = domain.CartModeAuthenticated
	if err != nil {
		return fmt.Errorf("failed to fetch remote cart: %w", err)
	}
	s.items = domain.FilterValid(v.([]domain.LineItem))
	return nil
}

// SwitchToGuest reloads whatever guest cart existed before login, or an
// empty one.
func (s *Store) SwitchToGuest(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mode = domain.CartModeGuest
	s.remote = nil
	s.coupon = nil
	s.suppress = false
	s.items = nil
	s.mu.Unlock()

	items, err := s.storage.Load(ctx, s.guestID)
	if err != nil && !errors.Is(err, ErrNoGuestCart) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.items = domain.FilterValid(items)
	}
	return nil
}

func (s *Store) beginMutation(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[key]; busy {
		return ErrMutationInFlight
	}
	s.inFlight[key] = struct{}{}
	return nil
}

func (s *Store) endMutation(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

// persistLocked writes the guest cart through unless the transition
// window suppressed persistence. Callers hold s.mu.
func (s *Store) persistLocked(ctx context.Context) {
	if s.suppress {
		return
	}
	items := make([]domain.LineItem, len(s.items))
	copy(items, s.items)
	if err := s.storage.Save(ctx, s.guestID, items); err != nil {
		log.Printf("failed to persist guest cart %v: %v", s.guestID, err)
	}
}

func (s *Store) replaceIfCurrent(gen uint64, items []domain.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return // stale response from a previous identity
	}
	s.items = domain.FilterValid(items)
	s.coupon = nil
}
