package cart

import (
	"context"
	"errors"

	"github.com/fjod/storefront/domain"
)

var ErrNoGuestCart = errors.New("guest cart not found")

// GuestStorage persists the guest cart, one record per browser profile.
type GuestStorage interface {
	Load(ctx context.Context, guestID string) ([]domain.LineItem, error)
	Save(ctx context.Context, guestID string, items []domain.LineItem) error
	Clear(ctx context.Context, guestID string) error
}

// RemoteCart is the session-bound collaborator cart. Every mutation
// returns the full authoritative item list.
type RemoteCart interface {
	FetchCart(ctx context.Context) ([]domain.LineItem, error)
	AddCartItem(ctx context.Context, productRef string, quantity int) ([]domain.LineItem, error)
	UpdateCartItem(ctx context.Context, productRef string, quantity int) ([]domain.LineItem, error)
	RemoveCartItem(ctx context.Context, productRef string) ([]domain.LineItem, error)
	ClearCart(ctx context.Context) error
}

// CouponValidator validates a code against a cart snapshot.
type CouponValidator interface {
	Validate(ctx context.Context, code string, snap domain.CartSnapshot) (*domain.AppliedCoupon, error)
}
