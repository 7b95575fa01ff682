package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fjod/storefront/domain"
)

// SessionClient issues session-bound calls: the remote cart, profile
// updates and order submission.
type SessionClient struct {
	client *Client
	token  string
}

type cartResponse struct {
	Items []domain.LineItem `json:"items"`
}

// FetchCart returns the authoritative server-side cart for this session.
func (s *SessionClient) FetchCart(ctx context.Context) ([]domain.LineItem, error) {
	var resp cartResponse
	if err := s.client.doJSON(ctx, http.MethodGet, "/cart", s.token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// AddCartItem adds a line and returns the full updated item list. The
// server response replaces the local snapshot; nothing is predicted.
func (s *SessionClient) AddCartItem(ctx context.Context, productRef string, quantity int) ([]domain.LineItem, error) {
	body := map[string]any{"product_ref": productRef, "quantity": quantity}
	var resp cartResponse
	if err := s.client.doJSON(ctx, http.MethodPost, "/cart/items", s.token, body, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (s *SessionClient) UpdateCartItem(ctx context.Context, productRef string, quantity int) ([]domain.LineItem, error) {
	body := map[string]any{"quantity": quantity}
	path := "/cart/items/" + url.PathEscape(productRef)
	var resp cartResponse
	if err := s.client.doJSON(ctx, http.MethodPut, path, s.token, body, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (s *SessionClient) RemoveCartItem(ctx context.Context, productRef string) ([]domain.LineItem, error) {
	path := "/cart/items/" + url.PathEscape(productRef)
	var resp cartResponse
	if err := s.client.doJSON(ctx, http.MethodDelete, path, s.token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (s *SessionClient) ClearCart(ctx context.Context) error {
	return s.client.doJSON(ctx, http.MethodDelete, "/cart", s.token, nil, nil)
}

type ProfileUpdate struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

// UpdateProfile syncs shipping fields onto the user record. Callers on
// the checkout path treat failures as non-fatal.
func (s *SessionClient) UpdateProfile(ctx context.Context, upd ProfileUpdate) error {
	return s.client.doJSON(ctx, http.MethodPut, "/users/me", s.token, upd, nil)
}

type OrderRequest struct {
	Items          []domain.LineItem   `json:"items"`
	Subtotal       float64             `json:"subtotal"`
	Discount       float64             `json:"discount"`
	Shipping       float64             `json:"shipping"`
	Tax            float64             `json:"tax"`
	Total          float64             `json:"total"`
	ShippingInfo   domain.ShippingInfo `json:"shipping_info"`
	PaymentMethod  string              `json:"payment_method"`
	CouponCode     string              `json:"coupon_code,omitempty"`
	CouponDiscount float64             `json:"coupon_discount,omitempty"`
}

type OrderResponse struct {
	OrderID string `json:"order_id"`
}

func (s *SessionClient) SubmitOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	var resp OrderResponse
	if err := s.client.doJSON(ctx, http.MethodPost, "/orders", s.token, req, &resp); err != nil {
		return nil, err
	}
	if resp.OrderID == "" {
		return nil, fmt.Errorf("%w: order created without id", ErrRejected)
	}
	return &resp, nil
}
