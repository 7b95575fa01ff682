package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/pricing"
)

type CartHandler struct {
	registry *Registry
	policy   pricing.Policy
	timeout  time.Duration
}

func NewCartHandler(registry *Registry, policy pricing.Policy, timeout time.Duration) *CartHandler {
	return &CartHandler{
		registry: registry,
		policy:   policy,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ProductRef string  `json:"product_ref"`
	UnitPrice  float64 `json:"unit_price"`
	Quantity   int     `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type ApplyCouponRequestDTO struct {
	Code string `json:"code"`
}

type CartResponseDTO struct {
	Items  []domain.LineItem     `json:"items"`
	Mode   domain.CartMode       `json:"mode"`
	Coupon *domain.AppliedCoupon `json:"coupon,omitempty"`
	Totals pricing.Totals        `json:"totals"`
}

func (h *CartHandler) session(r *http.Request) (*ClientSession, context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	return h.registry.Session(ctx, getGuestID(r.Context())), ctx, cancel
}

// cartResponse assembles the summary view. Tax is deliberately absent
// until checkout.
func (h *CartHandler) cartResponse(session *ClientSession) CartResponseDTO {
	snap := session.Store.Snapshot()
	coupon := session.Store.Coupon()
	items := snap.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	return CartResponseDTO{
		Items:  items,
		Mode:   snap.Mode,
		Coupon: coupon,
		Totals: pricing.SummaryTotals(snap, coupon, h.policy),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	session, _, cancel := h.session(r)
	defer cancel()

	respondJSON(w, http.StatusOK, h.cartResponse(session))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	session, ctx, cancel := h.session(r)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := session.Store.Add(ctx, req.ProductRef, req.UnitPrice, req.Quantity); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, h.cartResponse(session))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	session, ctx, cancel := h.session(r)
	defer cancel()

	productRef := chi.URLParam(r, "product_ref")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := session.Store.UpdateQuantity(ctx, productRef, req.Quantity); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.cartResponse(session))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	session, ctx, cancel := h.session(r)
	defer cancel()

	productRef := chi.URLParam(r, "product_ref")

	if err := session.Store.Remove(ctx, productRef); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.cartResponse(session))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	session, ctx, cancel := h.session(r)
	defer cancel()

	if err := session.Store.Clear(ctx); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.cartResponse(session))
}

func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	session, ctx, cancel := h.session(r)
	defer cancel()

	var req ApplyCouponRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if _, err := session.Store.ApplyCoupon(ctx, req.Code); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.cartResponse(session))
}

func (h *CartHandler) ClearCoupon(w http.ResponseWriter, r *http.Request) {
	session, _, cancel := h.session(r)
	defer cancel()

	session.Store.ClearCoupon()
	respondJSON(w, http.StatusOK, h.cartResponse(session))
}
