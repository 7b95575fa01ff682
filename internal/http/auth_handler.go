package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/backend"
)

type AuthHandler struct {
	registry *Registry
	backend  *backend.Client
	timeout  time.Duration
}

func NewAuthHandler(registry *Registry, backendClient *backend.Client, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		registry: registry,
		backend:  backendClient,
		timeout:  timeout,
	}
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponseDTO struct {
	User domain.User     `json:"user"`
	Mode domain.CartMode `json:"cart_mode"`
}

// Login authenticates outside of checkout. The cart switches to the
// remote authoritative copy as part of the same request.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	session := h.registry.Session(ctx, getGuestID(r.Context()))

	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	res, err := h.backend.Login(ctx, req.Email, req.Password)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	user := res.User
	session.Identity.SetUser(&user)
	session.SetToken(res.Token)

	if err := session.Store.SwitchToAuthenticated(ctx, h.backend.Session(res.Token)); err != nil {
		// the login itself succeeded; the cart will reconcile on the
		// next interaction
		log.Printf("cart reconciliation after login failed: %v", err)
	}

	respondJSON(w, http.StatusOK, LoginResponseDTO{
		User: user,
		Mode: session.Store.Mode(),
	})
}

// Logout drops the identity and falls back to the persisted guest cart.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	session := h.registry.Session(ctx, getGuestID(r.Context()))

	session.Identity.Clear()
	session.SetToken("")
	session.SetMachine(nil)

	if err := session.Store.SwitchToGuest(ctx); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"cart_mode": string(session.Store.Mode())})
}
