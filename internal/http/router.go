package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fjod/storefront/internal/backend"
	"github.com/fjod/storefront/internal/pricing"
)

// NewRouter wires the full storefront surface.
func NewRouter(
	registry *Registry,
	backendClient *backend.Client,
	policy pricing.Policy,
	requestTimeout time.Duration,
) http.Handler {
	cartHandler := NewCartHandler(registry, policy, requestTimeout)
	checkoutHandler := NewCheckoutHandler(registry, requestTimeout)
	authHandler := NewAuthHandler(registry, backendClient, requestTimeout)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(GuestIDMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_ref}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_ref}", cartHandler.RemoveItem)
			r.Post("/coupon", cartHandler.ApplyCoupon)
			r.Delete("/coupon", cartHandler.ClearCoupon)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", checkoutHandler.Start)
			r.Get("/", checkoutHandler.Status)
			r.Delete("/", checkoutHandler.Abandon)
			r.Post("/shipping", checkoutHandler.SubmitShipping)
			r.Post("/password", checkoutHandler.SubmitPassword)
			r.Post("/otp", checkoutHandler.SubmitOTP)
			r.Post("/otp/resend", checkoutHandler.ResendOTP)
			r.Post("/password/new", checkoutHandler.SubmitNewPassword)
			r.Post("/back", checkoutHandler.Back)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
		})
	})

	return r
}
