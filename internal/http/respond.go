package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/fjod/storefront/internal/backend"
	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/coupon"
	"github.com/fjod/storefront/internal/repository"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleDomainError maps sentinel errors from the inner packages to HTTP
// status codes.
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrInvalidInput),
		errors.Is(err, cart.ErrInvalidProductRef),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, coupon.ErrEmptyCode):
		respondError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, checkout.ErrWrongState), errors.Is(err, checkout.ErrSessionFinished):
		respondError(w, http.StatusConflict, "wrong_state", err.Error())
	case errors.Is(err, checkout.ErrSubmissionInFlight),
		errors.Is(err, cart.ErrMutationInFlight):
		respondError(w, http.StatusConflict, "in_flight", err.Error())
	case errors.Is(err, checkout.ErrCooldownActive):
		respondError(w, http.StatusTooManyRequests, "cooldown_active", err.Error())
	case errors.Is(err, cart.ErrItemNotFound), errors.Is(err, repository.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, backend.ErrAuthFailed):
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, backend.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, backend.ErrRejected), errors.Is(err, coupon.ErrRejected):
		respondError(w, http.StatusUnprocessableEntity, "rejected", err.Error())
	case errors.Is(err, backend.ErrValidation):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, backend.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
