package http

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/fjod/storefront/domain"
)

type CheckoutHandler struct {
	registry *Registry
	timeout  time.Duration
}

func NewCheckoutHandler(registry *Registry, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		registry: registry,
		timeout:  timeout,
	}
}

type StartCheckoutRequestDTO struct {
	SessionID string `json:"session_id,omitempty"`
}

type SubmitShippingRequestDTO struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	City          string `json:"city"`
	PaymentMethod string `json:"payment_method"`
}

type SubmitPasswordRequestDTO struct {
	Password string `json:"password"`
}

type SubmitOTPRequestDTO struct {
	Code string `json:"code"`
}

type SubmitNewPasswordRequestDTO struct {
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
}

type CheckoutStatusDTO struct {
	SessionID       string               `json:"session_id"`
	State           domain.CheckoutState `json:"state"`
	Error           string               `json:"error,omitempty"`
	OrderID         string               `json:"order_id,omitempty"`
	ResendCooldownS int                  `json:"resend_cooldown_seconds,omitempty"`
}

func (h *CheckoutHandler) session(r *http.Request) (*ClientSession, context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	return h.registry.Session(ctx, getGuestID(r.Context())), ctx, cancel
}

func statusDTO(session *ClientSession) CheckoutStatusDTO {
	m := session.Machine()
	return CheckoutStatusDTO{
		SessionID:       m.SessionID(),
		State:           m.State(),
		Error:           m.Err(),
		OrderID:         m.OrderID(),
		ResendCooldownS: int(math.Ceil(m.ResendCooldownRemaining().Seconds())),
	}
}

// Start opens a checkout session, or resumes one. With a session_id in
// the body the persisted session is rehydrated; without one an existing
// unfinished machine is returned as is, so repeated Starts never orphan
// a live session row.
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	session, ctx, cancel := h.session(r)
	defer cancel()

	var req StartCheckoutRequestDTO
	// the body is optional
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.SessionID != "" {
		machine, err := h.registry.ResumeMachine(ctx, session, req.SessionID)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		session.SetMachine(machine)
		respondJSON(w, http.StatusOK, statusDTO(session))
		return
	}

	if existing := session.Machine(); existing != nil && !existing.State().IsTerminal() {
		respondJSON(w, http.StatusOK, statusDTO(session))
		return
	}

	session.SetMachine(h.registry.NewMachine(ctx, session))
	respondJSON(w, http.StatusCreated, statusDTO(session))
}

func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	session, _, cancel := h.session(r)
	defer cancel()

	if session.Machine() == nil {
		respondError(w, http.StatusNotFound, "no_checkout", "no active checkout session")
		return
	}
	respondJSON(w, http.StatusOK, statusDTO(session))
}

func (h *CheckoutHandler) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	session, ctx, cancel := h.session(r)
	defer cancel()

	machine := session.Machine()
	if machine == nil {
		respondError(w, http.StatusNotFound, "no_checkout", "no active checkout session")
		return
	}

	var req SubmitShippingRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	info := domain.ShippingInfo{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		City:      req.City,
	}
	if err := machine.SubmitShipping(ctx, info, req.PaymentMethod); err != nil {
		// identity resolution and order failures still move the state
		// machine; the DTO carries where it landed
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, statusDTO(session))
}

func (h *CheckoutHandler) SubmitPassword(w http.ResponseWriter, r *http.Request) {
	session, ctx, cancel := h.session(r)
	defer cancel()

	machine := session.Machine()
	if machine == nil {
		respondError(w, http.StatusNotFound, "no_checkout", "no active checkout session")
		return
	}

	var req SubmitPasswordRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := machine.SubmitPassword(ctx, req.Password); err != nil {
		handleDomainError(w, err)
		return
	}

	h.syncToken(session)
	respondJSON(w, http.StatusOK, statusDTO(session))
}

func (h *CheckoutHandler) SubmitOTP(w http.ResponseWriter, r *http.Request) {
	session, ctx, cancel := h.session(r)
	defer cancel()

	machine := session.Machine()
	if machine == nil {
		respondError(w, http.StatusNotFound, "no_checkout", "no active checkout session")
		return
	}

	var req SubmitOTPRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := machine.SubmitOTP(ctx, req.Code); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, statusDTO(session))
}

func (h *CheckoutHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	session, ctx, cancel := h.session(r)
	defer cancel()

	machine := session.Machine()
	if machine == nil {
		respondError(w, http.StatusNotFound, "no_checkout", "no active checkout session")
		return
	}

	if err := machine.ResendOTP(ctx); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, statusDTO(session))
}

func (h *CheckoutHandler) SubmitNewPassword(w http.ResponseWriter, r *http.Request) {
	session, ctx, cancel := h.session(r)
	defer cancel()

	machine := session.Machine()
	if machine == nil {
		respondError(w, http.StatusNotFound, "no_checkout", "no active checkout session")
		return
	}

	var req SubmitNewPasswordRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := machine.SubmitNewPassword(ctx, req.Password, req.Confirmation); err != nil {
		handleDomainError(w, err)
		return
	}

	h.syncToken(session)
	respondJSON(w, http.StatusOK, statusDTO(session))
}

func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	session, ctx, cancel := h.session(r)
	defer cancel()

	machine := session.Machine()
	if machine == nil {
		respondError(w, http.StatusNotFound, "no_checkout", "no active checkout session")
		return
	}

	if err := machine.Back(ctx); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, statusDTO(session))
}

func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	session, ctx, cancel := h.session(r)
	defer cancel()

	machine := session.Machine()
	if machine == nil {
		respondError(w, http.StatusNotFound, "no_checkout", "no active checkout session")
		return
	}

	if err := machine.Abandon(ctx); err != nil {
		handleDomainError(w, err)
		return
	}

	session.SetMachine(nil)
	w.WriteHeader(http.StatusNoContent)
}

// syncToken carries a token obtained during checkout login back to the
// client session so later requests reuse it.
func (h *CheckoutHandler) syncToken(session *ClientSession) {
	if session.Identity.Authenticated() && session.Token() == "" {
		if token := session.Machine().Token(); token != "" {
			session.SetToken(token)
		}
	}
}
