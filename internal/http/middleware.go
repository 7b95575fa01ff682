package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	guestIDKey   contextKey = "guest_id"
	requestIDKey contextKey = "request_id"

	guestCookieName = "guest_id"
	guestCookieTTL  = 365 * 24 * time.Hour
)

// GuestIDMiddleware assigns every browser profile a stable guest id via
// cookie. The id keys the persisted guest cart.
func GuestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var guestID string
		if c, err := r.Cookie(guestCookieName); err == nil && c.Value != "" {
			guestID = c.Value
		} else {
			guestID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     guestCookieName,
				Value:    guestID,
				Path:     "/",
				Expires:  time.Now().Add(guestCookieTTL),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), guestIDKey, guestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getGuestID(ctx context.Context) string {
	if guestID, ok := ctx.Value(guestIDKey).(string); ok {
		return guestID
	}
	return ""
}
