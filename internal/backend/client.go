package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Error taxonomy for collaborator responses. Callers branch with errors.Is.
var (
	ErrValidation  = errors.New("backend: validation rejected")
	ErrAuthFailed  = errors.New("backend: authentication failed")
	ErrConflict    = errors.New("backend: identity conflict")
	ErrRejected    = errors.New("backend: business rule rejected")
	ErrUnavailable = errors.New("backend: unavailable")
)

// Client talks to the storefront backend over its REST API. All calls go
// through one circuit breaker; 4xx responses are treated as successful
// round trips so only transport failures can trip it.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "storefront-backend",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
	}
}

// Session returns a view of the client bound to an authenticated session
// token. Cart, profile and order endpoints are session-bound.
func (c *Client) Session(token string) *SessionClient {
	return &SessionClient{client: c, token: token}
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.http.Do(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return mapStatus(resp.StatusCode, apiErr.Error)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func mapStatus(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthFailed, message)
	case status == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, message)
	case status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrRejected, message)
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: %s", ErrValidation, message)
	default:
		return fmt.Errorf("%w: %s", ErrUnavailable, message)
	}
}
