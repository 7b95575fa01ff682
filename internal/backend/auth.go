package backend

import (
	"context"
	"net/http"

	"github.com/fjod/storefront/domain"
)

type identityCheckResponse struct {
	Exists bool `json:"exists"`
}

// CheckIdentity asks the backend whether an account exists for email.
func (c *Client) CheckIdentity(ctx context.Context, email string) (bool, error) {
	body := map[string]string{"email": email}
	var resp identityCheckResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/check", "", body, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// IssueOTP requests a one-time code for email. The backend rejects
// unreachable or disposable addresses.
func (c *Client) IssueOTP(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.doJSON(ctx, http.MethodPost, "/auth/otp", "", body, nil)
}

// VerifyOTP checks a one-time code previously issued for email.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) error {
	body := map[string]string{"email": email, "code": code}
	return c.doJSON(ctx, http.MethodPost, "/auth/otp/verify", "", body, nil)
}

type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	OTP       string `json:"otp"` // verified code, proof the email was confirmed
	Role      string `json:"role"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	var user domain.User
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", "", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

type LoginResult struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	var res LoginResult
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
