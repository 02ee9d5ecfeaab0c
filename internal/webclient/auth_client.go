package webclient

import (
	"context"
	"errors"
	"net/http"
)

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Nickname        string `json:"nickname"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	UserID   uint   `json:"userId"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Token    string `json:"token"`
	Message  string `json:"message"`
}

// Me is the identity carried by the current token.
type Me struct {
	UserID uint   `json:"userId"`
	Email  string `json:"email"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// AuthClient calls the auth endpoints and keeps AuthState in sync.
type AuthClient struct {
	client *Client
}

// NewAuthClient creates an AuthClient.
func NewAuthClient(client *Client) *AuthClient {
	return &AuthClient{client: client}
}

// Register creates an account and signs in with the returned token.
func (a *AuthClient) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := a.client.Post(ctx, "/api/auth/register", req, &resp); err != nil {
		return nil, err
	}
	if err := a.client.State().MarkAuthenticated(resp.Token, resp.UserID, resp.Email); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login signs in and stores the session.
func (a *AuthClient) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := a.client.Post(ctx, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	if err := a.client.State().MarkAuthenticated(resp.Token, resp.UserID, resp.Email); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes the token server-side and clears the local session.
// A 401 from the server still clears the session.
func (a *AuthClient) Logout(ctx context.Context) error {
	err := a.client.Post(ctx, "/api/auth/logout", nil, &messageResponse{})

	var apiErr *APIError
	if err != nil && !(errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized) {
		return err
	}
	return a.client.State().MarkLoggedOut()
}

// Me returns the identity of the current token.
func (a *AuthClient) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := a.client.Get(ctx, "/api/auth/me", &me); err != nil {
		return nil, err
	}
	return &me, nil
}
