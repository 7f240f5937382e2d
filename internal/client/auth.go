package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"marketplace/internal/session"
)

// LoginResponse is what the backend returns for a successful login.
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         session.User `json:"user"`
}

// RegisterRequest creates an account on any portal.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role,omitempty"`
}

// Login exchanges credentials for a token. It does not touch the session; see StartSession.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode credentials: %w", err)
	}

	var resp LoginResponse
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "users/login",
		body:        bytes.NewReader(body),
		contentType: "application/json",
		anonymous:   true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: login response without token", ErrMalformedResponse)
	}
	return &resp, nil
}

// Register creates an account and returns its profile.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*session.User, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode registration: %w", err)
	}

	var user session.User
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "users/register",
		body:        bytes.NewReader(body),
		contentType: "application/json",
		anonymous:   true,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// StartSession hands a login response to the session provider.
func StartSession(ctx context.Context, p *session.Provider, resp *LoginResponse) error {
	return p.Login(ctx, resp.AccessToken, resp.User, session.WithRefreshToken(resp.RefreshToken))
}

// Logout revokes the refresh token server side, then clears the local session
// even when the backend call fails.
func (c *Client) Logout(ctx context.Context, p *session.Provider) error {
	var reqErr error
	refreshToken := p.RefreshToken(ctx)
	if refreshToken != "" {
		body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
		if err != nil {
			return fmt.Errorf("failed to encode logout: %w", err)
		}
		reqErr = c.do(ctx, request{
			method:      http.MethodPost,
			path:        "users/logout",
			body:        bytes.NewReader(body),
			contentType: "application/json",
		}, nil)
	}
	if err := p.Logout(ctx); err != nil {
		return err
	}
	return reqErr
}
