package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired, please log in again")
)

// User is the profile cached alongside the access token.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// State is what a Store persists between runs.
type State struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	User         User      `json:"user"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// LoginOption adjusts the state saved by Login.
type LoginOption func(*State)

// WithRefreshToken keeps the refresh token so logout can revoke it server side.
func WithRefreshToken(token string) LoginOption {
	return func(s *State) {
		s.RefreshToken = token
	}
}

// Store persists the session state. Load returns (nil, nil) when nothing is stored.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
	Clear(ctx context.Context) error
}

// Provider is the single owner of process-wide auth state.
// The client reads tokens from it instead of touching storage directly.
type Provider struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	state  *State
	loaded bool
}

// NewProvider creates a Provider backed by store.
func NewProvider(store Store, logger *zap.Logger) *Provider {
	return &Provider{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Login stores a freshly issued token and profile, replacing any previous session.
func (p *Provider) Login(ctx context.Context, token string, user User, opts ...LoginOption) error {
	if token == "" {
		return fmt.Errorf("failed to log in: %w", ErrNotAuthenticated)
	}

	state := &State{
		Token:     token,
		User:      user,
		ExpiresAt: tokenExpiry(token),
	}
	for _, opt := range opts {
		opt(state)
	}

	if err := p.store.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	p.mu.Lock()
	p.state = state
	p.loaded = true
	p.mu.Unlock()

	p.logger.Info("Session started",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role),
	)
	return nil
}

// Logout clears the session everywhere.
func (p *Provider) Logout(ctx context.Context) error {
	if err := p.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	p.mu.Lock()
	p.state = nil
	p.loaded = true
	p.mu.Unlock()

	p.logger.Info("Session ended")
	return nil
}

// Token returns the current bearer token. Expired tokens are not refreshed.
func (p *Provider) Token(ctx context.Context) (string, error) {
	state, err := p.current(ctx)
	if err != nil {
		return "", err
	}
	return state.Token, nil
}

// User returns the profile of the logged-in user.
func (p *Provider) User(ctx context.Context) (*User, error) {
	state, err := p.current(ctx)
	if err != nil {
		return nil, err
	}
	user := state.User
	return &user, nil
}

// RefreshToken returns the stored refresh token, or "" when there is none.
func (p *Provider) RefreshToken(ctx context.Context) string {
	state, err := p.current(ctx)
	if err != nil {
		return ""
	}
	return state.RefreshToken
}

func (p *Provider) current(ctx context.Context) (*State, error) {
	p.mu.RLock()
	state, loaded := p.state, p.loaded
	p.mu.RUnlock()

	if !loaded {
		stored, err := p.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		p.mu.Lock()
		p.state = stored
		p.loaded = true
		p.mu.Unlock()
		state = stored
	}

	if state == nil || state.Token == "" {
		return nil, ErrNotAuthenticated
	}
	if !state.ExpiresAt.IsZero() && !p.now().Before(state.ExpiresAt) {
		p.logger.Debug("Session token expired", zap.Time("expires_at", state.ExpiresAt))
		return nil, ErrSessionExpired
	}
	return state, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the backend verifies.
// Opaque tokens yield the zero time.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
