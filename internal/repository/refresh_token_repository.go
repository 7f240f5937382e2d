package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"marketplace/internal/domain"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token has been revoked")
)

// RefreshTokenRepository persists the server-side half of a login session.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
}

// Only a SHA-256 digest of each token is stored; the plain value lives in the client session.
type refreshTokenRepository struct {
	db *sql.DB
}

func NewRefreshTokenRepository(db *sql.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.UserID, digest(token.Token), token.ExpiresAt, token.CreatedAt, token.Revoked,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("refresh token collision: %w", err)
		}
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

// FindByToken looks a token up by digest. Revoked tokens report ErrRefreshTokenRevoked;
// expiry is left to the caller, which owns the clock.
func (r *refreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	found := &domain.RefreshToken{Token: token}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, expires_at, created_at, revoked
		FROM refresh_tokens
		WHERE token_hash = $1`, digest(token),
	).Scan(&found.ID, &found.UserID, &found.ExpiresAt, &found.CreatedAt, &found.Revoked)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrRefreshTokenNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	case found.Revoked:
		return nil, ErrRefreshTokenRevoked
	}
	return found, nil
}

// Revoke flips a live token to revoked. A token that is unknown or already revoked
// reports ErrRefreshTokenNotFound.
func (r *refreshTokenRepository) Revoke(ctx context.Context, token string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1 AND NOT revoked`, digest(token))
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrRefreshTokenNotFound
	}
	return nil
}
