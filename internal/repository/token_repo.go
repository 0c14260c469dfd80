package repository

import (
	"context"
	"fmt"

	"go-accounts/internal/model"
)

type TokenRepository struct {
	db DB
}

func NewTokenRepository(db DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, t *model.RefreshToken) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO refresh_tokens (token, user_id, expires_at)
		 VALUES ($1, $2, $3)
		 RETURNING id, revoked, created_at`,
		t.Token, t.UserID, t.ExpiresAt).Scan(&t.ID, &t.Revoked, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// FindActive looks up a non-revoked token by its exact value. Expiry is left
// to the caller.
func (r *TokenRepository) FindActive(ctx context.Context, token string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.db.QueryRow(ctx,
		`SELECT id, token, user_id, expires_at, revoked, created_at
		 FROM refresh_tokens
		 WHERE token = $1 AND revoked = false`, token).
		Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if err != nil {
		return model.RefreshToken{}, wrapNotFound(err, model.ErrTokenNotFound, "find refresh token")
	}
	return t, nil
}

// ClaimActive revokes a non-revoked token and returns the row as it was
// claimed. Exactly one concurrent caller can claim a given token; the rest
// get ErrTokenNotFound.
func (r *TokenRepository) ClaimActive(ctx context.Context, token string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.db.QueryRow(ctx,
		`UPDATE refresh_tokens SET revoked = true
		 WHERE token = $1 AND revoked = false
		 RETURNING id, token, user_id, expires_at, revoked, created_at`, token).
		Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if err != nil {
		return model.RefreshToken{}, wrapNotFound(err, model.ErrTokenNotFound, "claim refresh token")
	}
	return t, nil
}

func (r *TokenRepository) Revoke(ctx context.Context, id int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE id = $1 AND revoked = false`, id)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh token: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE user_id = $1 AND revoked = false`, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
