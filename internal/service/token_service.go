package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go-accounts/internal/cache"
	"go-accounts/internal/config"
	"go-accounts/internal/event"
	"go-accounts/internal/metrics"
	"go-accounts/internal/model"
	"go-accounts/internal/repository"
)

const tokenType = "Bearer"

// TokenService issues, verifies, rotates and revokes access/refresh token
// pairs. Access tokens are stateless HS512 JWTs; refresh tokens are opaque
// single-use values persisted in the store.
type TokenService struct {
	cfg      config.JWTConfig
	store    repository.Store
	versions cache.VersionCache
	bus      event.Bus
	metrics  *metrics.Metrics
	now      func() time.Time
	random   io.Reader
}

func NewTokenService(cfg config.JWTConfig, store repository.Store, versions cache.VersionCache, bus event.Bus, m *metrics.Metrics) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token lifetimes must be positive: access=%s refresh=%s", cfg.AccessTTL, cfg.RefreshTTL)
	}
	if versions == nil {
		versions = cache.NoopVersionCache{}
	}

	return &TokenService{
		cfg:      cfg,
		store:    store,
		versions: versions,
		bus:      bus,
		metrics:  m,
		now:      time.Now,
		random:   rand.Reader,
	}, nil
}

// SetClock replaces the time source used for issuing and validating tokens.
func (s *TokenService) SetClock(now func() time.Time) {
	s.now = now
}

// Issue signs an access token for user and persists a fresh refresh token.
// Nothing is returned unless the refresh token was stored.
func (s *TokenService) Issue(ctx context.Context, user model.User, device *model.DeviceInfo) (model.TokenPair, error) {
	return s.issue(ctx, s.store.RefreshTokens(), user, device)
}

func (s *TokenService) issue(ctx context.Context, tokens repository.TokenStore, user model.User, device *model.DeviceInfo) (model.TokenPair, error) {
	now := s.now()

	jti, err := s.randomHex(16)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("generate token id: %w", err)
	}

	claims := model.AccessClaims{
		User:         user.TokenUser(),
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		},
	}
	if s.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.cfg.Audience}
	}
	if device != nil {
		copied := *device
		claims.DeviceInfo = &copied
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshValue, err := s.refreshValue(user.ID, now)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}

	record := &model.RefreshToken{
		Token:     refreshValue,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.cfg.RefreshTTL),
	}
	if err := tokens.Create(ctx, record); err != nil {
		slog.Error("persist refresh token", "user_id", user.ID, "error", err)
		return model.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	s.metrics.TokenIssued()

	return model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshValue,
		TokenType:    tokenType,
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
	}, nil
}

// Verify checks an access token. Every authentication failure wraps
// model.ErrUnauthorized; storage faults during full verification are
// returned as-is so callers can tell them apart.
func (s *TokenService) Verify(ctx context.Context, tokenString string, mode model.VerifyMode) (*model.AccessClaims, error) {
	claims := &model.AccessClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	}, s.parserOptions()...)
	if err != nil {
		return nil, model.Unauthorized(model.ErrInvalidToken)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID != claims.User.ID {
		return nil, model.Unauthorized(model.ErrInvalidToken)
	}

	if !mode.Full() {
		return claims, nil
	}

	version, err := s.currentVersion(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, model.Unauthorized(model.ErrUserNotFound)
	}
	if err != nil {
		slog.Error("load token version", "user_id", userID, "error", err)
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if version != claims.TokenVersion {
		return nil, model.Unauthorized(model.ErrTokenVersionMismatch)
	}

	if device := mode.Device(); device != nil && claims.DeviceInfo != nil && device.DeviceID != claims.DeviceInfo.DeviceID {
		return nil, model.Unauthorized(model.ErrInvalidDevice)
	}

	return claims, nil
}

func (s *TokenService) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	if s.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.cfg.Audience))
	}
	return opts
}

func (s *TokenService) currentVersion(ctx context.Context, userID int64) (int, error) {
	if version, ok := s.versions.Get(ctx, userID); ok {
		s.metrics.VersionLookup("cache")
		return version, nil
	}

	version, err := s.store.Users().TokenVersion(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.metrics.VersionLookup("store")

	if err := s.versions.Set(ctx, userID, version); err != nil {
		slog.Warn("cache token version", "user_id", userID, "error", err)
	}
	return version, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// claimed and revoked atomically, so two concurrent calls with the same value
// yield at most one pair. An expired token is still consumed.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string, device *model.DeviceInfo) (model.TokenPair, error) {
	if refreshToken == "" {
		s.metrics.RefreshRotation(false)
		return model.TokenPair{}, model.Unauthorized(model.ErrInvalidRefreshToken)
	}

	var (
		pair    model.TokenPair
		expired bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		record, err := tx.RefreshTokens().ClaimActive(ctx, refreshToken)
		if errors.Is(err, model.ErrTokenNotFound) {
			return model.Unauthorized(model.ErrInvalidRefreshToken)
		}
		if err != nil {
			return fmt.Errorf("claim refresh token: %w", err)
		}

		if record.Expired(s.now()) {
			expired = true
			return nil
		}

		user, err := tx.Users().FindByID(ctx, record.UserID)
		if errors.Is(err, model.ErrUserNotFound) {
			return model.Unauthorized(model.ErrInvalidRefreshToken)
		}
		if err != nil {
			return fmt.Errorf("load refresh token owner: %w", err)
		}

		pair, err = s.issue(ctx, tx.RefreshTokens(), user, device)
		return err
	})
	if err == nil && expired {
		err = model.Unauthorized(model.ErrInvalidRefreshToken)
	}
	if err != nil {
		s.metrics.RefreshRotation(false)
		return model.TokenPair{}, err
	}

	s.metrics.RefreshRotation(true)
	return pair, nil
}

// InvalidateAll bumps the user's token version and revokes every refresh
// token in one transaction. The new version reaches the cache before the
// transaction commits, so a cache fault rolls the revocation back and the
// caller sees an error instead of a half-applied logout. Access tokens issued
// earlier fail full verification as soon as this returns nil.
func (s *TokenService) InvalidateAll(ctx context.Context, userID int64) error {
	var version int
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		v, err := tx.Users().IncrementTokenVersion(ctx, userID)
		if err != nil {
			return err
		}
		if _, err := tx.RefreshTokens().RevokeAllForUser(ctx, userID); err != nil {
			return err
		}
		if err := s.versions.Set(ctx, userID, v); err != nil {
			return fmt.Errorf("cache token version %d: %w", v, err)
		}
		version = v
		return nil
	})
	if err != nil {
		slog.Error("invalidate user tokens", "user_id", userID, "error", err)
		return fmt.Errorf("invalidate tokens for user %d: %w", userID, err)
	}

	s.metrics.Revocation()
	if s.bus != nil {
		s.bus.Publish(event.New(event.TypeSessionRevoked, userID, userID, map[string]int{"token_version": version}))
	}
	return nil
}

func (s *TokenService) randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *TokenService) refreshValue(userID int64, now time.Time) (string, error) {
	seed := make([]byte, 48)
	if _, err := io.ReadFull(s.random, seed); err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write(seed)
	h.Write([]byte(strconv.FormatInt(userID, 10)))
	h.Write([]byte(strconv.FormatInt(now.UnixMilli(), 10)))
	return hex.EncodeToString(h.Sum(nil)), nil
}
