package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-accounts/internal/cache"
	"go-accounts/internal/config"
	"go-accounts/internal/event"
	"go-accounts/internal/model"
)

var errBoom = errors.New("boom")

func TestNewTokenService_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := NewTokenService(config.JWTConfig{AccessTTL: time.Minute, RefreshTTL: time.Hour}, nil, nil, nil, nil)
	assert.Error(t, err)

	_, err = NewTokenService(config.JWTConfig{Secret: []byte("x"), AccessTTL: 0, RefreshTTL: time.Hour}, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.register(t, "alice")
	ctx := context.Background()

	assert.Equal(t, "Bearer", pair.TokenType)
	assert.EqualValues(t, 900, pair.ExpiresIn)
	assert.Len(t, pair.RefreshToken, 64)

	for name, mode := range map[string]model.VerifyMode{
		"quick": model.QuickVerify(),
		"full":  model.FullVerify(nil),
	} {
		t.Run(name, func(t *testing.T) {
			claims, err := env.tokens.Verify(ctx, pair.AccessToken, mode)
			require.NoError(t, err)
			assert.Equal(t, pair.User.ID, claims.User.ID)
			assert.Equal(t, "alice", claims.User.Username)
			assert.Equal(t, "alice@example.com", claims.User.Email)
			assert.Equal(t, []string{model.RoleUser}, claims.User.Roles)
			assert.Equal(t, 0, claims.TokenVersion)
			assert.Equal(t, strconv.FormatInt(pair.User.ID, 10), claims.Subject)
			assert.Equal(t, env.cfg.Issuer, claims.Issuer)
			assert.Equal(t, jwt.ClaimStrings{env.cfg.Audience}, claims.Audience)
			assert.Len(t, claims.ID, 32)
			assert.Equal(t, env.clock.Now().Add(15*time.Minute).Unix(), claims.ExpiresAt.Unix())
		})
	}
}

func TestTokenService_TokenIDsAreUnique(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.register(t, "alice")
	user, err := env.store.Users().FindByID(context.Background(), pair.User.ID)
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		p, err := env.tokens.Issue(context.Background(), user, nil)
		require.NoError(t, err)
		claims, err := env.tokens.Verify(context.Background(), p.AccessToken, model.QuickVerify())
		require.NoError(t, err)
		require.False(t, seen[claims.ID], "jti reused")
		require.False(t, seen[p.RefreshToken], "refresh token reused")
		seen[claims.ID] = true
		seen[p.RefreshToken] = true
	}
}

func TestTokenService_VerifyRejects(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.register(t, "alice")
	ctx := context.Background()

	claims, err := env.tokens.Verify(ctx, pair.AccessToken, model.QuickVerify())
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, key any, c model.AccessClaims) string {
		s, signErr := jwt.NewWithClaims(method, c).SignedString(key)
		require.NoError(t, signErr)
		return s
	}

	wrongIssuer := *claims
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := *claims
	wrongAudience.Audience = jwt.ClaimStrings{"other-clients"}
	noExpiry := *claims
	noExpiry.ExpiresAt = nil
	mismatchedSubject := *claims
	mismatchedSubject.Subject = "999"

	tests := map[string]string{
		"garbage":            "not-a-jwt",
		"empty":              "",
		"tampered signature": pair.AccessToken[:len(pair.AccessToken)-4] + "AAAA",
		"wrong algorithm":    sign(jwt.SigningMethodHS256, env.cfg.Secret, *claims),
		"wrong secret":       sign(jwt.SigningMethodHS512, []byte("another-secret-another-secret-xx"), *claims),
		"wrong issuer":       sign(jwt.SigningMethodHS512, env.cfg.Secret, wrongIssuer),
		"wrong audience":     sign(jwt.SigningMethodHS512, env.cfg.Secret, wrongAudience),
		"missing expiry":     sign(jwt.SigningMethodHS512, env.cfg.Secret, noExpiry),
		"subject mismatch":   sign(jwt.SigningMethodHS512, env.cfg.Secret, mismatchedSubject),
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := env.tokens.Verify(ctx, token, model.FullVerify(nil))
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrUnauthorized)
			assert.ErrorIs(t, err, model.ErrInvalidToken)
		})
	}
}

func TestTokenService_VerifyExpired(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.register(t, "alice")

	env.clock.Advance(15*time.Minute + time.Second)

	_, err := env.tokens.Verify(context.Background(), pair.AccessToken, model.QuickVerify())
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestTokenService_DeviceBinding(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "alice")
	ctx := context.Background()

	user, err := env.store.Users().FindByUsername(ctx, "alice")
	require.NoError(t, err)

	pair, err := env.tokens.Issue(ctx, user, &model.DeviceInfo{UserAgent: "test", IPAddress: "10.0.0.1", DeviceID: "phone-1"})
	require.NoError(t, err)

	_, err = env.tokens.Verify(ctx, pair.AccessToken, model.FullVerify(&model.DeviceInfo{DeviceID: "phone-1"}))
	assert.NoError(t, err)

	_, err = env.tokens.Verify(ctx, pair.AccessToken, model.FullVerify(nil))
	assert.NoError(t, err, "no device presented means no device check")

	_, err = env.tokens.Verify(ctx, pair.AccessToken, model.QuickVerify())
	assert.NoError(t, err, "quick mode never checks the device")

	_, err = env.tokens.Verify(ctx, pair.AccessToken, model.FullVerify(&model.DeviceInfo{DeviceID: "laptop-7"}))
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	assert.ErrorIs(t, err, model.ErrInvalidDevice)

	unbound, err := env.tokens.Issue(ctx, user, nil)
	require.NoError(t, err)
	_, err = env.tokens.Verify(ctx, unbound.AccessToken, model.FullVerify(&model.DeviceInfo{DeviceID: "laptop-7"}))
	assert.NoError(t, err, "tokens without device info are not bound")
}

func TestTokenService_InvalidateAll(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.register(t, "alice")
	ctx := context.Background()
	userID := pair.User.ID

	events, unsubscribe := env.bus.Subscribe()
	defer unsubscribe()

	require.NoError(t, env.tokens.InvalidateAll(ctx, userID))

	_, err := env.tokens.Verify(ctx, pair.AccessToken, model.FullVerify(nil))
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	assert.ErrorIs(t, err, model.ErrTokenVersionMismatch)

	_, err = env.tokens.Verify(ctx, pair.AccessToken, model.QuickVerify())
	assert.NoError(t, err, "quick verification accepts revoked tokens until they expire")

	_, err = env.tokens.Refresh(ctx, pair.RefreshToken, nil)
	assert.ErrorIs(t, err, model.ErrInvalidRefreshToken)

	for _, rt := range env.store.RefreshTokensFor(userID) {
		assert.True(t, rt.Revoked)
	}

	version, err := env.store.Users().TokenVersion(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	select {
	case e := <-events:
		assert.Equal(t, event.TypeSessionRevoked, e.Type)
		assert.Equal(t, userID, e.UserID)
	case <-time.After(time.Second):
		t.Fatal("session.revoked event not published")
	}

	user, err := env.store.Users().FindByID(ctx, userID)
	require.NoError(t, err)
	fresh, err := env.tokens.Issue(ctx, user, nil)
	require.NoError(t, err)
	claims, err := env.tokens.Verify(ctx, fresh.AccessToken, model.FullVerify(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, claims.TokenVersion)
}

func TestTokenService_InvalidateAllUnknownUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	err := env.tokens.InvalidateAll(context.Background(), 404)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestTokenService_InvalidateAllRollsBack(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.register(t, "alice")
	ctx := context.Background()

	env.store.Fail("RefreshTokens.RevokeAllForUser", errBoom)
	err := env.tokens.InvalidateAll(ctx, pair.User.ID)
	require.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, model.ErrUnauthorized)

	version, err := env.store.Users().TokenVersion(ctx, pair.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, version, "version bump must roll back with the failed revoke")
}

func TestTokenService_RefreshRotation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.register(t, "alice")
	ctx := context.Background()

	rotated, err := env.tokens.Refresh(ctx, pair.RefreshToken, nil)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	claims, err := env.tokens.Verify(ctx, rotated.AccessToken, model.FullVerify(nil))
	require.NoError(t, err)
	assert.Equal(t, 0, claims.TokenVersion)

	_, err = env.tokens.Refresh(ctx, pair.RefreshToken, nil)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	assert.ErrorIs(t, err, model.ErrInvalidRefreshToken)

	_, err = env.tokens.Refresh(ctx, rotated.RefreshToken, nil)
	assert.NoError(t, err)
}

func TestTokenService_RefreshUnknownOrEmpty(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "alice")

	for _, value := range []string{"", "deadbeef"} {
		_, err := env.tokens.Refresh(context.Background(), value, nil)
		assert.ErrorIs(t, err, model.ErrInvalidRefreshToken)
	}
}

func TestTokenService_RefreshConcurrentSingleUse(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.register(t, "alice")

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.tokens.Refresh(context.Background(), pair.RefreshToken, nil)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, model.ErrInvalidRefreshToken)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestTokenService_RefreshExpiredIsConsumed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.register(t, "alice")
	ctx := context.Background()

	env.clock.Advance(7*24*time.Hour + time.Minute)

	_, err := env.tokens.Refresh(ctx, pair.RefreshToken, nil)
	require.ErrorIs(t, err, model.ErrInvalidRefreshToken)

	tokens := env.store.RefreshTokensFor(pair.User.ID)
	require.Len(t, tokens, 1)
	assert.True(t, tokens[0].Revoked, "expired token is revoked on presentation")
}

func TestTokenService_PersistenceFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.register(t, "alice")
	ctx := context.Background()

	user, err := env.store.Users().FindByID(ctx, pair.User.ID)
	require.NoError(t, err)

	env.store.Fail("RefreshTokens.Create", errBoom)

	issued, err := env.tokens.Issue(ctx, user, nil)
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, issued.AccessToken)
	assert.Empty(t, issued.RefreshToken)

	_, err = env.tokens.Refresh(ctx, pair.RefreshToken, nil)
	require.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, model.ErrUnauthorized)

	env.store.Fail("RefreshTokens.Create", nil)

	_, err = env.tokens.Refresh(ctx, pair.RefreshToken, nil)
	assert.NoError(t, err, "failed rotation must not consume the presented token")
}

func TestTokenService_FullVerifyStorageFault(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.register(t, "alice")

	env.store.Fail("Users.TokenVersion", errBoom)

	_, err := env.tokens.Verify(context.Background(), pair.AccessToken, model.FullVerify(nil))
	require.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, model.ErrUnauthorized)
}

func TestTokenService_FullVerifyDeletedUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.register(t, "alice")
	ctx := context.Background()

	require.NoError(t, env.store.Users().Delete(ctx, pair.User.ID))

	_, err := env.tokens.Verify(ctx, pair.AccessToken, model.FullVerify(nil))
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestTokenService_VersionCache(t *testing.T) {
	t.Parallel()

	versions := newMapCache()
	env := newTestEnvWithCache(t, versions)
	pair := env.register(t, "alice")
	ctx := context.Background()

	_, err := env.tokens.Verify(ctx, pair.AccessToken, model.FullVerify(nil))
	require.NoError(t, err)

	cached, ok := versions.Get(ctx, pair.User.ID)
	require.True(t, ok)
	assert.Equal(t, 0, cached)

	env.store.Fail("Users.TokenVersion", errBoom)
	_, err = env.tokens.Verify(ctx, pair.AccessToken, model.FullVerify(nil))
	require.NoError(t, err, "cached version is used without touching the store")

	require.NoError(t, env.tokens.InvalidateAll(ctx, pair.User.ID))
	_, err = env.tokens.Verify(ctx, pair.AccessToken, model.FullVerify(nil))
	assert.ErrorIs(t, err, model.ErrTokenVersionMismatch, "revocation is visible through the cache immediately")
}

func TestTokenService_InvalidateAllCacheFailure(t *testing.T) {
	t.Parallel()

	versions := newMapCache()
	env := newTestEnvWithCache(t, versions)
	pair := env.register(t, "alice")
	ctx := context.Background()

	_, err := env.tokens.Verify(ctx, pair.AccessToken, model.FullVerify(nil))
	require.NoError(t, err)
	cached, ok := versions.Get(ctx, pair.User.ID)
	require.True(t, ok)
	require.Equal(t, 0, cached)

	versions.setErr = errBoom
	err = env.tokens.InvalidateAll(ctx, pair.User.ID)
	require.ErrorIs(t, err, errBoom)

	stored, err := env.store.Users().TokenVersion(ctx, pair.User.ID)
	require.NoError(t, err)
	assert.Equal(t, cached, stored, "store version rolls back with the cache write")
	for _, rt := range env.store.RefreshTokensFor(pair.User.ID) {
		assert.False(t, rt.Revoked)
	}

	versions.setErr = nil
	require.NoError(t, env.tokens.InvalidateAll(ctx, pair.User.ID))

	_, err = env.tokens.Verify(ctx, pair.AccessToken, model.FullVerify(nil))
	assert.ErrorIs(t, err, model.ErrTokenVersionMismatch)
	_, err = env.tokens.Refresh(ctx, pair.RefreshToken, nil)
	assert.ErrorIs(t, err, model.ErrInvalidRefreshToken)
}

func TestTokenService_NoopCacheByDefault(t *testing.T) {
	t.Parallel()

	env := newTestEnvWithCache(t, nil)
	_, ok := env.tokens.versions.(cache.NoopVersionCache)
	assert.True(t, ok)
}
