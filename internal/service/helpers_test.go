package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-accounts/internal/cache"
	"go-accounts/internal/config"
	"go-accounts/internal/event"
	"go-accounts/internal/metrics"
	"go-accounts/internal/model"
	"go-accounts/internal/repository/memstore"
	"go-accounts/internal/security"
)

const testPassword = "Secr3t!Pass"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mapCache is a VersionCache that honours the never-lower rule.
type mapCache struct {
	mu      sync.Mutex
	values  map[int64]int
	setErr  error
	setHits int
}

func newMapCache() *mapCache {
	return &mapCache{values: map[int64]int{}}
}

func (c *mapCache) Get(_ context.Context, userID int64) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[userID]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, userID int64, version int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setHits++
	if c.setErr != nil {
		return c.setErr
	}
	if current, ok := c.values[userID]; !ok || version > current {
		c.values[userID] = version
	}
	return nil
}

type testEnv struct {
	store   *memstore.Store
	clock   *testClock
	bus     *event.InMemoryBus
	tokens  *TokenService
	auth    *AuthService
	users   *UserService
	friends *FriendService
	audit   *AuditService
	cfg     config.JWTConfig
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithCache(t, cache.NoopVersionCache{})
}

func newTestEnvWithCache(t *testing.T, versions cache.VersionCache) *testEnv {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memstore.New()
	store.SetClock(clock.Now)
	bus := event.NewBus()

	cfg := config.JWTConfig{
		Secret:     []byte(strings.Repeat("s", 64)),
		Issuer:     "go-accounts-test",
		Audience:   "go-accounts-test-clients",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}

	m := metrics.New()
	tokens, err := NewTokenService(cfg, store, versions, bus, m)
	require.NoError(t, err)
	tokens.SetClock(clock.Now)

	audit := NewAuditService(store)
	audit.now = clock.Now

	auth, err := NewAuthService(store, tokens, security.NewBcryptHasher(bcrypt.MinCost), audit, m)
	require.NoError(t, err)

	return &testEnv{
		store:   store,
		clock:   clock,
		bus:     bus,
		tokens:  tokens,
		auth:    auth,
		users:   NewUserService(store, tokens, nil, audit, bus),
		friends: NewFriendService(store, bus),
		audit:   audit,
		cfg:     cfg,
	}
}

func (e *testEnv) register(t *testing.T, username string) model.TokenPair {
	t.Helper()

	pair, err := e.auth.Register(context.Background(), model.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: testPassword,
	}, nil, model.AuditActor{IP: "127.0.0.1"})
	require.NoError(t, err)
	require.NotNil(t, pair.User)
	return pair
}

func (e *testEnv) userID(t *testing.T, username string) int64 {
	t.Helper()

	u, err := e.store.Users().FindByUsername(context.Background(), username)
	require.NoError(t, err)
	return u.ID
}
