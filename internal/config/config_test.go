package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTTL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want time.Duration
	}{
		{raw: "30s", want: 30 * time.Second},
		{raw: "15m", want: 15 * time.Minute},
		{raw: "12h", want: 12 * time.Hour},
		{raw: "7d", want: 7 * 24 * time.Hour},
		{raw: " 1d ", want: 24 * time.Hour},
		{raw: "", want: 0},
		{raw: "10", want: 24 * time.Hour},
		{raw: "5w", want: 24 * time.Hour},
		{raw: "abc", want: 24 * time.Hour},
		{raw: "-5m", want: 24 * time.Hour},
		{raw: "3650d", want: 3650 * 24 * time.Hour},
		{raw: "3651d", want: 0},
		{raw: "999999999999d", want: 0},
		{raw: "9223372036854775807s", want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseTTL(tc.raw))
		})
	}
}

func validConfig() *Config {
	return &Config{
		ServerPort:     "8080",
		RequestTimeout: time.Second,
		DatabaseURL:    "postgres://localhost/accounts",
		DBMaxConns:     5,
		DBMinConns:     1,
		JWTSecret:      "0123456789abcdef0123456789abcdef",
		JWTAccessTTL:   "15m",
		JWTRefreshTTL:  "7d",
		BcryptCost:     10,
		AvatarRoot:     "./avatars",
		AvatarMaxBytes: 1024,
		AvatarSize:     64,
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, validConfig().Validate())

	t.Run("short secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWTSecret = "short"
		require.ErrorContains(t, cfg.Validate(), "JWT_SECRET")
	})

	t.Run("empty access ttl", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWTAccessTTL = ""
		require.ErrorContains(t, cfg.Validate(), "JWT_ACCESS_TOKEN_TTL")
	})

	t.Run("zero refresh ttl", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWTRefreshTTL = "0d"
		require.ErrorContains(t, cfg.Validate(), "JWT_REFRESH_TOKEN_TTL")
	})

	t.Run("overflowing refresh ttl", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWTRefreshTTL = "999999999999d"
		require.ErrorContains(t, cfg.Validate(), "JWT_REFRESH_TOKEN_TTL")
	})

	t.Run("missing database", func(t *testing.T) {
		cfg := validConfig()
		cfg.DatabaseURL = ""
		require.ErrorContains(t, cfg.Validate(), "DATABASE_URL")
	})

	t.Run("negative slow query threshold", func(t *testing.T) {
		cfg := validConfig()
		cfg.DBSlowQueryThreshold = -time.Second
		require.ErrorContains(t, cfg.Validate(), "DB_SLOW_QUERY_THRESHOLD")
	})
}

func TestJWTConfig(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.JWTIssuer = "issuer"
	cfg.JWTAudience = "aud"

	jwtCfg := cfg.JWT()
	assert.Equal(t, []byte(cfg.JWTSecret), jwtCfg.Secret)
	assert.Equal(t, "issuer", jwtCfg.Issuer)
	assert.Equal(t, "aud", jwtCfg.Audience)
	assert.Equal(t, 15*time.Minute, jwtCfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, jwtCfg.RefreshTTL)
}
