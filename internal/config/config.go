package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minJWTSecretLength = 32

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	DatabaseURL             string
	DBMaxConns              int32
	DBMinConns              int32
	DBAutoMigrate           bool
	DBSlowQueryThreshold    time.Duration
	JWTSecret               string
	JWTIssuer               string
	JWTAudience             string
	JWTAccessTTL            string
	JWTRefreshTTL           string
	BcryptCost              int
	CORSOrigins             []string
	RateLimitRPM            int
	AuthRateLimitRPM        int
	RedisURL                string
	TokenVersionCacheTTL    time.Duration
	NATSURL                 string
	NATSSubjectPrefix       string
	OTelEndpoint            string
	OTelServiceName         string
	AvatarRoot              string
	AvatarMaxBytes          int64
	AvatarSize              int
	LogLevel                string
	LogFormat               string
}

// JWTConfig is the signing configuration handed to the token service.
type JWTConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 2)),
		DBAutoMigrate:           getBool("DB_AUTO_MIGRATE", true),
		DBSlowQueryThreshold:    getDuration("DB_SLOW_QUERY_THRESHOLD", 500*time.Millisecond),
		JWTSecret:               strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:               getEnv("JWT_TOKEN_ISSUER", "go-accounts"),
		JWTAudience:             getEnv("JWT_TOKEN_AUDIENCE", "go-accounts-clients"),
		JWTAccessTTL:            getEnv("JWT_ACCESS_TOKEN_TTL", "15m"),
		JWTRefreshTTL:           getEnv("JWT_REFRESH_TOKEN_TTL", "7d"),
		BcryptCost:              getInt("BCRYPT_COST", 12),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 10),
		RedisURL:                strings.TrimSpace(os.Getenv("REDIS_URL")),
		TokenVersionCacheTTL:    getDuration("TOKEN_VERSION_CACHE_TTL", 30*time.Second),
		NATSURL:                 strings.TrimSpace(os.Getenv("NATS_URL")),
		NATSSubjectPrefix:       getEnv("NATS_SUBJECT_PREFIX", "accounts.events"),
		OTelEndpoint:            strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTelServiceName:         getEnv("OTEL_SERVICE_NAME", "go-accounts"),
		AvatarRoot:              getEnv("AVATAR_ROOT", "./state/avatars"),
		AvatarMaxBytes:          getInt64("AVATAR_MAX_BYTES", 5<<20),
		AvatarSize:              getInt("AVATAR_SIZE", 256),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "pretty"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength)
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS are out of range")
	}

	if c.DBSlowQueryThreshold < 0 {
		return fmt.Errorf("DB_SLOW_QUERY_THRESHOLD cannot be negative")
	}

	if ParseTTL(c.JWTAccessTTL) <= 0 {
		return fmt.Errorf("JWT_ACCESS_TOKEN_TTL must be positive and at most 3650d")
	}

	if ParseTTL(c.JWTRefreshTTL) <= 0 {
		return fmt.Errorf("JWT_REFRESH_TOKEN_TTL must be positive and at most 3650d")
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if strings.TrimSpace(c.AvatarRoot) == "" {
		return fmt.Errorf("AVATAR_ROOT cannot be empty")
	}

	if c.AvatarMaxBytes <= 0 || c.AvatarSize <= 0 {
		return fmt.Errorf("AVATAR_MAX_BYTES and AVATAR_SIZE must be positive")
	}

	return nil
}

func (c *Config) JWT() JWTConfig {
	return JWTConfig{
		Secret:     []byte(c.JWTSecret),
		Issuer:     c.JWTIssuer,
		Audience:   c.JWTAudience,
		AccessTTL:  ParseTTL(c.JWTAccessTTL),
		RefreshTTL: ParseTTL(c.JWTRefreshTTL),
	}
}

// maxTTL bounds ParseTTL so the unit multiplication cannot overflow.
const maxTTL = 3650 * 24 * time.Hour

// ParseTTL reads a suffix-coded duration such as "30s", "15m", "12h" or "7d".
// An empty value or one longer than ten years yields zero; a value with a
// missing or unknown unit yields one day.
func ParseTTL(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	if len(raw) < 2 {
		return 24 * time.Hour
	}

	value, err := strconv.Atoi(raw[:len(raw)-1])
	if err != nil || value < 0 {
		return 24 * time.Hour
	}

	unit := time.Duration(0)
	switch raw[len(raw)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	default:
		return 24 * time.Hour
	}

	if int64(value) > int64(maxTTL/unit) {
		return 0
	}
	return time.Duration(value) * unit
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getInt64(key string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
