package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/joho/godotenv"
)

// Signing algorithms accepted in JWT_ALGORITHM.
const (
	AlgorithmHS256 = "HS256"
	AlgorithmEdDSA = "EdDSA"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreDriverRedis  = "redis"
	StoreDriverMemory = "memory"
)

type Config struct {
	JWTSecret         string        // Required for HS256: shared signing secret (>= 32 chars)
	JWTAlgorithm      string        // HS256 or EdDSA (default: HS256)
	JWTPrivateKeyFile string        // EdDSA only: PKCS8 PEM, generated if missing
	JWTKeyID          string        // Optional: kid header
	JWTIssuer         string        // iss claim (default: origin-backend)
	JWTAudience       []string      // aud claim, comma separated (default: origin-frontend)
	AccessTTL         time.Duration // default: 1h
	RefreshTTL        time.Duration // default: 720h
	Leeway            time.Duration // clock skew tolerated on validation (default: 60s)

	Otp           service.OtpConfig
	OtpPepperFile string        // file holding the code hashing pepper (default: ./pepper)
	OAuthStateTTL time.Duration // default: 10m

	GoogleClientID     string // Optional: Google sign-in is disabled without it
	GoogleClientSecret string
	GoogleRedirectURI  string

	StoreDriver         string // redis or memory (default: redis)
	RedisURL            string
	RedisPoolSize       int
	RedisConnectTimeout time.Duration
	RedisCommandTimeout time.Duration
	StoreMaxRetries     int

	UserDatabaseFile string // SQLite user directory (default: ./accounts.db)

	SMTPHost     string // Optional: without it codes are written to the log
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPTLSMode  string

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

// ConfigurationError lists every invalid setting found by Validate.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ConfigurationError) Unwrap() error { return service.ErrConfiguration }

// LoadConfig reads the environment, after loading a .env file from the
// working directory when one exists. Variables already set win.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: ignoring unreadable .env: %v\n", err)
	}

	return Config{
		JWTSecret:         os.Getenv("JWT_SECRET"),
		JWTAlgorithm:      getEnvOrDefault("JWT_ALGORITHM", AlgorithmHS256),
		JWTPrivateKeyFile: getEnvOrDefault("JWT_PRIVATE_KEY_FILE", "jwt_ed25519.pem"),
		JWTKeyID:          getEnvOrDefault("JWT_KEY_ID", "accounts-1"),
		JWTIssuer:         getEnvOrDefault("JWT_ISSUER", "origin-backend"),
		JWTAudience:       splitList(getEnvOrDefault("JWT_AUDIENCE", "origin-frontend")),
		AccessTTL:         getEnvDurationOrDefault("JWT_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:        getEnvDurationOrDefault("JWT_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		Leeway:            getEnvDurationOrDefault("JWT_LEEWAY", jwtx.DefaultLeeway),

		Otp: service.OtpConfig{
			CodeLength:   getEnvIntOrDefault("OTP_CODE_LENGTH", service.DefaultOtpCodeLength),
			Expiry:       getEnvDurationOrDefault("OTP_EXPIRY", service.DefaultOtpExpiry),
			MaxAttempts:  getEnvIntOrDefault("OTP_MAX_ATTEMPTS", service.DefaultOtpMaxAttempts),
			RateLimit:    getEnvIntOrDefault("OTP_RATE_LIMIT", service.DefaultOtpRateLimit),
			RateWindow:   getEnvDurationOrDefault("OTP_RATE_WINDOW", service.DefaultOtpRateWindow),
			CleanupGrace: getEnvDurationOrDefault("OTP_CLEANUP_GRACE", service.DefaultOtpCleanupGrace),
		},
		OtpPepperFile: getEnvOrDefault("OTP_PEPPER_FILE", "pepper"),
		OAuthStateTTL: getEnvDurationOrDefault("OAUTH_STATE_TTL", service.DefaultOAuthStateTTL),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURI:  getEnvOrDefault("GOOGLE_REDIRECT_URI", "http://localhost:3000/auth/callback"),

		StoreDriver:         getEnvOrDefault("STORE_DRIVER", StoreDriverRedis),
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		RedisPoolSize:       getEnvIntOrDefault("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: getEnvDurationOrDefault("REDIS_CONNECT_TIMEOUT", 5*time.Second),
		RedisCommandTimeout: getEnvDurationOrDefault("REDIS_COMMAND_TIMEOUT", 3*time.Second),
		StoreMaxRetries:     getEnvIntOrDefault("STORE_MAX_RETRIES", 3),

		UserDatabaseFile: getEnvOrDefault("USER_DATABASE_FILE", "accounts.db"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
		SMTPTLSMode:  getEnvOrDefault("SMTP_TLS_MODE", "auto"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Validate reports every problem at once so a bad deploy is fixed in one go.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.JWTAlgorithm {
	case AlgorithmHS256:
		if len(c.JWTSecret) < jwtx.MinHMACSecretLength {
			add("JWT_SECRET must be at least %d characters", jwtx.MinHMACSecretLength)
		}
	case AlgorithmEdDSA:
		if c.JWTPrivateKeyFile == "" {
			add("JWT_PRIVATE_KEY_FILE is required for EdDSA")
		}
	default:
		add("JWT_ALGORITHM %q is not one of HS256, EdDSA", c.JWTAlgorithm)
	}

	if c.JWTIssuer == "" {
		add("JWT_ISSUER must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"JWT_ACCESS_TTL":  c.AccessTTL,
		"JWT_REFRESH_TTL": c.RefreshTTL,
		"OTP_EXPIRY":      c.Otp.Expiry,
		"OTP_RATE_WINDOW": c.Otp.RateWindow,
		"OAUTH_STATE_TTL": c.OAuthStateTTL,
	} {
		if d <= 0 {
			add("%s must be positive", name)
		}
	}
	if c.Leeway < 0 {
		add("JWT_LEEWAY must not be negative")
	}
	if c.AccessTTL > 0 && c.RefreshTTL > 0 && c.AccessTTL >= c.RefreshTTL {
		add("JWT_ACCESS_TTL must be shorter than JWT_REFRESH_TTL")
	}

	if c.Otp.CodeLength < service.MinOtpCodeLength || c.Otp.CodeLength > service.MaxOtpCodeLength {
		add("OTP_CODE_LENGTH must be between %d and %d", service.MinOtpCodeLength, service.MaxOtpCodeLength)
	}
	if c.Otp.MaxAttempts <= 0 {
		add("OTP_MAX_ATTEMPTS must be positive")
	}
	if c.Otp.RateLimit <= 0 {
		add("OTP_RATE_LIMIT must be positive")
	}

	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		add("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together")
	}

	switch c.StoreDriver {
	case StoreDriverRedis:
		if c.RedisURL == "" {
			add("REDIS_URL is required for the redis store")
		}
	case StoreDriverMemory:
	default:
		add("STORE_DRIVER %q is not one of redis, memory", c.StoreDriver)
	}
	if c.StoreMaxRetries < 1 {
		add("STORE_MAX_RETRIES must be at least 1")
	}

	if c.SMTPHost != "" && c.SMTPFrom == "" {
		add("SMTP_FROM is required when SMTP_HOST is set")
	}

	if len(problems) == 0 {
		return nil
	}
	return &ConfigurationError{Problems: problems}
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultValue
}
