package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	JWT           JWTConfig
	Redis         RedisConfig
	Revocation    RevocationConfig
	LinkSafety    LinkSafetyConfig
	Email         EmailConfig
	Notifications NotificationConfig
	RateLimit     RateLimitConfig
	Idempotency   IdempotencyConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	Env             string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// Database drivers
const (
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverSurrealDB = "surrealdb"
)

// DatabaseConfig selects the store. DSN is used by the gorm drivers; the
// Surreal* fields only by surrealdb.
type DatabaseConfig struct {
	Driver  string
	DSN     string
	Verbose bool

	SurrealHost      string
	SurrealPort      string
	SurrealNamespace string
	SurrealDatabase  string
	SurrealUser      string
	SurrealPassword  string
}

// JWTConfig holds JWT signing settings
type JWTConfig struct {
	PrivateKeyPath string
	PublicKeyPath  string
	ExpirationMins int
	Issuer         string
	// Audience is stamped on issued tokens and required on validation when set
	Audience       string
}

// RedisConfig is shared by every Redis-backed component
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Revocation backends
const (
	RevocationDatabase = "database"
	RevocationRedis    = "redis"
)

// RevocationConfig selects where logged-out tokens are recorded
type RevocationConfig struct {
	Backend         string
	CleanupSchedule string
}

// Link safety providers
const (
	LinkSafetyGoogle = "google"
	LinkSafetyNone   = "none"
)

// LinkSafetyConfig configures external-link reputation lookups
type LinkSafetyConfig struct {
	Provider   string
	APIKey     string
	ClientID   string
	Timeout    time.Duration
	Attempts   int
	RetryDelay time.Duration
}

// Email providers
const (
	EmailLog   = "log"
	EmailBrevo = "brevo"
	EmailGmail = "gmail"
)

// EmailConfig selects and configures the mail provider
type EmailConfig struct {
	Provider             string
	BrevoAPIKey          string
	FromAddress          string
	FromName             string
	GmailCredentialsPath string
}

// NotificationConfig sizes the new-job fan-out
type NotificationConfig struct {
	Workers       int
	QueueSize     int
	SendTimeout   time.Duration
	BatchDeadline time.Duration
}

// Rate limit backends
const (
	LimiterMemory = "memory"
	LimiterRedis  = "redis"
)

// RateLimitConfig configures per-caller request limits
type RateLimitConfig struct {
	Enabled bool
	Backend string
	Rate    int
	Window  time.Duration
	Burst   int
}

// IdempotencyConfig configures POST replay
type IdempotencyConfig struct {
	TTL time.Duration
}

// Load reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is loaded first when
// present; real environment variables win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("SERVER_ENV", "development"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", DriverSQLite),
			DSN:              getEnv("DB_DSN", "jobboard.db"),
			Verbose:          getBoolEnv("DB_VERBOSE", false),
			SurrealHost:      getEnv("SURREAL_HOST", "localhost"),
			SurrealPort:      getEnv("SURREAL_PORT", "8000"),
			SurrealNamespace: getEnv("SURREAL_NAMESPACE", "jobboard"),
			SurrealDatabase:  getEnv("SURREAL_DATABASE", "main"),
			SurrealUser:      getEnv("SURREAL_USER", "root"),
			SurrealPassword:  getEnv("SURREAL_PASSWORD", "root"),
		},
		JWT: JWTConfig{
			PrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./keys/private.pem"),
			PublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./keys/public.pem"),
			ExpirationMins: getIntEnv("JWT_EXPIRATION_MINS", 60),
			Issuer:         getEnv("JWT_ISSUER", "jobboard"),
			Audience:       getEnv("JWT_AUDIENCE", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Revocation: RevocationConfig{
			Backend:         getEnv("REVOCATION_BACKEND", RevocationDatabase),
			CleanupSchedule: getEnv("REVOCATION_CLEANUP_SCHEDULE", "17 * * * *"),
		},
		LinkSafety: LinkSafetyConfig{
			Provider:   getEnv("LINK_SAFETY_PROVIDER", LinkSafetyNone),
			APIKey:     getEnv("SAFE_BROWSING_API_KEY", ""),
			ClientID:   getEnv("SAFE_BROWSING_CLIENT_ID", "jobboard"),
			Timeout:    getDurationEnv("LINK_SAFETY_TIMEOUT", 5*time.Second),
			Attempts:   getIntEnv("LINK_SAFETY_ATTEMPTS", 3),
			RetryDelay: getDurationEnv("LINK_SAFETY_RETRY_DELAY", 200*time.Millisecond),
		},
		Email: EmailConfig{
			Provider:             getEnv("EMAIL_PROVIDER", EmailLog),
			BrevoAPIKey:          getEnv("BREVO_API_KEY", ""),
			FromAddress:          getEnv("EMAIL_FROM_ADDRESS", "no-reply@jobboard.local"),
			FromName:             getEnv("EMAIL_FROM_NAME", "Job Board"),
			GmailCredentialsPath: getEnv("GMAIL_CREDENTIALS_PATH", ""),
		},
		Notifications: NotificationConfig{
			Workers:       getIntEnv("NOTIFY_WORKERS", 4),
			QueueSize:     getIntEnv("NOTIFY_QUEUE_SIZE", 256),
			SendTimeout:   getDurationEnv("NOTIFY_SEND_TIMEOUT", 10*time.Second),
			BatchDeadline: getDurationEnv("NOTIFY_BATCH_DEADLINE", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
			Backend: getEnv("RATE_LIMIT_BACKEND", LimiterMemory),
			Rate:    getIntEnv("RATE_LIMIT_RATE", 100),
			Window:  getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
			Burst:   getIntEnv("RATE_LIMIT_BURST", 20),
		},
		Idempotency: IdempotencyConfig{
			TTL: getDurationEnv("IDEMPOTENCY_TTL", 24*time.Hour),
		},
	}, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// UsesRedis reports whether any component needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Revocation.Backend == RevocationRedis ||
		(c.RateLimit.Enabled && c.RateLimit.Backend == LimiterRedis)
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server validation
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}

	// Database validation
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("DB_DSN is required for driver '%s'", c.Database.Driver))
		}
	case DriverSurrealDB:
		if c.Database.SurrealHost == "" {
			errs = append(errs, errors.New("SURREAL_HOST is required"))
		}
		if c.Database.SurrealPort == "" {
			errs = append(errs, errors.New("SURREAL_PORT is required"))
		}
		if c.Database.SurrealNamespace == "" {
			errs = append(errs, errors.New("SURREAL_NAMESPACE is required"))
		}
		if c.Database.SurrealDatabase == "" {
			errs = append(errs, errors.New("SURREAL_DATABASE is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be one of %s, got '%s'",
			oneOf(DriverSQLite, DriverPostgres, DriverSurrealDB), c.Database.Driver))
	}

	// JWT validation
	if c.JWT.PrivateKeyPath == "" {
		errs = append(errs, errors.New("JWT_PRIVATE_KEY_PATH is required"))
	}
	if c.JWT.PublicKeyPath == "" {
		errs = append(errs, errors.New("JWT_PUBLIC_KEY_PATH is required"))
	}
	if c.JWT.ExpirationMins <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION_MINS must be positive"))
	}

	// Revocation validation
	if c.Revocation.Backend != RevocationDatabase && c.Revocation.Backend != RevocationRedis {
		errs = append(errs, fmt.Errorf("REVOCATION_BACKEND must be one of %s, got '%s'",
			oneOf(RevocationDatabase, RevocationRedis), c.Revocation.Backend))
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when a Redis backend is selected"))
	}

	// Link safety validation
	switch c.LinkSafety.Provider {
	case LinkSafetyGoogle:
		if c.LinkSafety.APIKey == "" {
			errs = append(errs, errors.New("SAFE_BROWSING_API_KEY is required when LINK_SAFETY_PROVIDER is 'google'"))
		}
		if c.LinkSafety.Timeout <= 0 {
			errs = append(errs, errors.New("LINK_SAFETY_TIMEOUT must be positive"))
		}
		if c.LinkSafety.Attempts < 1 {
			errs = append(errs, errors.New("LINK_SAFETY_ATTEMPTS must be at least 1"))
		}
	case LinkSafetyNone:
		if c.IsProduction() {
			errs = append(errs, errors.New("LINK_SAFETY_PROVIDER 'none' is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("LINK_SAFETY_PROVIDER must be one of %s, got '%s'",
			oneOf(LinkSafetyGoogle, LinkSafetyNone), c.LinkSafety.Provider))
	}

	// Email validation
	switch c.Email.Provider {
	case EmailLog:
	case EmailBrevo:
		if c.Email.BrevoAPIKey == "" {
			errs = append(errs, errors.New("BREVO_API_KEY is required when EMAIL_PROVIDER is 'brevo'"))
		}
		if c.Email.FromAddress == "" {
			errs = append(errs, errors.New("EMAIL_FROM_ADDRESS is required when EMAIL_PROVIDER is 'brevo'"))
		}
	case EmailGmail:
		if c.Email.GmailCredentialsPath == "" {
			errs = append(errs, errors.New("GMAIL_CREDENTIALS_PATH is required when EMAIL_PROVIDER is 'gmail'"))
		}
	default:
		errs = append(errs, fmt.Errorf("EMAIL_PROVIDER must be one of %s, got '%s'",
			oneOf(EmailLog, EmailBrevo, EmailGmail), c.Email.Provider))
	}

	// Notification validation
	if c.Notifications.Workers < 1 {
		errs = append(errs, errors.New("NOTIFY_WORKERS must be at least 1"))
	}
	if c.Notifications.QueueSize < 1 {
		errs = append(errs, errors.New("NOTIFY_QUEUE_SIZE must be at least 1"))
	}

	// Rate limit validation
	if c.RateLimit.Enabled {
		if c.RateLimit.Backend != LimiterMemory && c.RateLimit.Backend != LimiterRedis {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_BACKEND must be one of %s, got '%s'",
				oneOf(LimiterMemory, LimiterRedis), c.RateLimit.Backend))
		}
		if c.RateLimit.Rate <= 0 {
			errs = append(errs, errors.New("RATE_LIMIT_RATE must be positive"))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
		}
	}

	if c.Idempotency.TTL <= 0 {
		errs = append(errs, errors.New("IDEMPOTENCY_TTL must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func oneOf(values ...string) string {
	quoted := slices.Clone(values)
	for i, v := range quoted {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, ", ")
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
