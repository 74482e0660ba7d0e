// Package config loads the job board's configuration from environment
// variables, after reading an optional .env file with godotenv.
//
// # Configuration Groups
//
//   - ServerConfig: HTTP server settings (port, timeouts, CORS origins)
//   - DatabaseConfig: store driver (sqlite, postgres, surrealdb) and connection
//   - JWTConfig: RS256 key paths, issuer, token lifetime
//   - RedisConfig: shared by the Redis revocation store and rate limiter
//   - RevocationConfig: logout store backend and cleanup schedule
//   - LinkSafetyConfig: Safe Browsing lookups for external job links
//   - EmailConfig: notification mail provider (log, brevo, gmail)
//   - NotificationConfig: fan-out worker pool sizing and deadlines
//   - RateLimitConfig, IdempotencyConfig: HTTP hardening
//
// Validate reports every problem at once through errors.Join.
package config
