// Package database provides the SurrealDB connection used by the surreal
// repository backend.
//
// The Database interface provides three query methods:
//   - Query: Returns multiple results (for SELECT queries returning lists)
//   - QueryOne: Returns a single result (for SELECT by ID)
//   - Execute: No return value (for CREATE/UPDATE/DELETE mutations)
//
// Use errors.Is() to check error types:
//
//	if errors.Is(err, database.ErrNotFound) {
//	    // Handle missing record
//	}
package database

import (
	"context"
	"errors"
)

// Standard errors for database operations.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConnection indicates a failure to connect to or communicate with the database.
	ErrConnection = errors.New("database connection error")

	// ErrQuery indicates a query execution failure (syntax error, invalid reference, etc.).
	ErrQuery = errors.New("query error")
)

// Database defines the interface for database operations
type Database interface {
	// Connection management
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Query executes a query and returns one {status, result} entry per statement
	Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)

	// QueryOne executes a query and returns the first record of the first statement
	QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error)

	// Execute runs a query without returning results (for mutations)
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
}

// Config holds database configuration
type Config struct {
	Host      string
	Port      string
	User      string
	Password  string
	Namespace string
	Database  string
}

// Schema defines the tables and indexes used by the job board. Tables stay
// schemaless; the indexes back the uniqueness rules and the listing order.
const Schema = `
DEFINE TABLE IF NOT EXISTS user SCHEMALESS;
DEFINE INDEX IF NOT EXISTS user_email ON TABLE user FIELDS email UNIQUE;
DEFINE TABLE IF NOT EXISTS job SCHEMALESS;
DEFINE INDEX IF NOT EXISTS job_created_at ON TABLE job FIELDS created_at;
DEFINE INDEX IF NOT EXISTS job_posted_by ON TABLE job FIELDS posted_by_user_id;
DEFINE TABLE IF NOT EXISTS user_subscription SCHEMALESS;
DEFINE INDEX IF NOT EXISTS user_subscription_user ON TABLE user_subscription FIELDS user_id UNIQUE;
DEFINE TABLE IF NOT EXISTS invalid_token SCHEMALESS;
DEFINE INDEX IF NOT EXISTS invalid_token_expires ON TABLE invalid_token FIELDS expires_at;
`

// Migrate applies Schema
func Migrate(ctx context.Context, db Database) error {
	return db.Execute(ctx, Schema, nil)
}
