// Package testdb provides isolated databases for store and service tests.
//
// SQLite returns a migrated in-memory GORM database and always works.
// New connects to a real SurrealDB instance in a unique namespace and skips
// the test when none is reachable.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.SQLite(t)
//	    jobs := gormstore.New[model.Job](db)
//	}
package testdb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/forgo/jobboard/internal/database"
	"github.com/forgo/jobboard/internal/repository/gormstore"
)

// SQLite opens a fresh in-memory database with every table migrated. It is
// closed automatically when the test ends.
func SQLite(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(gormstore.SQLiteDialector(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("testdb: open sqlite: %v", err)
	}

	// every pooled connection to :memory: is a separate database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("testdb: sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gormstore.Migrate(context.Background(), db); err != nil {
		t.Fatalf("testdb: migrate: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// TestDB provides an isolated SurrealDB namespace for testing
type TestDB struct {
	DB        database.Database
	Namespace string
	Database  string
	t         *testing.T
}

var (
	counterMu sync.Mutex
	counter   int64
)

// getTestConfig returns database config from environment or defaults
func getTestConfig() database.Config {
	return database.Config{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "8000"),
		User:     envOr("TEST_DB_USER", "root"),
		Password: envOr("TEST_DB_PASSWORD", "root"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// uniqueNamespace generates a unique namespace for test isolation
func uniqueNamespace() string {
	counterMu.Lock()
	defer counterMu.Unlock()
	counter++
	return fmt.Sprintf("test_%d_%d", time.Now().UnixNano(), counter)
}

// New connects to SurrealDB in a fresh namespace with the schema applied.
// Set TEST_SURREAL=1 to run these tests; they are skipped otherwise, and
// also when the server cannot be reached.
func New(t *testing.T) *TestDB {
	t.Helper()

	if os.Getenv("TEST_SURREAL") == "" {
		t.Skip("testdb: TEST_SURREAL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := getTestConfig()
	cfg.Namespace = uniqueNamespace()
	cfg.Database = "test"

	db := database.NewSurrealDB(cfg)
	if err := db.Connect(ctx); err != nil {
		t.Skipf("testdb: surrealdb unavailable: %v", err)
	}

	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		t.Fatalf("testdb: migrate: %v", err)
	}

	tdb := &TestDB{
		DB:        db,
		Namespace: cfg.Namespace,
		Database:  cfg.Database,
		t:         t,
	}
	t.Cleanup(tdb.Close)
	return tdb
}

// Close removes the test namespace and closes the connection
func (tdb *TestDB) Close() {
	if tdb.DB == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = tdb.DB.Execute(ctx, fmt.Sprintf("REMOVE NAMESPACE %s", tdb.Namespace), nil)
	_ = tdb.DB.Close()
	tdb.DB = nil
}

// Ctx returns a context with a reasonable timeout for test operations
func (tdb *TestDB) Ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	tdb.t.Cleanup(cancel)
	return ctx
}

// MustExec executes a query and fails the test on error
func (tdb *TestDB) MustExec(query string, vars map[string]interface{}) {
	tdb.t.Helper()
	if err := tdb.DB.Execute(tdb.Ctx(), query, vars); err != nil {
		tdb.t.Fatalf("testdb: exec failed: %v\nQuery: %s", err, query)
	}
}
