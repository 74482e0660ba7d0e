package gormstore

import (
	"database/sql"
	"strings"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const sqliteDriverName = "sqlite3_jobboard"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// SQLite's builtin lower() folds ASCII only
			return conn.RegisterFunc("lower", unicodeLower, true)
		},
	})
}

// unicodeLower replaces SQLite's lower(). Non-text values pass through
// unchanged and NULL stays NULL.
func unicodeLower(v any) any {
	switch s := v.(type) {
	case string:
		return strings.ToLower(s)
	case []byte:
		if s == nil {
			return nil
		}
		return strings.ToLower(string(s))
	}
	return v
}

// SQLiteDialector opens dsn on a SQLite connection whose lower() folds
// case with Unicode rules, matching what PostgreSQL does.
func SQLiteDialector(dsn string) gorm.Dialector {
	return sqlite.New(sqlite.Config{DriverName: sqliteDriverName, DSN: dsn})
}
