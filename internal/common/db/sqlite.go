package db

import (
	"context"

	_ "modernc.org/sqlite"
)

// NewSQLite opens an SQLite database file. SQLite allows a single writer,
// so the pool is pinned to one connection.
func NewSQLite(ctx context.Context, cfg Config) (Database, error) {
	cfg.MaxOpenConnections = 1
	cfg.MaxIdleConnections = 1
	if cfg.ConnectRetries == 0 {
		cfg.ConnectRetries = 1
	}
	return openSQL(ctx, "sqlite", DialectSQLite, cfg)
}
