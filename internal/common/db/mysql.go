package db

import (
	"context"

	_ "github.com/go-sql-driver/mysql"
)

// NewMySQL opens a pooled MySQL connection.
// DSN format: "user:password@tcp(host:port)/assesy?parseTime=true&loc=UTC"
// parseTime is required so DATETIME columns scan into time.Time.
func NewMySQL(ctx context.Context, cfg Config) (Database, error) {
	return openSQL(ctx, "mysql", DialectMySQL, cfg)
}
