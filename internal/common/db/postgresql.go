package db

import (
	"context"

	_ "github.com/lib/pq"
)

// NewPostgreSQL opens a pooled PostgreSQL connection.
// DSN format: "user=postgres password=password host=localhost port=5432 dbname=assesy sslmode=disable"
func NewPostgreSQL(ctx context.Context, cfg Config) (Database, error) {
	return openSQL(ctx, "postgres", DialectPostgres, cfg)
}
