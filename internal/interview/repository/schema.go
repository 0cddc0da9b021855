package repository

import (
	"context"
	"fmt"

	"assesy/internal/common/db"
)

var schemas = map[db.Dialect][]string{
	db.DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS assessments (
			id SERIAL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id SERIAL PRIMARY KEY,
			token VARCHAR(64) NOT NULL UNIQUE,
			status VARCHAR(32) NOT NULL DEFAULT 'CREATED',
			candidate_name VARCHAR(255) NOT NULL,
			position VARCHAR(255) NOT NULL,
			assessment_id INTEGER NOT NULL REFERENCES assessments(id),
			created_at TIMESTAMPTZ NOT NULL,
			active_at TIMESTAMPTZ NULL,
			completed_at TIMESTAMPTZ NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions (status)`,
	},
	db.DialectMySQL: {
		`CREATE TABLE IF NOT EXISTS assessments (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			created_at DATETIME(6) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			token VARCHAR(64) NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'CREATED',
			candidate_name VARCHAR(255) NOT NULL,
			position VARCHAR(255) NOT NULL,
			assessment_id BIGINT NOT NULL,
			created_at DATETIME(6) NOT NULL,
			active_at DATETIME(6) NULL,
			completed_at DATETIME(6) NULL,
			UNIQUE KEY uk_sessions_token (token),
			KEY idx_sessions_status (status),
			CONSTRAINT fk_sessions_assessment FOREIGN KEY (assessment_id) REFERENCES assessments (id)
		)`,
	},
	db.DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS assessments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			token TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'CREATED',
			candidate_name TEXT NOT NULL,
			position TEXT NOT NULL,
			assessment_id INTEGER NOT NULL REFERENCES assessments(id),
			created_at DATETIME NOT NULL,
			active_at DATETIME NULL,
			completed_at DATETIME NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions (status)`,
	},
}

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(ctx context.Context, database db.Database) error {
	statements, ok := schemas[database.Dialect()]
	if !ok {
		return fmt.Errorf("no schema for dialect %s", database.Dialect())
	}
	for _, stmt := range statements {
		if _, err := database.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
