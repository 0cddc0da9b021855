package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"assesy/internal/common/db"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrDuplicateToken     = errors.New("session token already exists")
)

// insertReturningID runs an INSERT and reports the generated id, using
// RETURNING where the dialect has no LastInsertId.
func insertReturningID(ctx context.Context, database db.Database, tx db.Transaction, query string, args ...interface{}) (int64, error) {
	q := db.GetQuerier(database, tx)
	if database.Dialect().UsesReturning() {
		var id int64
		if err := q.QueryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	result, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
