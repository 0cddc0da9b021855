package db_test

import (
	"testing"

	"assesy/internal/common/db"
)

func TestRebind(t *testing.T) {
	cases := []struct {
		name    string
		dialect db.Dialect
		query   string
		want    string
	}{
		{
			name:    "postgres numbers placeholders",
			dialect: db.DialectPostgres,
			query:   "UPDATE sessions SET status = ? WHERE token = ? AND status IN (?, ?)",
			want:    "UPDATE sessions SET status = $1 WHERE token = $2 AND status IN ($3, $4)",
		},
		{
			name:    "postgres skips quoted question marks",
			dialect: db.DialectPostgres,
			query:   "SELECT '?' FROM t WHERE id = ?",
			want:    "SELECT '?' FROM t WHERE id = $1",
		},
		{
			name:    "mysql untouched",
			dialect: db.DialectMySQL,
			query:   "SELECT id FROM t WHERE id = ?",
			want:    "SELECT id FROM t WHERE id = ?",
		},
		{
			name:    "sqlite untouched",
			dialect: db.DialectSQLite,
			query:   "SELECT id FROM t WHERE id = ?",
			want:    "SELECT id FROM t WHERE id = ?",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.dialect.Rebind(tc.query); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
