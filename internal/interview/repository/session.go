package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"assesy/internal/common/db"
	"assesy/internal/interview/model"
)

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	GetByToken(ctx context.Context, token string) (model.Session, error)
	ListSummaries(ctx context.Context) ([]model.SessionSummary, error)
	ListCompleted(ctx context.Context) ([]model.SessionSummary, error)
	ListTokensByStatus(ctx context.Context, status model.SessionStatus) ([]string, error)

	// Transition moves a session to `to` only if its current status is one of
	// the lifecycle sources of `to`. It reports whether a row was updated; false
	// means the session is missing or another actor moved it first.
	Transition(ctx context.Context, token string, to model.SessionStatus, at time.Time) (bool, error)
}

type SQLSessionRepository struct {
	db db.Database
}

func NewSessionRepository(database db.Database) SessionRepository {
	return &SQLSessionRepository{db: database}
}

const sessionColumns = "id, token, status, candidate_name, position, assessment_id, created_at, active_at, completed_at"

const summarySelect = `SELECT s.token, s.status, s.candidate_name, s.position, a.title, s.created_at, s.active_at, s.completed_at
FROM sessions s
JOIN assessments a ON a.id = s.assessment_id`

func (r *SQLSessionRepository) Create(ctx context.Context, session *model.Session) error {
	if session == nil {
		return fmt.Errorf("session is nil")
	}
	if session.Status == "" {
		session.Status = model.StatusCreated
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	query := "INSERT INTO sessions (token, status, candidate_name, position, assessment_id, created_at) VALUES (?, ?, ?, ?, ?, ?)"
	id, err := insertReturningID(ctx, r.db, nil, query,
		session.Token, string(session.Status), session.CandidateName, session.Position, session.AssessmentID, session.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return err
	}
	session.ID = id
	return nil
}

func (r *SQLSessionRepository) GetByToken(ctx context.Context, token string) (model.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE token = ?"
	session, err := scanSession(r.db.QueryRow(ctx, query, token))
	if err != nil {
		if db.IsNoRows(err) {
			return model.Session{}, ErrSessionNotFound
		}
		return model.Session{}, err
	}
	return session, nil
}

func (r *SQLSessionRepository) ListSummaries(ctx context.Context) ([]model.SessionSummary, error) {
	return r.listSummaries(ctx, summarySelect+" ORDER BY s.created_at DESC, s.id DESC")
}

func (r *SQLSessionRepository) ListCompleted(ctx context.Context) ([]model.SessionSummary, error) {
	query := summarySelect + " WHERE s.status = ? ORDER BY s.completed_at DESC, s.id DESC"
	return r.listSummaries(ctx, query, string(model.StatusCompleted))
}

func (r *SQLSessionRepository) ListTokensByStatus(ctx context.Context, status model.SessionStatus) ([]string, error) {
	rows, err := r.db.Query(ctx, "SELECT token FROM sessions WHERE status = ? ORDER BY id ASC", string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (r *SQLSessionRepository) Transition(ctx context.Context, token string, to model.SessionStatus, at time.Time) (bool, error) {
	sources := model.SourcesOf(to)
	if len(sources) == 0 {
		return false, fmt.Errorf("no transition leads to %s", to)
	}

	set := "status = ?"
	args := []interface{}{string(to)}
	switch to {
	case model.StatusActive:
		set += ", active_at = ?"
		args = append(args, at.UTC())
	case model.StatusCompleted:
		set += ", completed_at = ?"
		args = append(args, at.UTC())
	}
	args = append(args, token)

	placeholders := make([]string, len(sources))
	for i, s := range sources {
		placeholders[i] = "?"
		args = append(args, string(s))
	}

	query := "UPDATE sessions SET " + set + " WHERE token = ? AND status IN (" + strings.Join(placeholders, ", ") + ")"
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *SQLSessionRepository) listSummaries(ctx context.Context, query string, args ...interface{}) ([]model.SessionSummary, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SessionSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

func scanSession(scanner db.Scanner) (model.Session, error) {
	var (
		s           model.Session
		status      string
		activeAt    sql.NullTime
		completedAt sql.NullTime
	)
	if err := scanner.Scan(&s.ID, &s.Token, &status, &s.CandidateName, &s.Position, &s.AssessmentID, &s.CreatedAt, &activeAt, &completedAt); err != nil {
		return model.Session{}, err
	}
	parsed, err := model.ParseSessionStatus(status)
	if err != nil {
		return model.Session{}, err
	}
	s.Status = parsed
	s.CreatedAt = s.CreatedAt.UTC()
	s.ActiveAt = nullTimePtr(activeAt)
	s.CompletedAt = nullTimePtr(completedAt)
	return s, nil
}

// scanSummary keeps unknown status values as-is; listings are for operators
// and must not fail because of one bad row.
func scanSummary(scanner db.Scanner) (model.SessionSummary, error) {
	var (
		s           model.SessionSummary
		status      string
		activeAt    sql.NullTime
		completedAt sql.NullTime
	)
	if err := scanner.Scan(&s.Token, &status, &s.CandidateName, &s.Position, &s.AssessmentTitle, &s.CreatedAt, &activeAt, &completedAt); err != nil {
		return model.SessionSummary{}, err
	}
	s.Status = model.SessionStatus(status)
	s.CreatedAt = s.CreatedAt.UTC()
	s.ActiveAt = nullTimePtr(activeAt)
	s.CompletedAt = nullTimePtr(completedAt)
	return s, nil
}
