package repository

import (
	"context"
	"time"

	"assesy/internal/common/db"
	"assesy/internal/interview/model"
)

type AssessmentRepository interface {
	Create(ctx context.Context, tx db.Transaction, title string) (model.Assessment, error)
	Get(ctx context.Context, tx db.Transaction, id int64) (model.Assessment, error)
	List(ctx context.Context) ([]model.Assessment, error)
}

type SQLAssessmentRepository struct {
	db db.Database
}

func NewAssessmentRepository(database db.Database) AssessmentRepository {
	return &SQLAssessmentRepository{db: database}
}

func (r *SQLAssessmentRepository) Create(ctx context.Context, tx db.Transaction, title string) (model.Assessment, error) {
	now := time.Now().UTC()
	id, err := insertReturningID(ctx, r.db, tx, "INSERT INTO assessments (title, created_at) VALUES (?, ?)", title, now)
	if err != nil {
		return model.Assessment{}, err
	}
	return model.Assessment{ID: id, Title: title, CreatedAt: now}, nil
}

func (r *SQLAssessmentRepository) Get(ctx context.Context, tx db.Transaction, id int64) (model.Assessment, error) {
	query := "SELECT id, title, created_at FROM assessments WHERE id = ?"
	a, err := scanAssessment(db.GetQuerier(r.db, tx).QueryRow(ctx, query, id))
	if err != nil {
		if db.IsNoRows(err) {
			return model.Assessment{}, ErrAssessmentNotFound
		}
		return model.Assessment{}, err
	}
	return a, nil
}

func (r *SQLAssessmentRepository) List(ctx context.Context) ([]model.Assessment, error) {
	rows, err := r.db.Query(ctx, "SELECT id, title, created_at FROM assessments ORDER BY title ASC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAssessment(scanner db.Scanner) (model.Assessment, error) {
	var a model.Assessment
	if err := scanner.Scan(&a.ID, &a.Title, &a.CreatedAt); err != nil {
		return model.Assessment{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
