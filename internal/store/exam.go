package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/pagination"
	"github.com/pavelanni/coursecore/internal/policy"
)

const examCols = `ex.id, ex.module_id, ex.title, ex.description, ex.time_limit, ex.passing_score,
	ex.max_attempts, ex.shuffle_questions, ex.status, ex.created_at`

func scanExam(r rowScanner) (model.Exam, error) {
	var e model.Exam
	err := r.Scan(&e.ID, &e.ModuleID, &e.Title, &e.Description, &e.TimeLimit, &e.PassingScore,
		&e.MaxAttempts, &e.ShuffleQuestions, &e.Status, &e.CreatedAt)
	return e, err
}

// CreateExam attaches an exam to a module. A module holds at most one exam.
func (s *Store) CreateExam(ctx context.Context, e *model.Exam) error {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.Status == "" {
		e.Status = model.ExamDraft
	}
	if e.TimeLimit == 0 {
		e.TimeLimit = 20
	}
	e.CreatedAt = now()
	_, err := s.exec(ctx,
		`INSERT INTO exams (id, module_id, title, description, time_limit, passing_score, max_attempts, shuffle_questions, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ModuleID, e.Title, e.Description, e.TimeLimit, e.PassingScore,
		e.MaxAttempts, e.ShuffleQuestions, string(e.Status), e.CreatedAt,
	)
	if err != nil {
		slog.Error("failed to create exam", "module_id", e.ModuleID, "error", err)
		return err
	}
	slog.Info("created exam", "id", e.ID, "module_id", e.ModuleID)
	return nil
}

// ExamByID returns an exam without access filtering.
func (s *Store) ExamByID(ctx context.Context, id string) (model.Exam, error) {
	e, err := scanExam(s.queryRow(ctx, `SELECT `+examCols+` FROM exams ex WHERE ex.id = ?`, id))
	if err != nil {
		return e, fmt.Errorf("exam %s: %w", id, mapErr(err))
	}
	return e, nil
}

// SetExamStatus publishes or unpublishes an exam.
func (s *Store) SetExamStatus(ctx context.Context, id string, status model.ExamStatus) error {
	res, err := s.exec(ctx, `UPDATE exams SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: exam %s", model.ErrNotFound, id)
	}
	return nil
}

// FindExams returns the page of exams p admits.
func (s *Store) FindExams(ctx context.Context, p policy.Predicate, params pagination.Params) (pagination.Page[model.Exam], error) {
	return findPage(ctx, s.runner, p, params, examCols, "", scanExam)
}

// GetExam returns one exam if p admits it.
func (s *Store) GetExam(ctx context.Context, p policy.Predicate, id string) (model.Exam, error) {
	return findOne(ctx, s.runner, p, id, examCols, scanExam)
}

const pretestCols = `p.id, p.user_id, p.title, p.description, p.passing_score, p.max_attempts, p.time_limit, p.created_at`

func scanPretest(r rowScanner) (model.Pretest, error) {
	var p model.Pretest
	err := r.Scan(&p.ID, &p.UserID, &p.Title, &p.Description, &p.PassingScore, &p.MaxAttempts, &p.TimeLimit, &p.CreatedAt)
	return p, err
}

// CreatePretest inserts a pretest owned by p.UserID.
func (s *Store) CreatePretest(ctx context.Context, p *model.Pretest) error {
	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt = now()
	_, err := s.exec(ctx,
		`INSERT INTO pretests (id, user_id, title, description, passing_score, max_attempts, time_limit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Title, p.Description, p.PassingScore, p.MaxAttempts, p.TimeLimit, p.CreatedAt,
	)
	if err != nil {
		return err
	}
	slog.Info("created pretest", "id", p.ID, "user_id", p.UserID)
	return nil
}

// PretestByID returns a pretest without access filtering.
func (s *Store) PretestByID(ctx context.Context, id string) (model.Pretest, error) {
	p, err := scanPretest(s.queryRow(ctx, `SELECT `+pretestCols+` FROM pretests p WHERE p.id = ?`, id))
	if err != nil {
		return p, fmt.Errorf("pretest %s: %w", id, mapErr(err))
	}
	return p, nil
}

// FindPretests returns the page of pretests pred admits.
func (s *Store) FindPretests(ctx context.Context, pred policy.Predicate, params pagination.Params) (pagination.Page[model.Pretest], error) {
	return findPage(ctx, s.runner, pred, params, pretestCols, "", scanPretest)
}

// GetPretest returns one pretest if pred admits it.
func (s *Store) GetPretest(ctx context.Context, pred policy.Predicate, id string) (model.Pretest, error) {
	return findOne(ctx, s.runner, pred, id, pretestCols, scanPretest)
}
