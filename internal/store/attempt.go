package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/ordering"
	"github.com/pavelanni/coursecore/internal/pagination"
	"github.com/pavelanni/coursecore/internal/policy"
)

const attemptCols = `id, user_id, exam_id, pretest_id, score, status, started_at, submitted_at`

func scanAttempt(r rowScanner) (model.ExamAttempt, error) {
	var (
		a                 model.ExamAttempt
		examID, pretestID sql.NullString
		submittedAt       sql.NullTime
	)
	err := r.Scan(&a.ID, &a.UserID, &examID, &pretestID, &a.Score, &a.Status, &a.StartedAt, &submittedAt)
	a.ExamID = ptr(examID)
	a.PretestID = ptr(pretestID)
	a.SubmittedAt = ptrTime(submittedAt)
	return a, err
}

// CreateAttempt starts an attempt on exactly one of an exam or a pretest.
func (s *Store) CreateAttempt(ctx context.Context, a *model.ExamAttempt) error {
	return s.runner.insertAttempt(ctx, a)
}

// StartAttempt creates a, holding the lock on its exam or pretest while it
// counts the user's earlier attempts. When maxAttempts is positive and
// already used up, nothing is written and model.ErrConflict is returned.
func (s *Store) StartAttempt(ctx context.Context, a *model.ExamAttempt, maxAttempts int) error {
	var scope ordering.Scope
	switch {
	case a.ExamID != nil && a.PretestID == nil:
		scope = ordering.ExamQuestions(*a.ExamID)
	case a.PretestID != nil && a.ExamID == nil:
		scope = ordering.PretestQuestions(*a.PretestID)
	default:
		return fmt.Errorf("attempt must target exactly one of an exam or a pretest")
	}
	return s.WithinScope(ctx, scope, func(tx *Tx) error {
		if maxAttempts > 0 {
			used, err := tx.countAttempts(ctx, a.UserID, a.ExamID, a.PretestID)
			if err != nil {
				return err
			}
			if used >= maxAttempts {
				return fmt.Errorf("%w: all %d attempts used", model.ErrConflict, maxAttempts)
			}
		}
		return tx.insertAttempt(ctx, a)
	})
}

func (r runner) insertAttempt(ctx context.Context, a *model.ExamAttempt) error {
	if (a.ExamID == nil) == (a.PretestID == nil) {
		return fmt.Errorf("attempt must target exactly one of an exam or a pretest")
	}
	if a.ID == "" {
		a.ID = newID()
	}
	a.Status = model.AttemptInProgress
	a.StartedAt = now()
	_, err := r.exec(ctx,
		`INSERT INTO exam_attempts (id, user_id, exam_id, pretest_id, score, status, started_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		a.ID, a.UserID, nullable(a.ExamID), nullable(a.PretestID), string(a.Status), a.StartedAt,
	)
	if err != nil {
		return err
	}
	slog.Info("started attempt", "id", a.ID, "user_id", a.UserID)
	return nil
}

// AttemptByID returns an attempt.
func (s *Store) AttemptByID(ctx context.Context, id string) (model.ExamAttempt, error) {
	a, err := scanAttempt(s.queryRow(ctx, `SELECT `+attemptCols+` FROM exam_attempts WHERE id = ?`, id))
	if err != nil {
		return a, fmt.Errorf("attempt %s: %w", id, mapErr(err))
	}
	return a, nil
}

// CountAttempts returns how many attempts userID has made on an exam or pretest.
func (s *Store) CountAttempts(ctx context.Context, userID string, examID, pretestID *string) (int, error) {
	return s.runner.countAttempts(ctx, userID, examID, pretestID)
}

func (r runner) countAttempts(ctx context.Context, userID string, examID, pretestID *string) (int, error) {
	col, id := "exam_id", nullable(examID)
	if pretestID != nil {
		col, id = "pretest_id", nullable(pretestID)
	}
	var n int
	err := r.queryRow(ctx,
		`SELECT COUNT(*) FROM exam_attempts WHERE user_id = ? AND `+col+` = ?`, userID, id,
	).Scan(&n)
	return n, mapErr(err)
}

// AttemptsForPretest lists userID's attempts on a pretest, oldest first.
func (s *Store) AttemptsForPretest(ctx context.Context, userID, pretestID string) ([]model.ExamAttempt, error) {
	return s.listAttempts(ctx, `WHERE user_id = ? AND pretest_id = ?`, userID, pretestID)
}

// AttemptsForExam lists every attempt on an exam, oldest first.
func (s *Store) AttemptsForExam(ctx context.Context, examID string) ([]model.ExamAttempt, error) {
	return s.listAttempts(ctx, `WHERE exam_id = ?`, examID)
}

func (s *Store) listAttempts(ctx context.Context, where string, args ...any) ([]model.ExamAttempt, error) {
	rows, err := s.query(ctx, `SELECT `+attemptCols+` FROM exam_attempts `+where+` ORDER BY started_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var attempts []model.ExamAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// CompleteAttempt stores the final score and marks the attempt submitted.
// Submitting twice is a conflict.
func (s *Store) CompleteAttempt(ctx context.Context, id string, score int, at time.Time) error {
	res, err := s.exec(ctx,
		`UPDATE exam_attempts SET score = ?, status = ?, submitted_at = ? WHERE id = ? AND status = ?`,
		score, string(model.AttemptSubmitted), at, id, string(model.AttemptInProgress),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: attempt %s is not in progress", model.ErrConflict, id)
	}
	slog.Info("submitted attempt", "id", id, "score", score)
	return nil
}

const answerCols = `a.id, a.exam_attempt_id, a.question_id, a.selected_option_id, a.correct_answer_id,
	a.answer_text, a.created_at, a.updated_at`

func scanAnswer(r rowScanner) (model.ExamAnswer, error) {
	var a model.ExamAnswer
	err := r.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.SelectedOptionID, &a.CorrectOptionID,
		&a.AnswerText, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// InsertAnswer stores an answer with its correctness snapshot. A second
// answer to the same question in the same attempt is a conflict.
func (s *Store) InsertAnswer(ctx context.Context, a *model.ExamAnswer) error {
	if a.ID == "" {
		a.ID = newID()
	}
	a.CreatedAt = now()
	a.UpdatedAt = a.CreatedAt
	_, err := s.exec(ctx,
		`INSERT INTO exam_answers (id, exam_attempt_id, question_id, selected_option_id, correct_answer_id, answer_text, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.AttemptID, a.QuestionID, a.SelectedOptionID, a.CorrectOptionID, a.AnswerText, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("answer to question %s: %w", a.QuestionID, err)
	}
	return nil
}

// UpdateAnswer rewrites the selection and snapshot of an answer.
func (s *Store) UpdateAnswer(ctx context.Context, a *model.ExamAnswer) error {
	a.UpdatedAt = now()
	res, err := s.exec(ctx,
		`UPDATE exam_answers SET question_id = ?, selected_option_id = ?, correct_answer_id = ?, answer_text = ?, updated_at = ?
		 WHERE id = ?`,
		a.QuestionID, a.SelectedOptionID, a.CorrectOptionID, a.AnswerText, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: answer %s", model.ErrNotFound, a.ID)
	}
	return nil
}

// AnswerByID returns an answer without access filtering.
func (s *Store) AnswerByID(ctx context.Context, id string) (model.ExamAnswer, error) {
	a, err := scanAnswer(s.queryRow(ctx, `SELECT `+answerCols+` FROM exam_answers a WHERE a.id = ?`, id))
	if err != nil {
		return a, fmt.Errorf("answer %s: %w", id, mapErr(err))
	}
	return a, nil
}

// AnswersForAttempts returns the answers of the given attempts ordered by
// last update, oldest first.
func (s *Store) AnswersForAttempts(ctx context.Context, attemptIDs ...string) ([]model.ExamAnswer, error) {
	if len(attemptIDs) == 0 {
		return nil, nil
	}
	placeholders := "?"
	args := []any{attemptIDs[0]}
	for _, id := range attemptIDs[1:] {
		placeholders += ", ?"
		args = append(args, id)
	}
	rows, err := s.query(ctx,
		`SELECT `+answerCols+` FROM exam_answers a WHERE a.exam_attempt_id IN (`+placeholders+`)
		 ORDER BY a.updated_at, a.id`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.ExamAnswer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// FindAnswers returns the page of answers p admits.
func (s *Store) FindAnswers(ctx context.Context, p policy.Predicate, params pagination.Params) (pagination.Page[model.ExamAnswer], error) {
	return findPage(ctx, s.runner, p, params, answerCols, "", scanAnswer)
}

// GetAnswer returns one answer if p admits it.
func (s *Store) GetAnswer(ctx context.Context, p policy.Predicate, id string) (model.ExamAnswer, error) {
	return findOne(ctx, s.runner, p, id, answerCols, scanAnswer)
}
