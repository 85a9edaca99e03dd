package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/ordering"
	"github.com/pavelanni/coursecore/internal/pagination"
	"github.com/pavelanni/coursecore/internal/policy"
)

const questionCols = `q.id, q.exam_id, q.pretest_id, q.question, q.type, q.points, q.order_index, q.created_at`

func scanQuestion(r rowScanner) (model.Question, error) {
	var (
		q                 model.Question
		examID, pretestID sql.NullString
	)
	err := r.Scan(&q.ID, &examID, &pretestID, &q.Text, &q.Type, &q.Points, &q.OrderIndex, &q.CreatedAt)
	q.ExamID = ptr(examID)
	q.PretestID = ptr(pretestID)
	return q, err
}

const optionCols = `id, question_id, option_text, is_correct, explanation`

func scanOption(r rowScanner) (model.QuestionOption, error) {
	var o model.QuestionOption
	err := r.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect, &o.Explanation)
	return o, err
}

// FindQuestions returns the page of questions p admits. p.Kind selects exam
// or pretest questions. shuffle replaces index order with a random one.
func (s *Store) FindQuestions(ctx context.Context, p policy.Predicate, params pagination.Params, shuffle bool) (pagination.Page[model.Question], error) {
	orderBy := ""
	if shuffle {
		orderBy = "RANDOM()"
	}
	return findPage(ctx, s.runner, p, params, questionCols, orderBy, scanQuestion)
}

// GetQuestion returns one question if p admits it.
func (s *Store) GetQuestion(ctx context.Context, p policy.Predicate, id string) (model.Question, error) {
	return findOne(ctx, s.runner, p, id, questionCols, scanQuestion)
}

// QuestionByID returns a question without any access filtering.
func (s *Store) QuestionByID(ctx context.Context, id string) (model.Question, error) {
	q, err := scanQuestion(s.queryRow(ctx, `SELECT `+questionCols+` FROM questions q WHERE q.id = ?`, id))
	if err != nil {
		return q, fmt.Errorf("question %s: %w", id, mapErr(err))
	}
	return q, nil
}

// OptionsForQuestion lists a question's options in insertion order.
func (s *Store) OptionsForQuestion(ctx context.Context, questionID string) ([]model.QuestionOption, error) {
	rows, err := s.query(ctx, `SELECT `+optionCols+` FROM question_options WHERE question_id = ? ORDER BY position, id`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var opts []model.QuestionOption
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, err
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}

// OptionByID returns a single option.
func (s *Store) OptionByID(ctx context.Context, id string) (model.QuestionOption, error) {
	o, err := scanOption(s.queryRow(ctx, `SELECT `+optionCols+` FROM question_options WHERE id = ?`, id))
	if err != nil {
		return o, fmt.Errorf("option %s: %w", id, mapErr(err))
	}
	return o, nil
}

// CorrectOption returns the option currently marked correct for a question.
// When several are marked, the first created wins.
func (s *Store) CorrectOption(ctx context.Context, questionID string) (model.QuestionOption, error) {
	o, err := scanOption(s.queryRow(ctx,
		`SELECT `+optionCols+` FROM question_options WHERE question_id = ? AND is_correct = ? ORDER BY position, id LIMIT 1`,
		questionID, true,
	))
	if err != nil {
		return o, fmt.Errorf("correct option for question %s: %w", questionID, mapErr(err))
	}
	return o, nil
}

// UpdateOption rewrites an option. Existing answers keep their snapshot.
func (s *Store) UpdateOption(ctx context.Context, o model.QuestionOption) error {
	res, err := s.exec(ctx,
		`UPDATE question_options SET option_text = ?, is_correct = ?, explanation = ? WHERE id = ?`,
		o.Text, o.IsCorrect, o.Explanation, o.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: option %s", model.ErrNotFound, o.ID)
	}
	return nil
}

// InsertQuestion stores q and its options at index within the transaction's
// exam or pretest.
func (tx *Tx) InsertQuestion(ctx context.Context, q *model.Question, options []model.QuestionOption, index int) error {
	if err := tx.requireScope(ordering.ScopeExamQuestions, ordering.ScopePretestQuestions); err != nil {
		return err
	}
	if q.ID == "" {
		q.ID = newID()
	}
	parent := tx.scope.ParentID
	q.ExamID, q.PretestID = nil, nil
	if tx.scope.Kind == ordering.ScopeExamQuestions {
		q.ExamID = &parent
	} else {
		q.PretestID = &parent
	}
	if q.Type == "" {
		q.Type = model.QuestionMultipleChoice
	}
	q.OrderIndex = index
	q.CreatedAt = now()

	_, err := tx.exec(ctx,
		`INSERT INTO questions (id, exam_id, pretest_id, question, type, points, order_index, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, nullable(q.ExamID), nullable(q.PretestID), q.Text, string(q.Type), q.Points, q.OrderIndex, q.CreatedAt,
	)
	if err != nil {
		slog.Error("failed to create question", "scope", tx.scope.String(), "error", err)
		return err
	}
	for i := range options {
		if err := tx.insertOption(ctx, q.ID, i+1, &options[i]); err != nil {
			return err
		}
	}
	slog.Info("created question", "id", q.ID, "scope", tx.scope.String(), "order_index", index, "options", len(options))
	return nil
}

func (tx *Tx) insertOption(ctx context.Context, questionID string, position int, o *model.QuestionOption) error {
	if o.ID == "" {
		o.ID = newID()
	}
	o.QuestionID = questionID
	_, err := tx.exec(ctx,
		`INSERT INTO question_options (id, question_id, position, option_text, is_correct, explanation)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.QuestionID, position, o.Text, o.IsCorrect, o.Explanation,
	)
	return err
}

// UpdateQuestion rewrites the question's content fields.
func (tx *Tx) UpdateQuestion(ctx context.Context, q model.Question) error {
	if err := tx.requireScope(ordering.ScopeExamQuestions, ordering.ScopePretestQuestions); err != nil {
		return err
	}
	t := scopeTables[tx.scope.Kind]
	res, err := tx.exec(ctx,
		`UPDATE questions SET question = ?, type = ?, points = ? WHERE id = ? AND `+t.fk+` = ?`,
		q.Text, string(q.Type), q.Points, q.ID, tx.scope.ParentID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: question %s", model.ErrNotFound, q.ID)
	}
	return nil
}

// DeleteQuestion removes a question, its options and its answers.
func (tx *Tx) DeleteQuestion(ctx context.Context, id string) error {
	if err := tx.requireScope(ordering.ScopeExamQuestions, ordering.ScopePretestQuestions); err != nil {
		return err
	}
	t := scopeTables[tx.scope.Kind]
	res, err := tx.exec(ctx, `DELETE FROM questions WHERE id = ? AND `+t.fk+` = ?`, id, tx.scope.ParentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: question %s", model.ErrNotFound, id)
	}
	slog.Info("deleted question", "id", id, "scope", tx.scope.String())
	return nil
}

// QuestionsOf lists every question of an exam or pretest by index.
func (s *Store) QuestionsOf(ctx context.Context, scope ordering.Scope) ([]model.Question, error) {
	if scope.Kind != ordering.ScopeExamQuestions && scope.Kind != ordering.ScopePretestQuestions {
		return nil, fmt.Errorf("scope %s does not hold questions", scope)
	}
	t := scopeTables[scope.Kind]
	rows, err := s.query(ctx,
		`SELECT `+questionCols+` FROM questions q WHERE q.`+t.fk+` = ? ORDER BY q.order_index, q.id`, scope.ParentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
