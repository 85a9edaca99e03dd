package grading

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/ordering"
	"github.com/pavelanni/coursecore/internal/policy"
)

// Store is the persistence the engine needs.
type Store interface {
	OptionByID(ctx context.Context, id string) (model.QuestionOption, error)
	CorrectOption(ctx context.Context, questionID string) (model.QuestionOption, error)
	QuestionByID(ctx context.Context, id string) (model.Question, error)
	QuestionsOf(ctx context.Context, scope ordering.Scope) ([]model.Question, error)

	GetExam(ctx context.Context, p policy.Predicate, id string) (model.Exam, error)
	GetPretest(ctx context.Context, p policy.Predicate, id string) (model.Pretest, error)

	StartAttempt(ctx context.Context, a *model.ExamAttempt, maxAttempts int) error
	AttemptByID(ctx context.Context, id string) (model.ExamAttempt, error)
	AttemptsForPretest(ctx context.Context, userID, pretestID string) ([]model.ExamAttempt, error)
	CompleteAttempt(ctx context.Context, id string, score int, at time.Time) error

	InsertAnswer(ctx context.Context, a *model.ExamAnswer) error
	UpdateAnswer(ctx context.Context, a *model.ExamAnswer) error
	AnswerByID(ctx context.Context, id string) (model.ExamAnswer, error)
	AnswersForAttempts(ctx context.Context, attemptIDs ...string) ([]model.ExamAnswer, error)
}

// Engine submits answers and evaluates attempts.
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine creates an Engine over store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// SubmitAnswer records actor's selection for one question of an attempt,
// freezing the option that is correct right now.
func (e *Engine) SubmitAnswer(ctx context.Context, actor model.Actor, attemptID, selectedOptionID, answerText string) (model.ExamAnswer, error) {
	option, err := e.store.OptionByID(ctx, selectedOptionID)
	if err != nil {
		return model.ExamAnswer{}, err
	}
	question, err := e.store.QuestionByID(ctx, option.QuestionID)
	if err != nil {
		return model.ExamAnswer{}, err
	}
	correct, err := e.store.CorrectOption(ctx, question.ID)
	if err != nil {
		return model.ExamAnswer{}, err
	}
	attempt, err := e.openAttempt(ctx, actor, attemptID)
	if err != nil {
		return model.ExamAnswer{}, err
	}
	if !sameParent(attempt, question) {
		return model.ExamAnswer{}, fmt.Errorf("%w: question %s in attempt %s", model.ErrNotFound, question.ID, attempt.ID)
	}

	answer := model.ExamAnswer{
		AttemptID:        attempt.ID,
		QuestionID:       question.ID,
		SelectedOptionID: option.ID,
		CorrectOptionID:  correct.ID,
		AnswerText:       answerText,
	}
	if err := e.store.InsertAnswer(ctx, &answer); err != nil {
		return model.ExamAnswer{}, err
	}
	slog.Debug("answer submitted", "attempt_id", attempt.ID, "question_id", question.ID, "correct", answer.IsCorrect())
	return answer, nil
}

// UpdateAnswer changes the selected option of an existing answer. The
// snapshot is kept while the answer stays on the same question and retaken
// only when the new option belongs to a different one.
func (e *Engine) UpdateAnswer(ctx context.Context, actor model.Actor, answerID, selectedOptionID, answerText string) (model.ExamAnswer, error) {
	answer, err := e.store.AnswerByID(ctx, answerID)
	if err != nil {
		return model.ExamAnswer{}, err
	}
	attempt, err := e.openAttempt(ctx, actor, answer.AttemptID)
	if err != nil {
		return model.ExamAnswer{}, err
	}
	option, err := e.store.OptionByID(ctx, selectedOptionID)
	if err != nil {
		return model.ExamAnswer{}, err
	}

	if option.QuestionID != answer.QuestionID {
		question, err := e.store.QuestionByID(ctx, option.QuestionID)
		if err != nil {
			return model.ExamAnswer{}, err
		}
		if !sameParent(attempt, question) {
			return model.ExamAnswer{}, fmt.Errorf("%w: question %s in attempt %s", model.ErrNotFound, question.ID, attempt.ID)
		}
		correct, err := e.store.CorrectOption(ctx, question.ID)
		if err != nil {
			return model.ExamAnswer{}, err
		}
		answer.QuestionID = question.ID
		answer.CorrectOptionID = correct.ID
	}
	answer.SelectedOptionID = option.ID
	if answerText != "" {
		answer.AnswerText = answerText
	}
	if err := e.store.UpdateAnswer(ctx, &answer); err != nil {
		return model.ExamAnswer{}, err
	}
	return answer, nil
}

// EvaluatePretest scores actor's answers on a pretest. For each question
// the most recent answer across all of actor's attempts counts.
func (e *Engine) EvaluatePretest(ctx context.Context, actor model.Actor, pretestID string) (Result, error) {
	pred, err := policy.Resolve(actor, policy.KindPretest, "")
	if err != nil {
		return Result{}, err
	}
	pretest, err := e.store.GetPretest(ctx, pred, pretestID)
	if err != nil {
		return Result{}, err
	}
	questions, err := e.store.QuestionsOf(ctx, ordering.PretestQuestions(pretest.ID))
	if err != nil {
		return Result{}, err
	}
	attempts, err := e.store.AttemptsForPretest(ctx, actor.ID, pretest.ID)
	if err != nil {
		return Result{}, err
	}
	ids := make([]string, len(attempts))
	for i, a := range attempts {
		ids[i] = a.ID
	}
	answers, err := e.store.AnswersForAttempts(ctx, ids...)
	if err != nil {
		return Result{}, err
	}
	return Evaluate(questions, Latest(answers), pretest.PassingScore), nil
}

// StartAttempt opens an attempt on exactly one of examID or pretestID.
// The target must be visible to actor and actor must have attempts left.
func (e *Engine) StartAttempt(ctx context.Context, actor model.Actor, examID, pretestID string) (model.ExamAttempt, error) {
	if (examID == "") == (pretestID == "") {
		return model.ExamAttempt{}, fmt.Errorf("%w: exactly one of exam or pretest is required", model.ErrInvalidRange)
	}

	var (
		attempt     = model.ExamAttempt{UserID: actor.ID}
		maxAttempts int
	)
	if examID != "" {
		pred, err := policy.Resolve(actor, policy.KindExam, "")
		if err != nil {
			return model.ExamAttempt{}, err
		}
		exam, err := e.store.GetExam(ctx, pred, examID)
		if err != nil {
			return model.ExamAttempt{}, err
		}
		attempt.ExamID = &exam.ID
		maxAttempts = exam.MaxAttempts
	} else {
		pred, err := policy.Resolve(actor, policy.KindPretest, "")
		if err != nil {
			return model.ExamAttempt{}, err
		}
		pretest, err := e.store.GetPretest(ctx, pred, pretestID)
		if err != nil {
			return model.ExamAttempt{}, err
		}
		attempt.PretestID = &pretest.ID
		maxAttempts = pretest.MaxAttempts
	}

	if err := e.store.StartAttempt(ctx, &attempt, maxAttempts); err != nil {
		return model.ExamAttempt{}, err
	}
	return attempt, nil
}

// SubmitAttempt closes an attempt and stores its score.
func (e *Engine) SubmitAttempt(ctx context.Context, actor model.Actor, attemptID string) (model.ExamAttempt, Result, error) {
	attempt, err := e.openAttempt(ctx, actor, attemptID)
	if err != nil {
		return model.ExamAttempt{}, Result{}, err
	}

	scope, passing, err := e.attemptTarget(ctx, actor, attempt)
	if err != nil {
		return model.ExamAttempt{}, Result{}, err
	}
	questions, err := e.store.QuestionsOf(ctx, scope)
	if err != nil {
		return model.ExamAttempt{}, Result{}, err
	}
	answers, err := e.store.AnswersForAttempts(ctx, attempt.ID)
	if err != nil {
		return model.ExamAttempt{}, Result{}, err
	}
	result := Evaluate(questions, Latest(answers), passing)

	at := e.now()
	if err := e.store.CompleteAttempt(ctx, attempt.ID, result.Score, at); err != nil {
		return model.ExamAttempt{}, Result{}, err
	}
	attempt.Score = result.Score
	attempt.Status = model.AttemptSubmitted
	attempt.SubmittedAt = &at
	return attempt, result, nil
}

// openAttempt loads an attempt that actor owns and can still answer.
// Someone else's attempt is reported as missing.
func (e *Engine) openAttempt(ctx context.Context, actor model.Actor, attemptID string) (model.ExamAttempt, error) {
	attempt, err := e.store.AttemptByID(ctx, attemptID)
	if err != nil {
		return model.ExamAttempt{}, err
	}
	if attempt.UserID != actor.ID {
		return model.ExamAttempt{}, fmt.Errorf("%w: attempt %s", model.ErrNotFound, attemptID)
	}
	if attempt.Status != model.AttemptInProgress {
		return model.ExamAttempt{}, fmt.Errorf("%w: attempt %s is already submitted", model.ErrConflict, attemptID)
	}
	return attempt, nil
}

func (e *Engine) attemptTarget(ctx context.Context, actor model.Actor, a model.ExamAttempt) (ordering.Scope, int, error) {
	if a.ExamID != nil {
		pred, err := policy.Resolve(actor, policy.KindExam, "")
		if err != nil {
			return ordering.Scope{}, 0, err
		}
		exam, err := e.store.GetExam(ctx, pred, *a.ExamID)
		if err != nil {
			return ordering.Scope{}, 0, err
		}
		return ordering.ExamQuestions(exam.ID), exam.PassingScore, nil
	}
	pred, err := policy.Resolve(actor, policy.KindPretest, "")
	if err != nil {
		return ordering.Scope{}, 0, err
	}
	pretest, err := e.store.GetPretest(ctx, pred, *a.PretestID)
	if err != nil {
		return ordering.Scope{}, 0, err
	}
	return ordering.PretestQuestions(pretest.ID), pretest.PassingScore, nil
}

func sameParent(a model.ExamAttempt, q model.Question) bool {
	switch {
	case a.ExamID != nil && q.ExamID != nil:
		return *a.ExamID == *q.ExamID
	case a.PretestID != nil && q.PretestID != nil:
		return *a.PretestID == *q.PretestID
	}
	return false
}
