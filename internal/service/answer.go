package service

import (
	"context"

	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/pagination"
	"github.com/pavelanni/coursecore/internal/policy"
)

// AnswerFilter narrows an answer listing. Empty fields are ignored.
type AnswerFilter struct {
	AttemptID        string
	QuestionID       string
	SelectedOptionID string
	Search           string
}

func (f AnswerFilter) conds() []policy.Cond {
	var out []policy.Cond
	if f.AttemptID != "" {
		out = append(out, policy.Eq(policy.FieldAttemptID, f.AttemptID))
	}
	if f.QuestionID != "" {
		out = append(out, policy.Eq(policy.FieldQuestionID, f.QuestionID))
	}
	if f.SelectedOptionID != "" {
		out = append(out, policy.Eq(policy.FieldSelectedOption, f.SelectedOptionID))
	}
	return out
}

// ListAnswers lists the answers actor may see.
func (s *Service) ListAnswers(ctx context.Context, actor model.Actor, f AnswerFilter, params pagination.Params) (pagination.Page[model.ExamAnswer], error) {
	p, err := policy.Resolve(actor, policy.KindExamAnswer, f.Search, f.conds()...)
	if err != nil {
		return pagination.Page[model.ExamAnswer]{}, err
	}
	return s.store.FindAnswers(ctx, p, params)
}

// GetAnswer returns one answer actor may see.
func (s *Service) GetAnswer(ctx context.Context, actor model.Actor, id string) (model.ExamAnswer, error) {
	p, err := policy.Resolve(actor, policy.KindExamAnswer, "")
	if err != nil {
		return model.ExamAnswer{}, err
	}
	return s.store.GetAnswer(ctx, p, id)
}

// SubmitAnswer records actor's answer in one of their open attempts.
func (s *Service) SubmitAnswer(ctx context.Context, actor model.Actor, attemptID, selectedOptionID, answerText string) (model.ExamAnswer, error) {
	return s.grading.SubmitAnswer(ctx, actor, attemptID, selectedOptionID, answerText)
}

// UpdateAnswer changes the selection of an answer actor owns.
func (s *Service) UpdateAnswer(ctx context.Context, actor model.Actor, answerID, selectedOptionID, answerText string) (model.ExamAnswer, error) {
	return s.grading.UpdateAnswer(ctx, actor, answerID, selectedOptionID, answerText)
}
