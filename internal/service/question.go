package service

import (
	"context"
	"fmt"

	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/ordering"
	"github.com/pavelanni/coursecore/internal/pagination"
	"github.com/pavelanni/coursecore/internal/policy"
	"github.com/pavelanni/coursecore/internal/store"
)

// QuestionParent names the exam or pretest a question belongs to.
type QuestionParent struct {
	ExamID    string
	PretestID string
}

func (p QuestionParent) resolve() (policy.Kind, ordering.Scope, policy.Cond, error) {
	switch {
	case p.ExamID != "" && p.PretestID == "":
		return policy.KindQuestion, ordering.ExamQuestions(p.ExamID), policy.Eq(policy.FieldExamID, p.ExamID), nil
	case p.PretestID != "" && p.ExamID == "":
		return policy.KindPretestQuestion, ordering.PretestQuestions(p.PretestID), policy.Eq(policy.FieldPretestID, p.PretestID), nil
	}
	return "", ordering.Scope{}, policy.Cond{}, fmt.Errorf("%w: exactly one of exam or pretest is required", model.ErrInvalidRange)
}

// QuestionDetail is a question together with its options. Options of exam
// questions shown to students carry no correctness data.
type QuestionDetail struct {
	model.Question
	Options []model.QuestionOption `json:"options"`
}

// OptionInput is one option of a new question.
type OptionInput struct {
	Text        string `json:"option_text"`
	IsCorrect   bool   `json:"is_correct"`
	Explanation string `json:"explanation"`
}

// QuestionInput is the payload for creating a question. OrderIndex 0 appends.
type QuestionInput struct {
	Text       string             `json:"question"`
	Type       model.QuestionType `json:"type"`
	Points     int                `json:"points"`
	OrderIndex int                `json:"order_index"`
	Options    []OptionInput      `json:"options"`
}

// QuestionPatch is a partial question update.
type QuestionPatch struct {
	Text       *string             `json:"question"`
	Type       *model.QuestionType `json:"type"`
	Points     *int                `json:"points"`
	OrderIndex int                 `json:"order_index"`
}

// OptionPatch is a partial option update. Answers already given keep the
// correctness they were graded with.
type OptionPatch struct {
	Text        *string `json:"option_text"`
	IsCorrect   *bool   `json:"is_correct"`
	Explanation *string `json:"explanation"`
}

func validQuestionType(t model.QuestionType) bool {
	switch t {
	case "", model.QuestionMultipleChoice, model.QuestionTrueFalse:
		return true
	}
	return false
}

// ListQuestions lists the questions of one exam or pretest that actor may see.
// Exams with shuffling enabled return their questions in random order.
func (s *Service) ListQuestions(ctx context.Context, actor model.Actor, parent QuestionParent, search string, params pagination.Params) (pagination.Page[model.Question], error) {
	kind, _, path, err := parent.resolve()
	if err != nil {
		return pagination.Page[model.Question]{}, err
	}
	p, err := policy.Resolve(actor, kind, search, path)
	if err != nil {
		return pagination.Page[model.Question]{}, err
	}

	shuffle := false
	if parent.ExamID != "" {
		examPred, err := policy.Resolve(actor, policy.KindExam, "")
		if err != nil {
			return pagination.Page[model.Question]{}, err
		}
		exam, err := s.store.GetExam(ctx, examPred, parent.ExamID)
		if err != nil {
			return pagination.Page[model.Question]{}, err
		}
		shuffle = exam.ShuffleQuestions
	}
	return s.store.FindQuestions(ctx, p, params, shuffle)
}

// GetQuestion returns a question with its options if actor may see it.
func (s *Service) GetQuestion(ctx context.Context, actor model.Actor, id string) (QuestionDetail, error) {
	q, kind, err := s.questionKind(ctx, id)
	if err != nil {
		return QuestionDetail{}, err
	}
	p, err := policy.Resolve(actor, kind, "")
	if err != nil {
		return QuestionDetail{}, err
	}
	if q, err = s.store.GetQuestion(ctx, p, id); err != nil {
		return QuestionDetail{}, err
	}
	opts, err := s.store.OptionsForQuestion(ctx, id)
	if err != nil {
		return QuestionDetail{}, err
	}
	if actor.Role == model.UserRoleStudent && kind == policy.KindQuestion {
		for i := range opts {
			opts[i].IsCorrect = false
			opts[i].Explanation = ""
		}
	}
	return QuestionDetail{Question: q, Options: opts}, nil
}

// defaultPoints is the weight of a question created without one.
const defaultPoints = 1

// CreateQuestion adds a question with its options to an exam or pretest
// actor owns.
func (s *Service) CreateQuestion(ctx context.Context, actor model.Actor, parent QuestionParent, in QuestionInput) (QuestionDetail, error) {
	_, scope, _, err := parent.resolve()
	if err != nil {
		return QuestionDetail{}, err
	}
	if in.Text == "" {
		return QuestionDetail{}, fmt.Errorf("%w: question text is required", model.ErrInvalidRange)
	}
	if !validQuestionType(in.Type) {
		return QuestionDetail{}, fmt.Errorf("%w: unknown question type %q", model.ErrInvalidRange, in.Type)
	}
	if in.Points == 0 {
		in.Points = defaultPoints
	}
	if in.Points < 1 {
		return QuestionDetail{}, fmt.Errorf("%w: points must be at least 1, got %d", model.ErrInvalidRange, in.Points)
	}
	if parent.ExamID != "" {
		err = s.AssertOwnership(ctx, actor, policy.KindExam, parent.ExamID)
	} else {
		err = s.AssertOwnership(ctx, actor, policy.KindPretest, parent.PretestID)
	}
	if err != nil {
		return QuestionDetail{}, err
	}

	q := model.Question{Text: in.Text, Type: in.Type, Points: in.Points}
	opts := make([]model.QuestionOption, len(in.Options))
	for i, o := range in.Options {
		opts[i] = model.QuestionOption{Text: o.Text, IsCorrect: o.IsCorrect, Explanation: o.Explanation}
	}
	_, err = s.order.Create(ctx, scope, in.OrderIndex, func(tx *store.Tx, idx int) error {
		return tx.InsertQuestion(ctx, &q, opts, idx)
	})
	if err != nil {
		return QuestionDetail{}, err
	}
	return QuestionDetail{Question: q, Options: opts}, nil
}

// UpdateQuestion applies patch to a question actor owns.
func (s *Service) UpdateQuestion(ctx context.Context, actor model.Actor, id string, patch QuestionPatch) (model.Question, error) {
	q, kind, err := s.questionKind(ctx, id)
	if err != nil {
		return model.Question{}, err
	}
	if err := s.AssertOwnership(ctx, actor, kind, id); err != nil {
		return model.Question{}, err
	}
	if patch.Text != nil {
		q.Text = *patch.Text
	}
	if patch.Type != nil {
		if !validQuestionType(*patch.Type) {
			return model.Question{}, fmt.Errorf("%w: unknown question type %q", model.ErrInvalidRange, *patch.Type)
		}
		q.Type = *patch.Type
	}
	if patch.Points != nil {
		if *patch.Points < 1 {
			return model.Question{}, fmt.Errorf("%w: points must be at least 1, got %d", model.ErrInvalidRange, *patch.Points)
		}
		q.Points = *patch.Points
	}
	err = s.order.Move(ctx, questionScope(q), id, patch.OrderIndex, func(tx *store.Tx) error {
		return tx.UpdateQuestion(ctx, q)
	})
	if err != nil {
		return model.Question{}, err
	}
	return s.store.QuestionByID(ctx, id)
}

// UpdateOption edits one option of a question actor owns.
func (s *Service) UpdateOption(ctx context.Context, actor model.Actor, optionID string, patch OptionPatch) (model.QuestionOption, error) {
	o, err := s.store.OptionByID(ctx, optionID)
	if err != nil {
		return model.QuestionOption{}, err
	}
	_, kind, err := s.questionKind(ctx, o.QuestionID)
	if err != nil {
		return model.QuestionOption{}, err
	}
	if err := s.AssertOwnership(ctx, actor, kind, o.QuestionID); err != nil {
		return model.QuestionOption{}, err
	}
	if patch.Text != nil {
		o.Text = *patch.Text
	}
	if patch.IsCorrect != nil {
		o.IsCorrect = *patch.IsCorrect
	}
	if patch.Explanation != nil {
		o.Explanation = *patch.Explanation
	}
	if err := s.store.UpdateOption(ctx, o); err != nil {
		return model.QuestionOption{}, err
	}
	return o, nil
}

// DeleteQuestion removes a question and re-compacts its siblings.
func (s *Service) DeleteQuestion(ctx context.Context, actor model.Actor, id string) error {
	q, kind, err := s.questionKind(ctx, id)
	if err != nil {
		return err
	}
	if err := s.AssertOwnership(ctx, actor, kind, id); err != nil {
		return err
	}
	return s.order.Delete(ctx, questionScope(q), func(tx *store.Tx) error {
		return tx.DeleteQuestion(ctx, id)
	})
}

// ReorderQuestions compacts the question indices of an exam or pretest.
func (s *Service) ReorderQuestions(ctx context.Context, actor model.Actor, parent QuestionParent) error {
	_, scope, _, err := parent.resolve()
	if err != nil {
		return err
	}
	if parent.ExamID != "" {
		err = s.AssertOwnership(ctx, actor, policy.KindExam, parent.ExamID)
	} else {
		err = s.AssertOwnership(ctx, actor, policy.KindPretest, parent.PretestID)
	}
	if err != nil {
		return err
	}
	return s.order.Reorder(ctx, scope)
}

func (s *Service) questionKind(ctx context.Context, id string) (model.Question, policy.Kind, error) {
	q, err := s.store.QuestionByID(ctx, id)
	if err != nil {
		return model.Question{}, "", err
	}
	if q.ExamID != nil {
		return q, policy.KindQuestion, nil
	}
	return q, policy.KindPretestQuestion, nil
}

func questionScope(q model.Question) ordering.Scope {
	if q.ExamID != nil {
		return ordering.ExamQuestions(*q.ExamID)
	}
	return ordering.PretestQuestions(*q.PretestID)
}
