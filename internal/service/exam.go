package service

import (
	"context"
	"fmt"

	"github.com/pavelanni/coursecore/internal/grading"
	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/pagination"
	"github.com/pavelanni/coursecore/internal/policy"
)

// ExamInput is the payload for attaching an exam to a module.
type ExamInput struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	TimeLimit        int    `json:"time_limit"`
	PassingScore     int    `json:"passing_score"`
	MaxAttempts      int    `json:"max_attempts"`
	ShuffleQuestions bool   `json:"shuffle_questions"`
}

func validScore(passing int) error {
	if passing < 0 || passing > 100 {
		return fmt.Errorf("%w: passing score must be between 0 and 100, got %d", model.ErrInvalidRange, passing)
	}
	return nil
}

// ListExams lists the exams actor may see, optionally within one module.
func (s *Service) ListExams(ctx context.Context, actor model.Actor, moduleID, search string, params pagination.Params) (pagination.Page[model.Exam], error) {
	var path []policy.Cond
	if moduleID != "" {
		path = append(path, policy.Eq(policy.FieldModuleID, moduleID))
	}
	p, err := policy.Resolve(actor, policy.KindExam, search, path...)
	if err != nil {
		return pagination.Page[model.Exam]{}, err
	}
	return s.store.FindExams(ctx, p, params)
}

// GetExam returns an exam actor may see.
func (s *Service) GetExam(ctx context.Context, actor model.Actor, id string) (model.Exam, error) {
	p, err := policy.Resolve(actor, policy.KindExam, "")
	if err != nil {
		return model.Exam{}, err
	}
	return s.store.GetExam(ctx, p, id)
}

// CreateExam attaches a draft exam to a module actor owns.
func (s *Service) CreateExam(ctx context.Context, actor model.Actor, moduleID string, in ExamInput) (model.Exam, error) {
	if in.Title == "" {
		return model.Exam{}, fmt.Errorf("%w: title is required", model.ErrInvalidRange)
	}
	if err := validScore(in.PassingScore); err != nil {
		return model.Exam{}, err
	}
	if in.TimeLimit < 0 || in.MaxAttempts < 0 {
		return model.Exam{}, fmt.Errorf("%w: time limit and max attempts must not be negative", model.ErrInvalidRange)
	}
	if err := s.assertModuleOwnership(ctx, actor, moduleID); err != nil {
		return model.Exam{}, err
	}
	e := model.Exam{
		ModuleID:         moduleID,
		Title:            in.Title,
		Description:      in.Description,
		TimeLimit:        in.TimeLimit,
		PassingScore:     in.PassingScore,
		MaxAttempts:      in.MaxAttempts,
		ShuffleQuestions: in.ShuffleQuestions,
	}
	if err := s.store.CreateExam(ctx, &e); err != nil {
		return model.Exam{}, err
	}
	return e, nil
}

// SetExamStatus publishes or withdraws an exam actor owns.
func (s *Service) SetExamStatus(ctx context.Context, actor model.Actor, id string, status model.ExamStatus) (model.Exam, error) {
	if status != model.ExamDraft && status != model.ExamPublished {
		return model.Exam{}, fmt.Errorf("%w: unknown exam status %q", model.ErrInvalidRange, status)
	}
	if err := s.AssertOwnership(ctx, actor, policy.KindExam, id); err != nil {
		return model.Exam{}, err
	}
	if err := s.store.SetExamStatus(ctx, id, status); err != nil {
		return model.Exam{}, err
	}
	return s.store.ExamByID(ctx, id)
}

// StartExam opens an attempt on an exam actor may see.
func (s *Service) StartExam(ctx context.Context, actor model.Actor, examID string) (model.ExamAttempt, error) {
	return s.grading.StartAttempt(ctx, actor, examID, "")
}

// SubmitAttempt closes one of actor's attempts and scores it.
func (s *Service) SubmitAttempt(ctx context.Context, actor model.Actor, attemptID string) (model.ExamAttempt, grading.Result, error) {
	return s.grading.SubmitAttempt(ctx, actor, attemptID)
}

// ExportExam returns every attempt on an exam actor owns.
func (s *Service) ExportExam(ctx context.Context, actor model.Actor, examID string) (model.ExamExport, error) {
	if err := s.AssertOwnership(ctx, actor, policy.KindExam, examID); err != nil {
		return model.ExamExport{}, err
	}
	return s.store.ExportExamResults(ctx, examID)
}
