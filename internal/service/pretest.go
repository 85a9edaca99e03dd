package service

import (
	"context"
	"fmt"

	"github.com/pavelanni/coursecore/internal/grading"
	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/pagination"
	"github.com/pavelanni/coursecore/internal/policy"
)

// PretestInput is the payload for creating a pretest.
type PretestInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	PassingScore int    `json:"passing_score"`
	MaxAttempts  int    `json:"max_attempts"`
	TimeLimit    int    `json:"time_limit"`
}

// ListPretests lists the pretests actor may see.
func (s *Service) ListPretests(ctx context.Context, actor model.Actor, search string, params pagination.Params) (pagination.Page[model.Pretest], error) {
	p, err := policy.Resolve(actor, policy.KindPretest, search)
	if err != nil {
		return pagination.Page[model.Pretest]{}, err
	}
	return s.store.FindPretests(ctx, p, params)
}

// GetPretest returns a pretest actor may see.
func (s *Service) GetPretest(ctx context.Context, actor model.Actor, id string) (model.Pretest, error) {
	p, err := policy.Resolve(actor, policy.KindPretest, "")
	if err != nil {
		return model.Pretest{}, err
	}
	return s.store.GetPretest(ctx, p, id)
}

// CreatePretest creates a pretest owned by actor.
func (s *Service) CreatePretest(ctx context.Context, actor model.Actor, in PretestInput) (model.Pretest, error) {
	if _, err := policy.Resolve(actor, policy.KindPretest, ""); err != nil {
		return model.Pretest{}, err
	}
	if in.Title == "" {
		return model.Pretest{}, fmt.Errorf("%w: title is required", model.ErrInvalidRange)
	}
	if err := validScore(in.PassingScore); err != nil {
		return model.Pretest{}, err
	}
	p := model.Pretest{
		UserID:       actor.ID,
		Title:        in.Title,
		Description:  in.Description,
		PassingScore: in.PassingScore,
		MaxAttempts:  in.MaxAttempts,
		TimeLimit:    in.TimeLimit,
	}
	if err := s.store.CreatePretest(ctx, &p); err != nil {
		return model.Pretest{}, err
	}
	return p, nil
}

// StartPretest opens an attempt on a pretest actor owns.
func (s *Service) StartPretest(ctx context.Context, actor model.Actor, pretestID string) (model.ExamAttempt, error) {
	return s.grading.StartAttempt(ctx, actor, "", pretestID)
}

// EvaluatePretest scores actor's latest answers on a pretest.
func (s *Service) EvaluatePretest(ctx context.Context, actor model.Actor, pretestID string) (grading.Result, error) {
	return s.grading.EvaluatePretest(ctx, actor, pretestID)
}
