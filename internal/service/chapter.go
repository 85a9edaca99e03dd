package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/ordering"
	"github.com/pavelanni/coursecore/internal/pagination"
	"github.com/pavelanni/coursecore/internal/policy"
	"github.com/pavelanni/coursecore/internal/store"
)

// ChapterInput is the payload for creating a chapter. OrderIndex 0 appends.
type ChapterInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	VideoKey    string `json:"video_key"`
	IsPreview   bool   `json:"is_preview"`
	OrderIndex  int    `json:"order_index"`
}

// ChapterPatch is a partial chapter update. A non-zero OrderIndex moves
// the chapter, swapping with the one already there.
type ChapterPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Content     *string `json:"content"`
	VideoKey    *string `json:"video_key"`
	IsPreview   *bool   `json:"is_preview"`
	OrderIndex  int     `json:"order_index"`
}

// ListChapters returns the chapters actor may see. moduleID, when set,
// restricts the listing to one module.
func (s *Service) ListChapters(ctx context.Context, actor model.Actor, moduleID, search string, params pagination.Params) (pagination.Page[model.Chapter], error) {
	var path []policy.Cond
	if moduleID != "" {
		path = append(path, policy.Eq(policy.FieldModuleID, moduleID))
	}
	p, err := policy.Resolve(actor, policy.KindChapter, search, path...)
	if err != nil {
		return pagination.Page[model.Chapter]{}, err
	}
	return s.store.FindChapters(ctx, p, params)
}

// GetChapter returns a chapter actor may see.
func (s *Service) GetChapter(ctx context.Context, actor model.Actor, id string) (model.Chapter, error) {
	p, err := policy.Resolve(actor, policy.KindChapter, "")
	if err != nil {
		return model.Chapter{}, err
	}
	return s.store.GetChapter(ctx, p, id)
}

// CreateChapter adds a chapter to a module actor owns.
func (s *Service) CreateChapter(ctx context.Context, actor model.Actor, moduleID string, in ChapterInput) (model.Chapter, error) {
	if in.Title == "" {
		return model.Chapter{}, fmt.Errorf("%w: title is required", model.ErrInvalidRange)
	}
	if err := s.assertModuleOwnership(ctx, actor, moduleID); err != nil {
		return model.Chapter{}, err
	}
	ch := model.Chapter{
		Title:       in.Title,
		Description: in.Description,
		Content:     in.Content,
		VideoKey:    in.VideoKey,
		IsPreview:   in.IsPreview,
	}
	_, err := s.order.Create(ctx, ordering.Chapters(moduleID), in.OrderIndex, func(tx *store.Tx, idx int) error {
		return tx.InsertChapter(ctx, &ch, idx)
	})
	if err != nil {
		return model.Chapter{}, err
	}
	return ch, nil
}

// UpdateChapter applies patch to a chapter actor owns.
func (s *Service) UpdateChapter(ctx context.Context, actor model.Actor, id string, patch ChapterPatch) (model.Chapter, error) {
	ch, err := s.store.ChapterByID(ctx, id)
	if err != nil {
		return model.Chapter{}, err
	}
	if err := s.AssertOwnership(ctx, actor, policy.KindChapter, id); err != nil {
		return model.Chapter{}, err
	}
	if patch.Title != nil {
		ch.Title = *patch.Title
	}
	if patch.Description != nil {
		ch.Description = *patch.Description
	}
	if patch.Content != nil {
		ch.Content = *patch.Content
	}
	if patch.VideoKey != nil {
		ch.VideoKey = *patch.VideoKey
	}
	if patch.IsPreview != nil {
		ch.IsPreview = *patch.IsPreview
	}
	err = s.order.Move(ctx, ordering.Chapters(ch.ModuleID), id, patch.OrderIndex, func(tx *store.Tx) error {
		return tx.UpdateChapter(ctx, ch)
	})
	if err != nil {
		return model.Chapter{}, err
	}
	return s.store.ChapterByID(ctx, id)
}

// DeleteChapter removes a chapter and closes the gap it leaves.
func (s *Service) DeleteChapter(ctx context.Context, actor model.Actor, id string) error {
	ch, err := s.store.ChapterByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.AssertOwnership(ctx, actor, policy.KindChapter, id); err != nil {
		return err
	}
	return s.order.Delete(ctx, ordering.Chapters(ch.ModuleID), func(tx *store.Tx) error {
		return tx.DeleteChapter(ctx, id)
	})
}

// ReorderChapters compacts a module's chapter indices to 1..N.
func (s *Service) ReorderChapters(ctx context.Context, actor model.Actor, moduleID string) error {
	if err := s.assertModuleOwnership(ctx, actor, moduleID); err != nil {
		return err
	}
	return s.order.Reorder(ctx, ordering.Chapters(moduleID))
}

// SummarizeChapter asks the configured summarizer for a chapter summary and
// stores it. Nothing is written unless the whole call succeeds.
func (s *Service) SummarizeChapter(ctx context.Context, actor model.Actor, id string) (model.Chapter, error) {
	ch, err := s.store.ChapterByID(ctx, id)
	if err != nil {
		return model.Chapter{}, err
	}
	if err := s.AssertOwnership(ctx, actor, policy.KindChapter, id); err != nil {
		return model.Chapter{}, err
	}
	if s.summarizer == nil {
		return model.Chapter{}, &model.UpstreamError{Op: "summarize", Payload: "no summarizer configured"}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.summarizeTimeout)
	defer cancel()
	summary, err := s.summarizer.Summarize(callCtx, ch)
	if err != nil {
		slog.Error("chapter summarization failed", "chapter_id", id, "error", err)
		if errors.Is(err, model.ErrUpstream) {
			return model.Chapter{}, err
		}
		return model.Chapter{}, &model.UpstreamError{Op: "summarize", Err: err}
	}
	if summary == "" {
		return model.Chapter{}, &model.UpstreamError{Op: "summarize", Payload: "empty summary"}
	}

	if err := s.store.SetChapterSummary(ctx, id, summary); err != nil {
		return model.Chapter{}, err
	}
	slog.Info("chapter summarized", "chapter_id", id, "length", len(summary))
	ch.Summary = summary
	return ch, nil
}
