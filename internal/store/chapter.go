package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/ordering"
	"github.com/pavelanni/coursecore/internal/pagination"
	"github.com/pavelanni/coursecore/internal/policy"
)

const chapterCols = `ch.id, ch.module_id, ch.title, ch.description, ch.content, ch.video_key,
	ch.order_index, ch.is_preview, ch.summary, ch.created_at, ch.updated_at`

func scanChapter(r rowScanner) (model.Chapter, error) {
	var ch model.Chapter
	err := r.Scan(&ch.ID, &ch.ModuleID, &ch.Title, &ch.Description, &ch.Content, &ch.VideoKey,
		&ch.OrderIndex, &ch.IsPreview, &ch.Summary, &ch.CreatedAt, &ch.UpdatedAt)
	return ch, err
}

// FindChapters returns the page of chapters p admits, ordered by index.
func (s *Store) FindChapters(ctx context.Context, p policy.Predicate, params pagination.Params) (pagination.Page[model.Chapter], error) {
	return findPage(ctx, s.runner, p, params, chapterCols, "", scanChapter)
}

// GetChapter returns one chapter if p admits it.
func (s *Store) GetChapter(ctx context.Context, p policy.Predicate, id string) (model.Chapter, error) {
	return findOne(ctx, s.runner, p, id, chapterCols, scanChapter)
}

// ChapterByID returns a chapter without any access filtering.
func (s *Store) ChapterByID(ctx context.Context, id string) (model.Chapter, error) {
	ch, err := scanChapter(s.queryRow(ctx, `SELECT `+chapterCols+` FROM chapters ch WHERE ch.id = ?`, id))
	if err != nil {
		return ch, fmt.Errorf("chapter %s: %w", id, mapErr(err))
	}
	return ch, nil
}

// SetChapterSummary stores a generated summary.
func (s *Store) SetChapterSummary(ctx context.Context, id, summary string) error {
	res, err := s.exec(ctx, `UPDATE chapters SET summary = ?, updated_at = ? WHERE id = ?`, summary, now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: chapter %s", model.ErrNotFound, id)
	}
	return nil
}

// InsertChapter stores ch at index within the transaction's module.
func (tx *Tx) InsertChapter(ctx context.Context, ch *model.Chapter, index int) error {
	if err := tx.requireScope(ordering.ScopeChapters); err != nil {
		return err
	}
	if ch.ID == "" {
		ch.ID = newID()
	}
	ch.ModuleID = tx.scope.ParentID
	ch.OrderIndex = index
	ch.CreatedAt = now()
	ch.UpdatedAt = ch.CreatedAt
	_, err := tx.exec(ctx,
		`INSERT INTO chapters (id, module_id, title, description, content, video_key, order_index, is_preview, summary, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ch.ID, ch.ModuleID, ch.Title, ch.Description, ch.Content, ch.VideoKey,
		ch.OrderIndex, ch.IsPreview, ch.Summary, ch.CreatedAt, ch.UpdatedAt,
	)
	if err != nil {
		slog.Error("failed to create chapter", "module_id", ch.ModuleID, "error", err)
		return err
	}
	slog.Info("created chapter", "id", ch.ID, "module_id", ch.ModuleID, "order_index", index)
	return nil
}

// UpdateChapter rewrites the chapter's content fields. Order is left to
// the ordering manager.
func (tx *Tx) UpdateChapter(ctx context.Context, ch model.Chapter) error {
	if err := tx.requireScope(ordering.ScopeChapters); err != nil {
		return err
	}
	res, err := tx.exec(ctx,
		`UPDATE chapters SET title = ?, description = ?, content = ?, video_key = ?, is_preview = ?, updated_at = ?
		 WHERE id = ? AND module_id = ?`,
		ch.Title, ch.Description, ch.Content, ch.VideoKey, ch.IsPreview, now(), ch.ID, tx.scope.ParentID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: chapter %s", model.ErrNotFound, ch.ID)
	}
	return nil
}

// DeleteChapter removes a chapter from the transaction's module.
func (tx *Tx) DeleteChapter(ctx context.Context, id string) error {
	if err := tx.requireScope(ordering.ScopeChapters); err != nil {
		return err
	}
	res, err := tx.exec(ctx, `DELETE FROM chapters WHERE id = ? AND module_id = ?`, id, tx.scope.ParentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: chapter %s", model.ErrNotFound, id)
	}
	slog.Info("deleted chapter", "id", id, "module_id", tx.scope.ParentID)
	return nil
}
