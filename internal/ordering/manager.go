package ordering

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/coursecore/internal/model"
)

// ScopeKind identifies which sibling set a scope addresses.
type ScopeKind string

const (
	ScopeChapters         ScopeKind = "chapters"
	ScopeExamQuestions    ScopeKind = "exam_questions"
	ScopePretestQuestions ScopeKind = "pretest_questions"
)

// Scope is one sibling set, keyed by its parent.
type Scope struct {
	Kind     ScopeKind
	ParentID string
}

// Chapters is the sibling set of chapters in a module.
func Chapters(moduleID string) Scope { return Scope{Kind: ScopeChapters, ParentID: moduleID} }

// ExamQuestions is the sibling set of questions in an exam.
func ExamQuestions(examID string) Scope { return Scope{Kind: ScopeExamQuestions, ParentID: examID} }

// PretestQuestions is the sibling set of questions in a pretest.
func PretestQuestions(pretestID string) Scope {
	return Scope{Kind: ScopePretestQuestions, ParentID: pretestID}
}

func (s Scope) String() string { return string(s.Kind) + "/" + s.ParentID }

// Tx is a storage transaction bound to one scope.
type Tx interface {
	// Siblings returns the scope's records ordered by ascending index.
	Siblings(ctx context.Context) ([]Sibling, error)
	// Assign writes the given indices in one batch.
	Assign(ctx context.Context, indices map[string]int) error
}

// Scoper runs fn inside a transaction that serializes all writers of scope.
type Scoper[T Tx] interface {
	WithinScope(ctx context.Context, scope Scope, fn func(tx T) error) error
}

// Manager is the only writer of order indices.
type Manager[T Tx] struct {
	store Scoper[T]
}

// NewManager creates a Manager over store.
func NewManager[T Tx](store Scoper[T]) *Manager[T] {
	return &Manager[T]{store: store}
}

// Create assigns an index to a new sibling and calls insert with it inside
// the scope's transaction. explicit == 0 appends; otherwise explicit must lie
// in [1, max+1] and must not be taken.
func (m *Manager[T]) Create(ctx context.Context, scope Scope, explicit int, insert func(tx T, index int) error) (int, error) {
	var assigned int
	err := m.store.WithinScope(ctx, scope, func(tx T) error {
		siblings, err := tx.Siblings(ctx)
		if err != nil {
			return err
		}
		next := NextIndex(siblings)
		assigned = next
		if explicit != 0 {
			if explicit < 1 || explicit > next {
				return fmt.Errorf("%w: order index must be between 1 and %d, got %d", model.ErrInvalidRange, next, explicit)
			}
			for _, s := range siblings {
				if s.Index == explicit {
					return fmt.Errorf("%w: order index %d already exists in %s", model.ErrConflict, explicit, scope)
				}
			}
			assigned = explicit
		}
		return insert(tx, assigned)
	})
	if err != nil {
		return 0, err
	}
	return assigned, nil
}

// Move relocates id to requested, swapping with the sibling that holds it,
// then runs update (if non-nil) in the same transaction. requested == 0
// leaves the order untouched.
func (m *Manager[T]) Move(ctx context.Context, scope Scope, id string, requested int, update func(tx T) error) error {
	return m.store.WithinScope(ctx, scope, func(tx T) error {
		if requested != 0 {
			siblings, err := tx.Siblings(ctx)
			if err != nil {
				return err
			}
			plan, err := MovePlan(siblings, id, requested)
			if err != nil {
				return err
			}
			if len(plan) > 0 {
				if err := tx.Assign(ctx, plan); err != nil {
					return err
				}
			}
		}
		if update != nil {
			return update(tx)
		}
		return nil
	})
}

// Reorder rewrites the scope's indices to 1..N keeping relative order.
func (m *Manager[T]) Reorder(ctx context.Context, scope Scope) error {
	return m.store.WithinScope(ctx, scope, func(tx T) error {
		return reorder(ctx, scope, tx)
	})
}

// Delete runs remove and re-compacts the remaining siblings atomically.
func (m *Manager[T]) Delete(ctx context.Context, scope Scope, remove func(tx T) error) error {
	return m.store.WithinScope(ctx, scope, func(tx T) error {
		if err := remove(tx); err != nil {
			return err
		}
		return reorder(ctx, scope, tx)
	})
}

func reorder(ctx context.Context, scope Scope, tx Tx) error {
	siblings, err := tx.Siblings(ctx)
	if err != nil {
		return err
	}
	changes := CompactSiblings(siblings)
	if len(changes) == 0 {
		return nil
	}
	slog.Debug("reindexing siblings", "scope", scope.String(), "changed", len(changes), "total", len(siblings))
	return tx.Assign(ctx, changes)
}
