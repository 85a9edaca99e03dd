package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/ordering"
)

// scopeTables maps a sibling set to its parent table, child table and the
// child column holding the parent id.
var scopeTables = map[ordering.ScopeKind]struct{ parent, child, fk string }{
	ordering.ScopeChapters:         {"course_modules", "chapters", "module_id"},
	ordering.ScopeExamQuestions:    {"exams", "questions", "exam_id"},
	ordering.ScopePretestQuestions: {"pretests", "questions", "pretest_id"},
}

// Tx is a transaction bound to one sibling set. It implements ordering.Tx.
type Tx struct {
	runner
	scope ordering.Scope
}

var _ ordering.Scoper[*Tx] = (*Store)(nil)

// WithinScope runs fn in a transaction that holds the write lock for scope.
// SQLite transactions begin IMMEDIATE; on Postgres the parent row is locked
// with SELECT ... FOR UPDATE. A missing parent yields model.ErrNotFound.
func (s *Store) WithinScope(ctx context.Context, scope ordering.Scope, fn func(tx *Tx) error) error {
	tables, ok := scopeTables[scope.Kind]
	if !ok {
		return fmt.Errorf("unknown scope kind %q", scope.Kind)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", scope, err)
	}
	defer sqlTx.Rollback()

	tx := &Tx{runner: runner{q: sqlTx, dialect: s.dialect}, scope: scope}

	var parentID string
	if err := tx.queryRow(ctx, s.dialect.lockParent(tables.parent), scope.ParentID).Scan(&parentID); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s parent %s", model.ErrNotFound, scope.Kind, scope.ParentID)
		}
		return mapErr(err)
	}

	if err := fn(tx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// lockParent selects a parent row so that concurrent writers to the same
// sibling set queue behind each other.
func (d Dialect) lockParent(table string) string {
	q := `SELECT id FROM ` + table + ` WHERE id = ?`
	if d == DialectPostgres {
		q += ` FOR UPDATE`
	}
	return q
}

// Scope returns the sibling set the transaction is bound to.
func (tx *Tx) Scope() ordering.Scope {
	return tx.scope
}

// Siblings implements ordering.Tx.
func (tx *Tx) Siblings(ctx context.Context) ([]ordering.Sibling, error) {
	t := scopeTables[tx.scope.Kind]
	rows, err := tx.query(ctx,
		`SELECT id, order_index FROM `+t.child+` WHERE `+t.fk+` = ? ORDER BY order_index, id`,
		tx.scope.ParentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ordering.Sibling
	for rows.Next() {
		var s ordering.Sibling
		if err := rows.Scan(&s.ID, &s.Index); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Assign implements ordering.Tx. Rows are first parked on negative indices
// so a swap never trips the per-parent unique index.
func (tx *Tx) Assign(ctx context.Context, indices map[string]int) error {
	t := scopeTables[tx.scope.Kind]
	update := `UPDATE ` + t.child + ` SET order_index = ? WHERE id = ? AND ` + t.fk + ` = ?`

	for id, idx := range indices {
		if _, err := tx.exec(ctx, update, -idx, id, tx.scope.ParentID); err != nil {
			return fmt.Errorf("park %s: %w", id, err)
		}
	}
	for id, idx := range indices {
		res, err := tx.exec(ctx, update, idx, id, tx.scope.ParentID)
		if err != nil {
			return fmt.Errorf("assign %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s not in %s", model.ErrNotFound, id, tx.scope)
		}
	}
	slog.Debug("assigned order indices", "scope", tx.scope.String(), "count", len(indices))
	return nil
}

// requireScope guards helpers that only make sense for one kind of set.
func (tx *Tx) requireScope(kinds ...ordering.ScopeKind) error {
	for _, k := range kinds {
		if tx.scope.Kind == k {
			return nil
		}
	}
	return fmt.Errorf("operation not valid in scope %s", tx.scope)
}
