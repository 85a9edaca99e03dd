package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/pagination"
	"github.com/pavelanni/coursecore/internal/policy"
)

// shape is the join path from one resource kind to the ancestors its
// predicate fields live on.
type shape struct {
	from      string
	cols      map[policy.Field]string
	courseCol string
	orderBy   string
}

var courseFields = map[policy.Field]string{
	policy.FieldModuleID:      "m.id",
	policy.FieldCourseID:      "c.id",
	policy.FieldCourseStatus:  "c.status",
	policy.FieldCourseTeacher: "c.teacher_id",
}

func withFields(base map[policy.Field]string, extra map[policy.Field]string) map[policy.Field]string {
	out := make(map[policy.Field]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

var shapes = map[policy.Kind]shape{
	policy.KindChapter: {
		from: `chapters ch
			JOIN course_modules m ON m.id = ch.module_id
			JOIN courses c ON c.id = m.course_id`,
		cols: withFields(courseFields, map[policy.Field]string{
			policy.FieldID:      "ch.id",
			policy.FieldTitle:   "ch.title",
			policy.FieldPreview: "ch.is_preview",
		}),
		courseCol: "c.id",
		orderBy:   "ch.order_index ASC, ch.id ASC",
	},
	policy.KindExam: {
		from: `exams ex
			JOIN course_modules m ON m.id = ex.module_id
			JOIN courses c ON c.id = m.course_id`,
		cols: withFields(courseFields, map[policy.Field]string{
			policy.FieldID:         "ex.id",
			policy.FieldTitle:      "ex.title",
			policy.FieldExamID:     "ex.id",
			policy.FieldExamStatus: "ex.status",
		}),
		courseCol: "c.id",
		orderBy:   "ex.created_at ASC, ex.id ASC",
	},
	policy.KindQuestion: {
		from: `questions q
			JOIN exams ex ON ex.id = q.exam_id
			JOIN course_modules m ON m.id = ex.module_id
			JOIN courses c ON c.id = m.course_id`,
		cols: withFields(courseFields, map[policy.Field]string{
			policy.FieldID:           "q.id",
			policy.FieldQuestionID:   "q.id",
			policy.FieldQuestionText: "q.question",
			policy.FieldExamID:       "ex.id",
			policy.FieldExamStatus:   "ex.status",
		}),
		courseCol: "c.id",
		orderBy:   "q.order_index ASC, q.id ASC",
	},
	policy.KindPretestQuestion: {
		from: `questions q
			JOIN pretests p ON p.id = q.pretest_id`,
		cols: map[policy.Field]string{
			policy.FieldID:           "q.id",
			policy.FieldQuestionID:   "q.id",
			policy.FieldQuestionText: "q.question",
			policy.FieldPretestID:    "p.id",
			policy.FieldPretestOwner: "p.user_id",
		},
		orderBy: "q.order_index ASC, q.id ASC",
	},
	policy.KindPretest: {
		from: `pretests p`,
		cols: map[policy.Field]string{
			policy.FieldID:           "p.id",
			policy.FieldTitle:        "p.title",
			policy.FieldPretestID:    "p.id",
			policy.FieldPretestOwner: "p.user_id",
		},
		orderBy: "p.created_at ASC, p.id ASC",
	},
	// Pretest answers have no course, so the course columns are NULL for them.
	policy.KindExamAnswer: {
		from: `exam_answers a
			JOIN exam_attempts att ON att.id = a.exam_attempt_id
			JOIN questions q ON q.id = a.question_id
			LEFT JOIN exams ex ON ex.id = q.exam_id
			LEFT JOIN course_modules m ON m.id = ex.module_id
			LEFT JOIN courses c ON c.id = m.course_id`,
		cols: withFields(courseFields, map[policy.Field]string{
			policy.FieldID:             "a.id",
			policy.FieldAnswerText:     "a.answer_text",
			policy.FieldAttemptID:      "att.id",
			policy.FieldAttemptOwner:   "att.user_id",
			policy.FieldQuestionID:     "a.question_id",
			policy.FieldSelectedOption: "a.selected_option_id",
			policy.FieldExamID:         "ex.id",
			policy.FieldPretestID:      "q.pretest_id",
		}),
		courseCol: "c.id",
		orderBy:   "a.created_at ASC, a.id ASC",
	},
}

// compiled is a predicate rendered to SQL for one kind.
type compiled struct {
	shape shape
	where string
	args  []any
}

// compile renders p as a WHERE clause. Branches are ORed; conditions inside
// a branch are ANDed. An empty branch matches every row and no branches at
// all matches none.
func compile(p policy.Predicate) (compiled, error) {
	sh, ok := shapes[p.Kind]
	if !ok {
		return compiled{}, fmt.Errorf("no join shape for kind %q", p.Kind)
	}
	if len(p.Branches) == 0 {
		return compiled{shape: sh, where: "1 = 0"}, nil
	}

	var args []any
	ors := make([]string, 0, len(p.Branches))
	for _, b := range p.Branches {
		if len(b) == 0 {
			ors = append(ors, "1 = 1")
			continue
		}
		ands := make([]string, 0, len(b))
		for _, c := range b {
			sqlCond, condArgs, err := compileCond(sh, p.Kind, c)
			if err != nil {
				return compiled{}, err
			}
			ands = append(ands, sqlCond)
			args = append(args, condArgs...)
		}
		ors = append(ors, "("+strings.Join(ands, " AND ")+")")
	}
	return compiled{shape: sh, where: strings.Join(ors, " OR "), args: args}, nil
}

func compileCond(sh shape, kind policy.Kind, c policy.Cond) (string, []any, error) {
	if c.Op == policy.OpEnrolled {
		if sh.courseCol == "" {
			return "", nil, fmt.Errorf("kind %q has no course to check enrollment against", kind)
		}
		return `EXISTS (SELECT 1 FROM enrollments e WHERE e.course_id = ` + sh.courseCol +
			` AND e.user_id = ? AND e.status <> '` + string(model.EnrollmentDropped) + `')`, []any{arg(c.Value)}, nil
	}

	col, ok := sh.cols[c.Field]
	if !ok {
		return "", nil, fmt.Errorf("field %q is not reachable from kind %q", c.Field, kind)
	}
	switch c.Op {
	case policy.OpEq:
		return col + " = ?", []any{arg(c.Value)}, nil
	case policy.OpNe:
		return col + " <> ?", []any{arg(c.Value)}, nil
	case policy.OpContains:
		term, _ := c.Value.(string)
		return "LOWER(" + col + ") LIKE LOWER(?) ESCAPE '\\'", []any{"%" + escapeLike(term) + "%"}, nil
	}
	return "", nil, fmt.Errorf("unsupported operator %q", c.Op)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// findPage runs a paginated select of cols for p, plus a COUNT over the same
// predicate. orderBy overrides the kind's default ordering when non-empty.
func findPage[T any](ctx context.Context, r runner, p policy.Predicate, params pagination.Params,
	cols, orderBy string, scan func(rowScanner) (T, error)) (pagination.Page[T], error) {
	c, err := compile(p)
	if err != nil {
		return pagination.Page[T]{}, err
	}
	params = params.Normalize()

	var total int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM `+c.shape.from+` WHERE `+c.where, c.args...).Scan(&total); err != nil {
		return pagination.Page[T]{}, mapErr(err)
	}

	if orderBy == "" {
		orderBy = c.shape.orderBy
	}
	query := `SELECT ` + cols + ` FROM ` + c.shape.from + ` WHERE ` + c.where +
		` ORDER BY ` + orderBy + ` LIMIT ? OFFSET ?`
	args := append(append([]any(nil), c.args...), params.Limit, params.Offset())
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return pagination.Page[T]{}, err
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return pagination.Page[T]{}, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[T]{}, err
	}
	return pagination.NewPage(items, total, params), nil
}

// findOne returns the single row of p's kind with the given id that p
// admits. A missing row and a row p excludes both yield model.ErrNotFound.
func findOne[T any](ctx context.Context, r runner, p policy.Predicate, id string,
	cols string, scan func(rowScanner) (T, error)) (T, error) {
	var zero T
	c, err := compile(p.And(policy.Eq(policy.FieldID, id)))
	if err != nil {
		return zero, err
	}
	row := r.queryRow(ctx, `SELECT `+cols+` FROM `+c.shape.from+` WHERE `+c.where+` LIMIT 1`, c.args...)
	item, err := scan(row)
	if err != nil {
		return zero, mapErr(err)
	}
	return item, nil
}
