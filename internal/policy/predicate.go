package policy

import (
	"fmt"
	"strings"
)

// Kind names a resource whose rows are filtered by a predicate.
type Kind string

const (
	KindChapter         Kind = "chapter"
	KindExam            Kind = "exam"
	KindQuestion        Kind = "question"
	KindPretestQuestion Kind = "pretest_question"
	KindPretest         Kind = "pretest"
	KindExamAnswer      Kind = "exam_answer"
)

// Field is a logical column reachable from a resource kind through its
// ancestor chain. The store maps fields to columns per kind.
type Field string

const (
	FieldID             Field = "id"
	FieldTitle          Field = "title"
	FieldQuestionText   Field = "question.text"
	FieldAnswerText     Field = "answer.text"
	FieldPreview        Field = "chapter.is_preview"
	FieldModuleID       Field = "module.id"
	FieldCourseID       Field = "course.id"
	FieldCourseStatus   Field = "course.status"
	FieldCourseTeacher  Field = "course.teacher_id"
	FieldExamID         Field = "exam.id"
	FieldExamStatus     Field = "exam.status"
	FieldPretestID      Field = "pretest.id"
	FieldPretestOwner   Field = "pretest.user_id"
	FieldAttemptID      Field = "attempt.id"
	FieldAttemptOwner   Field = "attempt.user_id"
	FieldQuestionID     Field = "question.id"
	FieldSelectedOption Field = "answer.selected_option_id"
	// FieldEnrollment is only valid with OpEnrolled.
	FieldEnrollment Field = "course.enrollment"
)

// Op is a comparison operator.
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpContains Op = "contains"
	// OpEnrolled matches when the user in Value holds a non-dropped
	// enrollment in the row's course.
	OpEnrolled Op = "enrolled"
)

// Cond is a single comparison.
type Cond struct {
	Field Field
	Op    Op
	Value any
}

func (c Cond) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

// Eq builds an equality condition.
func Eq(f Field, v any) Cond { return Cond{Field: f, Op: OpEq, Value: v} }

// Ne builds an inequality condition.
func Ne(f Field, v any) Cond { return Cond{Field: f, Op: OpNe, Value: v} }

// Contains builds a case-insensitive substring condition.
func Contains(f Field, s string) Cond { return Cond{Field: f, Op: OpContains, Value: s} }

// EnrolledAs matches rows whose course has a non-dropped enrollment for userID.
func EnrolledAs(userID string) Cond {
	return Cond{Field: FieldEnrollment, Op: OpEnrolled, Value: userID}
}

// Branch is a conjunction of conditions. An empty branch matches every row.
type Branch []Cond

// Has reports whether the branch contains an identical condition.
func (b Branch) Has(c Cond) bool {
	for _, x := range b {
		if x == c {
			return true
		}
	}
	return false
}

// Predicate is a disjunction of branches over one resource kind.
// A row matches when it satisfies any branch.
type Predicate struct {
	Kind     Kind
	Branches []Branch
}

// And returns a copy of p with conds appended to every branch.
func (p Predicate) And(conds ...Cond) Predicate {
	out := Predicate{Kind: p.Kind, Branches: make([]Branch, len(p.Branches))}
	for i, b := range p.Branches {
		nb := make(Branch, 0, len(b)+len(conds))
		nb = append(nb, b...)
		nb = append(nb, conds...)
		out.Branches[i] = nb
	}
	return out
}

func (p Predicate) String() string {
	parts := make([]string, len(p.Branches))
	for i, b := range p.Branches {
		conds := make([]string, len(b))
		for j, c := range b {
			conds[j] = c.String()
		}
		parts[i] = "(" + strings.Join(conds, " AND ") + ")"
	}
	return string(p.Kind) + ": " + strings.Join(parts, " OR ")
}
