// Package policy turns an actor and a resource kind into the row predicate
// that decides what the actor may see.
package policy

import (
	"fmt"
	"strings"

	"github.com/pavelanni/coursecore/internal/model"
)

// Resolve builds the access predicate for actor on kind. A non-empty search
// term and every path condition are ANDed into each branch.
// Unknown roles fail with model.ErrInvalidRole.
func Resolve(actor model.Actor, kind Kind, search string, path ...Cond) (Predicate, error) {
	var branches []Branch
	var err error

	switch actor.Role {
	case model.UserRoleStudent:
		branches, err = studentBranches(actor.ID, kind)
	case model.UserRoleTeacher:
		branches, err = teacherBranches(actor.ID, kind)
	case model.UserRoleAdmin:
		if _, err = searchField(kind); err == nil {
			branches = []Branch{{}}
		}
	default:
		return Predicate{}, fmt.Errorf("%w: %q", model.ErrInvalidRole, actor.Role)
	}
	if err != nil {
		return Predicate{}, err
	}

	extra := append([]Cond(nil), path...)
	if term := strings.TrimSpace(search); term != "" {
		f, _ := searchField(kind)
		extra = append(extra, Contains(f, term))
	}
	return Predicate{Kind: kind, Branches: branches}.And(extra...), nil
}

func studentBranches(actorID string, kind Kind) ([]Branch, error) {
	published := Eq(FieldCourseStatus, model.CoursePublished)
	switch kind {
	case KindChapter:
		return []Branch{
			{published, EnrolledAs(actorID)},
			{Eq(FieldPreview, true), published},
		}, nil
	case KindExam, KindQuestion:
		return []Branch{
			{Eq(FieldExamStatus, model.ExamPublished), published, EnrolledAs(actorID)},
		}, nil
	case KindPretest, KindPretestQuestion:
		return []Branch{{Eq(FieldPretestOwner, actorID)}}, nil
	case KindExamAnswer:
		return []Branch{{Eq(FieldAttemptOwner, actorID)}}, nil
	}
	return nil, fmt.Errorf("policy: unknown resource kind %q", kind)
}

func teacherBranches(actorID string, kind Kind) ([]Branch, error) {
	owns := Eq(FieldCourseTeacher, actorID)
	switch kind {
	case KindChapter:
		return []Branch{
			{Eq(FieldPreview, true), Eq(FieldCourseStatus, model.CoursePublished)},
			{owns},
		}, nil
	case KindExam, KindQuestion, KindExamAnswer:
		return []Branch{{owns}}, nil
	case KindPretest, KindPretestQuestion:
		return []Branch{{Eq(FieldPretestOwner, actorID)}}, nil
	}
	return nil, fmt.Errorf("policy: unknown resource kind %q", kind)
}

func searchField(kind Kind) (Field, error) {
	switch kind {
	case KindChapter, KindExam, KindPretest:
		return FieldTitle, nil
	case KindQuestion, KindPretestQuestion:
		return FieldQuestionText, nil
	case KindExamAnswer:
		return FieldAnswerText, nil
	}
	return "", fmt.Errorf("policy: unknown resource kind %q", kind)
}
