package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/coursecore/internal/policy"
)

// ownerQueries walk from a resource up to the user who owns it: the course
// teacher for course content, the pretest owner for pretest content.
var ownerQueries = map[policy.Kind]string{
	policy.KindChapter: `SELECT c.teacher_id FROM chapters ch
		JOIN course_modules m ON m.id = ch.module_id
		JOIN courses c ON c.id = m.course_id
		WHERE ch.id = ?`,
	policy.KindExam: `SELECT c.teacher_id FROM exams ex
		JOIN course_modules m ON m.id = ex.module_id
		JOIN courses c ON c.id = m.course_id
		WHERE ex.id = ?`,
	policy.KindQuestion: `SELECT c.teacher_id FROM questions q
		JOIN exams ex ON ex.id = q.exam_id
		JOIN course_modules m ON m.id = ex.module_id
		JOIN courses c ON c.id = m.course_id
		WHERE q.id = ?`,
	policy.KindPretest: `SELECT p.user_id FROM pretests p WHERE p.id = ?`,
	policy.KindPretestQuestion: `SELECT p.user_id FROM questions q
		JOIN pretests p ON p.id = q.pretest_id
		WHERE q.id = ?`,
}

// OwnerOf returns the id of the user who owns the resource.
func (s *Store) OwnerOf(ctx context.Context, kind policy.Kind, id string) (string, error) {
	q, ok := ownerQueries[kind]
	if !ok {
		return "", fmt.Errorf("no owner lookup for kind %q", kind)
	}
	var owner string
	if err := s.queryRow(ctx, q, id).Scan(&owner); err != nil {
		return "", fmt.Errorf("%s %s: %w", kind, id, mapErr(err))
	}
	return owner, nil
}

// ModuleOwner returns the teacher of the course a module belongs to.
func (s *Store) ModuleOwner(ctx context.Context, moduleID string) (string, error) {
	var owner string
	err := s.queryRow(ctx,
		`SELECT c.teacher_id FROM course_modules m JOIN courses c ON c.id = m.course_id WHERE m.id = ?`, moduleID,
	).Scan(&owner)
	if err != nil {
		return "", fmt.Errorf("module %s: %w", moduleID, mapErr(err))
	}
	return owner, nil
}

// CourseOwner returns a course's teacher.
func (s *Store) CourseOwner(ctx context.Context, courseID string) (string, error) {
	c, err := s.CourseByID(ctx, courseID)
	if err != nil {
		return "", err
	}
	return c.TeacherID, nil
}
