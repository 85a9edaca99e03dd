package service

import (
	"context"
	"fmt"

	"github.com/pavelanni/coursecore/internal/model"
)

// CourseInput is the payload for creating a course.
type CourseInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CreateCourse creates a draft course taught by actor. Only teachers and
// admins create courses.
func (s *Service) CreateCourse(ctx context.Context, actor model.Actor, in CourseInput) (model.Course, error) {
	switch actor.Role {
	case model.UserRoleTeacher, model.UserRoleAdmin:
	case model.UserRoleStudent:
		return model.Course{}, fmt.Errorf("%w: students cannot create courses", model.ErrForbidden)
	default:
		return model.Course{}, fmt.Errorf("%w: %q", model.ErrInvalidRole, actor.Role)
	}
	if in.Title == "" {
		return model.Course{}, fmt.Errorf("%w: title is required", model.ErrInvalidRange)
	}
	c := model.Course{Title: in.Title, Description: in.Description, TeacherID: actor.ID}
	if err := s.store.CreateCourse(ctx, &c); err != nil {
		return model.Course{}, err
	}
	return c, nil
}

// SetCourseStatus publishes or withdraws a course actor owns.
func (s *Service) SetCourseStatus(ctx context.Context, actor model.Actor, id string, status model.CourseStatus) (model.Course, error) {
	if status != model.CourseDraft && status != model.CoursePublished {
		return model.Course{}, fmt.Errorf("%w: unknown course status %q", model.ErrInvalidRange, status)
	}
	if err := s.assertCourseOwnership(ctx, actor, id); err != nil {
		return model.Course{}, err
	}
	if err := s.store.SetCourseStatus(ctx, id, status); err != nil {
		return model.Course{}, err
	}
	return s.store.CourseByID(ctx, id)
}

// CreateModule appends a module to a course actor owns.
func (s *Service) CreateModule(ctx context.Context, actor model.Actor, courseID, title string) (model.CourseModule, error) {
	if title == "" {
		return model.CourseModule{}, fmt.Errorf("%w: title is required", model.ErrInvalidRange)
	}
	if err := s.assertCourseOwnership(ctx, actor, courseID); err != nil {
		return model.CourseModule{}, err
	}
	m := model.CourseModule{CourseID: courseID, Title: title}
	if err := s.store.CreateModule(ctx, &m); err != nil {
		return model.CourseModule{}, err
	}
	return m, nil
}

// Enroll enrolls actor in a published course.
func (s *Service) Enroll(ctx context.Context, actor model.Actor, courseID string) (model.Enrollment, error) {
	c, err := s.store.CourseByID(ctx, courseID)
	if err != nil {
		return model.Enrollment{}, err
	}
	if c.Status != model.CoursePublished && actor.Role != model.UserRoleAdmin {
		return model.Enrollment{}, fmt.Errorf("%w: course %s", model.ErrNotFound, courseID)
	}
	return s.store.Enroll(ctx, actor.ID, courseID)
}

// Unenroll marks actor's enrollment in a course as dropped.
func (s *Service) Unenroll(ctx context.Context, actor model.Actor, courseID string) error {
	return s.store.SetEnrollmentStatus(ctx, actor.ID, courseID, model.EnrollmentDropped)
}
