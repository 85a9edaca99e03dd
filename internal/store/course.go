package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/coursecore/internal/model"
)

// CreateCourse inserts a course owned by c.TeacherID.
func (s *Store) CreateCourse(ctx context.Context, c *model.Course) error {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.Status == "" {
		c.Status = model.CourseDraft
	}
	c.CreatedAt = now()
	_, err := s.exec(ctx,
		`INSERT INTO courses (id, title, description, teacher_id, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Description, c.TeacherID, string(c.Status), c.CreatedAt,
	)
	if err != nil {
		slog.Error("failed to create course", "title", c.Title, "error", err)
		return err
	}
	slog.Info("created course", "id", c.ID, "teacher_id", c.TeacherID)
	return nil
}

// CourseByID returns a course.
func (s *Store) CourseByID(ctx context.Context, id string) (model.Course, error) {
	var c model.Course
	err := s.queryRow(ctx,
		`SELECT id, title, description, teacher_id, status, created_at FROM courses WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &c.Description, &c.TeacherID, &c.Status, &c.CreatedAt)
	if err != nil {
		return c, fmt.Errorf("course %s: %w", id, mapErr(err))
	}
	return c, nil
}

// SetCourseStatus publishes or unpublishes a course.
func (s *Store) SetCourseStatus(ctx context.Context, id string, status model.CourseStatus) error {
	res, err := s.exec(ctx, `UPDATE courses SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: course %s", model.ErrNotFound, id)
	}
	return nil
}

// CreateModule inserts a module at the end of its course.
func (s *Store) CreateModule(ctx context.Context, m *model.CourseModule) error {
	if m.ID == "" {
		m.ID = newID()
	}
	if m.OrderIndex == 0 {
		if err := s.queryRow(ctx,
			`SELECT COALESCE(MAX(order_index), 0) + 1 FROM course_modules WHERE course_id = ?`, m.CourseID,
		).Scan(&m.OrderIndex); err != nil {
			return mapErr(err)
		}
	}
	_, err := s.exec(ctx,
		`INSERT INTO course_modules (id, course_id, title, order_index) VALUES (?, ?, ?, ?)`,
		m.ID, m.CourseID, m.Title, m.OrderIndex,
	)
	if err != nil {
		return err
	}
	slog.Info("created module", "id", m.ID, "course_id", m.CourseID)
	return nil
}

// ModuleByID returns a module.
func (s *Store) ModuleByID(ctx context.Context, id string) (model.CourseModule, error) {
	var m model.CourseModule
	err := s.queryRow(ctx,
		`SELECT id, course_id, title, order_index FROM course_modules WHERE id = ?`, id,
	).Scan(&m.ID, &m.CourseID, &m.Title, &m.OrderIndex)
	if err != nil {
		return m, fmt.Errorf("module %s: %w", id, mapErr(err))
	}
	return m, nil
}

// ModulesForCourse lists a course's modules in order.
func (s *Store) ModulesForCourse(ctx context.Context, courseID string) ([]model.CourseModule, error) {
	rows, err := s.query(ctx,
		`SELECT id, course_id, title, order_index FROM course_modules WHERE course_id = ? ORDER BY order_index, id`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var modules []model.CourseModule
	for rows.Next() {
		var m model.CourseModule
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Title, &m.OrderIndex); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// Enroll records an ACTIVE enrollment. A DROPPED enrollment is
// reactivated; any other existing enrollment is a conflict.
func (s *Store) Enroll(ctx context.Context, userID, courseID string) (model.Enrollment, error) {
	res, err := s.exec(ctx,
		`INSERT INTO enrollments (id, user_id, course_id, status, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, course_id) DO UPDATE SET status = excluded.status
		 WHERE enrollments.status = ?`,
		newID(), userID, courseID, string(model.EnrollmentActive), now(), string(model.EnrollmentDropped),
	)
	if err != nil {
		return model.Enrollment{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Enrollment{}, fmt.Errorf("%w: %s is already enrolled in %s", model.ErrConflict, userID, courseID)
	}

	var e model.Enrollment
	err = s.queryRow(ctx,
		`SELECT id, user_id, course_id, status, created_at FROM enrollments WHERE user_id = ? AND course_id = ?`,
		userID, courseID,
	).Scan(&e.ID, &e.UserID, &e.CourseID, &e.Status, &e.CreatedAt)
	if err != nil {
		return model.Enrollment{}, fmt.Errorf("enrollment of %s in %s: %w", userID, courseID, mapErr(err))
	}
	slog.Info("enrolled user", "user_id", userID, "course_id", courseID)
	return e, nil
}

// SetEnrollmentStatus changes the status of a user's enrollment in a course.
func (s *Store) SetEnrollmentStatus(ctx context.Context, userID, courseID string, status model.EnrollmentStatus) error {
	res, err := s.exec(ctx,
		`UPDATE enrollments SET status = ? WHERE user_id = ? AND course_id = ?`,
		string(status), userID, courseID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: enrollment of %s in %s", model.ErrNotFound, userID, courseID)
	}
	return nil
}
