package service

import (
	"context"
	"fmt"

	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/policy"
)

// AssertOwnership checks that actor owns the resource: the course teacher
// for course content, the owner for pretest content. ADMIN always passes.
// A missing resource yields model.ErrNotFound, any other owner
// model.ErrForbidden.
func (s *Service) AssertOwnership(ctx context.Context, actor model.Actor, kind policy.Kind, id string) error {
	owner, err := s.store.OwnerOf(ctx, kind, id)
	if err != nil {
		return err
	}
	return checkOwner(actor, owner, string(kind), id)
}

func (s *Service) assertModuleOwnership(ctx context.Context, actor model.Actor, moduleID string) error {
	owner, err := s.store.ModuleOwner(ctx, moduleID)
	if err != nil {
		return err
	}
	return checkOwner(actor, owner, "module", moduleID)
}

func (s *Service) assertCourseOwnership(ctx context.Context, actor model.Actor, courseID string) error {
	owner, err := s.store.CourseOwner(ctx, courseID)
	if err != nil {
		return err
	}
	return checkOwner(actor, owner, "course", courseID)
}

func checkOwner(actor model.Actor, owner, what, id string) error {
	switch actor.Role {
	case model.UserRoleAdmin:
		return nil
	case model.UserRoleTeacher, model.UserRoleStudent:
		if owner == actor.ID {
			return nil
		}
		return fmt.Errorf("%w: %s %s is not owned by %s", model.ErrForbidden, what, id, actor.ID)
	default:
		return fmt.Errorf("%w: %q", model.ErrInvalidRole, actor.Role)
	}
}
