package service

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/coursecore/internal/model"
)

// SystemActor is the identity operational tools act as.
var SystemActor = model.Actor{ID: "system", Role: model.UserRoleAdmin}

// UserInput is the payload for provisioning a user.
type UserInput struct {
	Username string         `json:"username"`
	Fullname string         `json:"fullname"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Role     model.UserRole `json:"role"`
}

func requireAdmin(actor model.Actor) error {
	switch actor.Role {
	case model.UserRoleAdmin:
		return nil
	case model.UserRoleTeacher, model.UserRoleStudent:
		return fmt.Errorf("%w: admin role required", model.ErrForbidden)
	default:
		return fmt.Errorf("%w: %q", model.ErrInvalidRole, actor.Role)
	}
}

// CreateUser provisions a user with a bcrypt password hash.
func (s *Service) CreateUser(ctx context.Context, actor model.Actor, in UserInput) (model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return model.User{}, err
	}
	if in.Username == "" || in.Password == "" {
		return model.User{}, fmt.Errorf("%w: username and password are required", model.ErrInvalidRange)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	if in.Fullname == "" {
		in.Fullname = in.Username
	}
	u := model.User{
		Username:     in.Username,
		Fullname:     in.Fullname,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
	}
	if err := s.store.CreateUser(ctx, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// ListUsers returns every user.
func (s *Service) ListUsers(ctx context.Context, actor model.Actor) ([]model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx)
}

// UserByUsername looks a user up by login name.
func (s *Service) UserByUsername(ctx context.Context, username string) (model.User, error) {
	return s.store.GetUserByUsername(ctx, username)
}
