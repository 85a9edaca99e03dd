package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/coursecore/internal/model"
)

const userCols = `id, username, fullname, email, password_hash, role, created_at`

func scanUser(r rowScanner) (model.User, error) {
	var u model.User
	err := r.Scan(&u.ID, &u.Username, &u.Fullname, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	return u, err
}

// CreateUser inserts a new user. Usernames are unique.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	switch u.Role {
	case model.UserRoleStudent, model.UserRoleTeacher, model.UserRoleAdmin:
	default:
		return fmt.Errorf("%w: %q", model.ErrInvalidRole, u.Role)
	}
	if u.ID == "" {
		u.ID = newID()
	}
	u.CreatedAt = now()
	_, err := s.exec(ctx,
		`INSERT INTO users (id, username, fullname, email, password_hash, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Fullname, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt,
	)
	if err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return err
	}
	slog.Info("created user", "id", u.ID, "username", u.Username, "role", u.Role)
	return nil
}

// GetUserByUsername returns a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = ?`, username))
	if err != nil {
		return u, fmt.Errorf("user %q: %w", username, mapErr(err))
	}
	return u, nil
}

// GetUserByID returns a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id))
	if err != nil {
		return u, fmt.Errorf("user %s: %w", id, mapErr(err))
	}
	return u, nil
}

// ListUsers returns all users.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.query(ctx, `SELECT `+userCols+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, mapErr(err)
}
