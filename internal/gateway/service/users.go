package service

import (
	"context"
	"errors"

	"github.com/chatterhq/gateway/internal/gateway/domain"
	"github.com/chatterhq/gateway/internal/gateway/store"
)

// ErrInvalidRole: the requested role is not one we know.
var ErrInvalidRole = errors.New("invalid_role")

// UserService covers the admin-facing account operations.
type UserService struct {
	Store store.Store
}

// UserPage is one page of accounts plus the overall total.
type UserPage struct {
	Users []domain.User
	Total int64
}

const defaultPageSize = 50

// List returns accounts newest first.
func (s *UserService) List(ctx context.Context, limit, offset int) (UserPage, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.Store.Users().ListUsers(ctx, limit, offset)
	if err != nil {
		return UserPage{}, err
	}
	total, err := s.Store.Users().CountUsers(ctx)
	if err != nil {
		return UserPage{}, err
	}
	return UserPage{Users: users, Total: total}, nil
}

// SetRole changes an account's authorization level.
func (s *UserService) SetRole(ctx context.Context, userID string, role domain.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	return s.Store.Users().UpdateRole(ctx, userID, role)
}

// Delete removes an account.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	return s.Store.Users().DeleteUser(ctx, userID)
}
