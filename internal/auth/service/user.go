package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loxya/loxya/internal/auth/domain"
	"github.com/loxya/loxya/internal/auth/store"
	"github.com/loxya/loxya/pkg/cryptox"
)

var (
	ErrUserExists   = errors.New("user_exists")
	ErrInvalidGroup = errors.New("invalid_group")
)

// UserService manages accounts outside the HTTP flows, for the admin CLI.
type UserService struct {
	Store     store.Store
	Passwords *cryptox.PasswordHasher
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID int64) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// CreateUser hashes password and inserts a new account.
func (s *UserService) CreateUser(ctx context.Context, pseudo, email, password string, group domain.Group) (int64, error) {
	if !group.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGroup, group)
	}
	hash, err := s.Passwords.Hash(password)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.Store.Users().CreateUser(ctx, domain.User{
		Pseudo:       strings.TrimSpace(pseudo),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Group:        group,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return 0, ErrUserExists
	}
	return id, err
}
