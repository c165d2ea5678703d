package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"evride/internal/domain"
	"evride/internal/repository"
)

// UserService manages rider profiles. Identities are issued by the external
// identity provider; a profile is keyed by the token subject.
type UserService struct {
	deps Dependencies
	now  func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(deps Dependencies) *UserService {
	return &UserService{deps: deps, now: deps.clock()}
}

// RegisterUserRequest contains the parameters for creating a profile.
type RegisterUserRequest struct {
	UserID string
	Name   string
	Email  string
	Role   domain.UserRole
}

// Register creates the profile of an authenticated identity.
func (s *UserService) Register(ctx context.Context, req RegisterUserRequest) (*domain.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.UserID == "" {
		return nil, newError(ErrValidation, "user id is required")
	}
	if req.Name == "" {
		return nil, newError(ErrValidation, "name is required")
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return nil, newError(ErrValidation, "invalid email address")
		}
	}
	if req.Role == "" {
		req.Role = domain.UserRoleUser
	}

	now := s.now()
	user := &domain.User{
		ID:        req.UserID,
		Name:      req.Name,
		Email:     strings.ToLower(req.Email),
		Role:      req.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.deps.Store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, newError(ErrInvalidState, "user already registered")
		}
		return nil, err
	}

	s.deps.Log.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Profile returns the user's profile with wallet and ride totals.
func (s *UserService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.deps.Store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}
