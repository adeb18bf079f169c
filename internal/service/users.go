package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"ngdi-portal/internal/audit"
	"ngdi-portal/internal/crypto"
	"ngdi-portal/internal/models"
	"ngdi-portal/internal/repository"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidRole     = errors.New("invalid role")
	ErrOrgAlreadyExist = errors.New("organization already exists")
)

// UserAdminService covers the administrative portal operations on users and
// organizations. All callers are expected to be admins; the handler layer
// enforces that.
type UserAdminService interface {
	ListUsers(limit, offset int) ([]*models.User, error)
	CreateUser(email, password, name, role string, organization *string) (*models.User, error)
	ChangeRole(ctx context.Context, actorID, userID, role string) (*models.User, error)
	SetDisabled(userID string, disabled bool) error
	ListOrganizations() ([]*models.Organization, error)
	CreateOrganization(name string, description *string) (*models.Organization, error)
}

type userAdminService struct {
	users    repository.UserRepository
	orgs     repository.OrganizationRepository
	trail    audit.Recorder
	notifier Notifier
	logger   *zap.Logger
}

func NewUserAdminService(users repository.UserRepository, orgs repository.OrganizationRepository, trail audit.Recorder, notifier Notifier, logger *zap.Logger) UserAdminService {
	if notifier == nil {
		notifier = NoOpNotifier{}
	}
	return &userAdminService{
		users:    users,
		orgs:     orgs,
		trail:    trail,
		notifier: notifier,
		logger:   logger,
	}
}

func validRole(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleNodeOfficer, models.RoleUser:
		return true
	}
	return false
}

func (s *userAdminService) ListUsers(limit, offset int) ([]*models.User, error) {
	return s.users.ListUsers(limit, offset)
}

func (s *userAdminService) CreateUser(email, password, name, role string, organization *string) (*models.User, error) {
	if !validRole(role) {
		return nil, ErrInvalidRole
	}

	passwordHash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: &passwordHash,
		Name:         name,
		Role:         role,
		Organization: organization,
	}

	if err := s.users.CreateUser(user); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrUserAlreadyExists
		}
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.notifier.UserRegistered(user)

	return user, nil
}

func (s *userAdminService) ChangeRole(ctx context.Context, actorID, userID, role string) (*models.User, error) {
	if !validRole(role) {
		return nil, ErrInvalidRole
	}

	if err := s.users.UpdateRole(userID, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("Failed to update role", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}

	s.trail.Record(ctx, audit.Event{
		EventType: audit.EventRoleChanged,
		UserID:    userID,
		Email:     user.Email,
		Success:   true,
		Metadata:  map[string]string{"role": role, "actor_id": actorID},
	})

	return user, nil
}

func (s *userAdminService) SetDisabled(userID string, disabled bool) error {
	if err := s.users.SetDisabled(userID, disabled); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *userAdminService) ListOrganizations() ([]*models.Organization, error) {
	return s.orgs.List()
}

func (s *userAdminService) CreateOrganization(name string, description *string) (*models.Organization, error) {
	org := &models.Organization{
		Name:        name,
		Description: description,
	}

	if err := s.orgs.Create(org); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrOrgAlreadyExist
		}
		s.logger.Error("Failed to create organization", zap.Error(err))
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	return org, nil
}
