package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
	"github.com/garyjia/contract-approvals/pkg/utils"
)

// DirectoryService manages users, roles, departments and delegation rules
type DirectoryService interface {
	ListUsers(ctx context.Context, filter entity.UserFilter) ([]*entity.User, error)
	GetUser(ctx context.Context, id int64) (*entity.User, error)
	CreateUser(ctx context.Context, user *entity.User) error
	UpdateUser(ctx context.Context, user *entity.User) error
	DeactivateUser(ctx context.Context, id int64) error

	ListRoles(ctx context.Context) ([]*entity.Role, error)
	CreateRole(ctx context.Context, role *entity.Role) error

	ListDepartments(ctx context.Context) ([]*entity.Department, error)
	GetDepartment(ctx context.Context, id int64) (*entity.Department, error)
	CreateDepartment(ctx context.Context, dept *entity.Department) error
	UpdateDepartment(ctx context.Context, dept *entity.Department) error
	DeleteDepartment(ctx context.Context, id int64) error

	ListDelegations(ctx context.Context, activeOnly bool) ([]*entity.DelegationRule, error)
	CreateDelegation(ctx context.Context, rule *entity.DelegationRule) error
	DeactivateDelegation(ctx context.Context, id int64) error

	// ResolveDelegate returns the user that should receive approvals assigned to
	// userID at the given instant. Only one hop is followed.
	ResolveDelegate(ctx context.Context, userID int64, at time.Time) (int64, error)
}

type directoryServiceImpl struct {
	users       port.UserRepository
	roles       port.RoleRepository
	departments port.DepartmentRepository
	delegations port.DelegationRepository
	logger      Logger
}

// NewDirectoryService creates a new DirectoryService
func NewDirectoryService(
	users port.UserRepository,
	roles port.RoleRepository,
	departments port.DepartmentRepository,
	delegations port.DelegationRepository,
	logger Logger,
) DirectoryService {
	return &directoryServiceImpl{
		users:       users,
		roles:       roles,
		departments: departments,
		delegations: delegations,
		logger:      logger,
	}
}

func (s *directoryServiceImpl) ListUsers(ctx context.Context, filter entity.UserFilter) ([]*entity.User, error) {
	return s.users.List(ctx, filter)
}

func (s *directoryServiceImpl) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *directoryServiceImpl) CreateUser(ctx context.Context, user *entity.User) error {
	if err := validateUser(user); err != nil {
		return err
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Error("Failed to create user", "error", err, "email", user.Email)
		return err
	}
	s.logger.Info("User created", "id", user.ID, "name", user.Name)
	return nil
}

func (s *directoryServiceImpl) UpdateUser(ctx context.Context, user *entity.User) error {
	if err := validateUser(user); err != nil {
		return err
	}
	return s.users.Update(ctx, user)
}

func (s *directoryServiceImpl) DeactivateUser(ctx context.Context, id int64) error {
	if err := s.users.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.logger.Info("User deactivated", "id", id)
	return nil
}

func (s *directoryServiceImpl) ListRoles(ctx context.Context) ([]*entity.Role, error) {
	return s.roles.List(ctx)
}

func (s *directoryServiceImpl) CreateRole(ctx context.Context, role *entity.Role) error {
	role.Name = strings.TrimSpace(role.Name)
	if role.Name == "" {
		return fmt.Errorf("%w: role name is required", entity.ErrValidation)
	}
	return s.roles.Create(ctx, role)
}

func (s *directoryServiceImpl) ListDepartments(ctx context.Context) ([]*entity.Department, error) {
	return s.departments.List(ctx)
}

func (s *directoryServiceImpl) GetDepartment(ctx context.Context, id int64) (*entity.Department, error) {
	return s.departments.GetByID(ctx, id)
}

func (s *directoryServiceImpl) CreateDepartment(ctx context.Context, dept *entity.Department) error {
	if err := s.validateDepartment(ctx, dept); err != nil {
		return err
	}
	return s.departments.Create(ctx, dept)
}

func (s *directoryServiceImpl) UpdateDepartment(ctx context.Context, dept *entity.Department) error {
	if err := s.validateDepartment(ctx, dept); err != nil {
		return err
	}
	if dept.ParentID != nil && *dept.ParentID == dept.ID {
		return fmt.Errorf("%w: department cannot be its own parent", entity.ErrValidation)
	}
	return s.departments.Update(ctx, dept)
}

func (s *directoryServiceImpl) DeleteDepartment(ctx context.Context, id int64) error {
	return s.departments.Delete(ctx, id)
}

func (s *directoryServiceImpl) validateDepartment(ctx context.Context, dept *entity.Department) error {
	dept.Name = strings.TrimSpace(dept.Name)
	if dept.Name == "" {
		return fmt.Errorf("%w: department name is required", entity.ErrValidation)
	}
	if dept.HeadUserID != nil {
		if _, err := s.users.GetByID(ctx, *dept.HeadUserID); err != nil {
			if errors.Is(err, entity.ErrNotFound) {
				return fmt.Errorf("%w: head user %d does not exist", entity.ErrValidation, *dept.HeadUserID)
			}
			return err
		}
	}
	return nil
}

func (s *directoryServiceImpl) ListDelegations(ctx context.Context, activeOnly bool) ([]*entity.DelegationRule, error) {
	return s.delegations.List(ctx, activeOnly)
}

func (s *directoryServiceImpl) CreateDelegation(ctx context.Context, rule *entity.DelegationRule) error {
	if rule.FromUserID == 0 || rule.ToUserID == 0 {
		return fmt.Errorf("%w: from and to users are required", entity.ErrValidation)
	}
	if rule.FromUserID == rule.ToUserID {
		return fmt.Errorf("%w: a user cannot delegate to themselves", entity.ErrValidation)
	}
	if !rule.EndsAt.After(rule.StartsAt) {
		return fmt.Errorf("%w: delegation must end after it starts", entity.ErrValidation)
	}
	for _, id := range []int64{rule.FromUserID, rule.ToUserID} {
		if _, err := s.users.GetByID(ctx, id); err != nil {
			if errors.Is(err, entity.ErrNotFound) {
				return fmt.Errorf("%w: user %d does not exist", entity.ErrValidation, id)
			}
			return err
		}
	}
	rule.Active = true
	if err := s.delegations.Create(ctx, rule); err != nil {
		return err
	}
	s.logger.Info("Delegation created",
		"id", rule.ID,
		"from_user_id", rule.FromUserID,
		"to_user_id", rule.ToUserID,
	)
	return nil
}

func (s *directoryServiceImpl) DeactivateDelegation(ctx context.Context, id int64) error {
	return s.delegations.Deactivate(ctx, id)
}

func (s *directoryServiceImpl) ResolveDelegate(ctx context.Context, userID int64, at time.Time) (int64, error) {
	rule, err := s.delegations.FindActive(ctx, userID, at)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return userID, nil
		}
		return 0, fmt.Errorf("find delegation for user %d: %w", userID, err)
	}
	return rule.ToUserID, nil
}

func validateUser(user *entity.User) error {
	user.Name = strings.TrimSpace(user.Name)
	if user.Name == "" {
		return fmt.Errorf("%w: user name is required", entity.ErrValidation)
	}
	if user.Email != "" {
		if err := utils.ValidateEmail(user.Email); err != nil {
			return fmt.Errorf("%w: %v", entity.ErrValidation, err)
		}
	}
	return nil
}
