// users.go implements admin management of backoffice accounts. Role changes
// never reissue tokens; the next request picks up the new role because
// authorization re-reads the user row.
package services

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/auth"
	"github.com/insureline/insureline/internal/db/models"
	"github.com/insureline/insureline/internal/db/repositories"
	"github.com/insureline/insureline/internal/validation"
)

// CreateUserInput carries the fields for an admin-created user.
type CreateUserInput struct {
	Email    string
	Name     string
	Password string
	Role     string
}

// UpdateUserInput carries the mutable user fields.
type UpdateUserInput struct {
	Name   *string
	Role   *string
	Active *bool
}

// UserService implements admin user management.
type UserService struct {
	users   *repositories.UserRepository
	mutator *Mutator
}

// NewUserService creates a new user service
func NewUserService(users *repositories.UserRepository, mutator *Mutator) *UserService {
	return &UserService{users: users, mutator: mutator}
}

func requireUserAdmin(actor Actor) error {
	if !auth.CanManageUsers(actor.Role) {
		return &ForbiddenError{Reason: "user management requires admin role"}
	}
	return nil
}

// Create provisions a user in the admin's organization. Admin-created accounts
// start unverified like self-registered ones; the verification token is issued
// separately through the account service.
func (s *UserService) Create(ctx context.Context, actor Actor, meta RequestMeta, input CreateUserInput) (*models.User, error) {
	if err := requireUserAdmin(actor); err != nil {
		return nil, err
	}
	if err := validation.ValidateEmail("email", input.Email); err != nil {
		return nil, &ValidationError{Field: "email", Message: err.Error()}
	}
	if err := validation.ValidateName("name", input.Name, 120); err != nil {
		return nil, &ValidationError{Field: "name", Message: err.Error()}
	}
	if !auth.ValidRole(auth.Role(input.Role)) {
		return nil, &ValidationError{Field: "role", Message: "unknown role"}
	}
	if err := auth.ValidatePasswordPolicy(input.Password); err != nil {
		return nil, &ValidationError{Field: "password", Message: err.Error()}
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		OrgID:        actor.OrgID,
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: hash,
		Role:         input.Role,
		Active:       true,
	}

	err = s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		if err := s.users.WithTx(tx).Create(ctx, user); err != nil {
			return nil, err
		}
		return &MutationRecord{
			Action:       models.ActionUserCreated,
			ResourceType: "user",
			ResourceID:   user.ID,
			Metadata:     map[string]interface{}{"role": user.Role},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Get retrieves a user of the caller's organization.
func (s *UserService) Get(ctx context.Context, actor Actor, id string) (*models.User, error) {
	if err := requireUserAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByIDInOrg(ctx, actor.OrgID, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &NotFoundError{Resource: "user"}
	}
	return user, nil
}

// List retrieves users of the caller's organization with a total count.
func (s *UserService) List(ctx context.Context, actor Actor, limit, offset int) ([]*models.User, int, error) {
	if err := requireUserAdmin(actor); err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	users, err := s.users.List(ctx, actor.OrgID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.users.Count(ctx, actor.OrgID)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Update changes a user's name, role, or active flag. Admins cannot deactivate
// or demote themselves, so an organization always keeps a working admin.
func (s *UserService) Update(ctx context.Context, actor Actor, meta RequestMeta, id string, input UpdateUserInput) (*models.User, error) {
	user, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	changed := make([]string, 0, 3)
	if input.Name != nil {
		if err := validation.ValidateName("name", *input.Name, 120); err != nil {
			return nil, &ValidationError{Field: "name", Message: err.Error()}
		}
		user.Name = *input.Name
		changed = append(changed, "name")
	}
	if input.Role != nil {
		if !auth.ValidRole(auth.Role(*input.Role)) {
			return nil, &ValidationError{Field: "role", Message: "unknown role"}
		}
		if user.ID == actor.UserID && *input.Role != string(auth.RoleAdmin) {
			return nil, &ValidationError{Field: "role", Message: "admins cannot change their own role"}
		}
		user.Role = *input.Role
		changed = append(changed, "role")
	}
	if input.Active != nil {
		if user.ID == actor.UserID && !*input.Active {
			return nil, &ValidationError{Field: "active", Message: "admins cannot deactivate themselves"}
		}
		user.Active = *input.Active
		changed = append(changed, "active")
	}
	if len(changed) == 0 {
		return user, nil
	}

	action := models.ActionUserUpdated
	if input.Active != nil && !*input.Active {
		action = models.ActionUserDeactivated
	}

	err = s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		if err := s.users.WithTx(tx).Update(ctx, user); err != nil {
			return nil, err
		}
		return &MutationRecord{
			Action:       action,
			ResourceType: "user",
			ResourceID:   user.ID,
			Metadata:     map[string]interface{}{"changed": changed},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
