package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"library/internal/errors"
	"library/internal/model"
	"library/internal/repository"
)

const minPasswordLength = 8

// CreateUserInput holds the fields of a new user. A zero Role means student.
type CreateUserInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
	Role      model.Role
}

// UpdateUserInput holds a partial user update; nil fields are left unchanged.
type UpdateUserInput struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	Password  *string
	Role      *model.Role
}

// UserService manages students and librarians.
type UserService interface {
	GetUser(ctx context.Context, id model.ID) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	// ListUsers returns every user, or only those with the given role.
	ListUsers(ctx context.Context, role *model.Role) ([]model.User, error)
	CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error)
	UpdateUser(ctx context.Context, id model.ID, in UpdateUserInput) (*model.User, error)
	DeleteUser(ctx context.Context, id model.ID) error
	// EnsureLibrarian creates a librarian account when none exists and
	// reports whether it did.
	EnsureLibrarian(ctx context.Context, username, email, password string) (*model.User, bool, error)
}

type userService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(store repository.Store, opts ...Option) UserService {
	o := newOptions(opts)
	return &userService{store: store, logger: o.logger}
}

func (s *userService) GetUser(ctx context.Context, id model.ID) (*model.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, errors.CodeUserNotFound, "user", id)
	}
	return user, nil
}

func (s *userService) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.store.Users().GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errors.NotFound(errors.CodeUserNotFound, "user '%s' not found", username)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, role *model.Role) ([]model.User, error) {
	var (
		users []model.User
		err   error
	)
	if role == nil {
		users, err = s.store.Users().GetAll(ctx)
	} else {
		users, err = s.store.Users().FindByRole(ctx, *role)
	}
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *userService) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	role := in.Role
	if role == 0 {
		role = model.RoleStudent
	}
	user := &model.User{
		ID:        model.Unassigned(),
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.TrimSpace(in.Email),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      role,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := checkDuplicateUser(ctx, tx, user); err != nil {
			return err
		}
		if err := tx.Users().Save(ctx, user, in.Password); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user created", "user_id", user.ID.Value(), "username", user.Username, "role", user.Role.String())
	return user, nil
}

func (s *userService) UpdateUser(ctx context.Context, id model.ID, in UpdateUserInput) (*model.User, error) {
	password := ""
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
		password = *in.Password
	}

	var user *model.User
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		user, err = tx.Users().GetByIDForUpdate(ctx, id)
		if err != nil {
			return lookupError(err, errors.CodeUserNotFound, "user", id)
		}
		previousRole := user.Role

		if in.Username != nil {
			user.Username = strings.TrimSpace(*in.Username)
		}
		if in.Email != nil {
			user.Email = strings.TrimSpace(*in.Email)
		}
		if in.FirstName != nil {
			user.FirstName = strings.TrimSpace(*in.FirstName)
		}
		if in.LastName != nil {
			user.LastName = strings.TrimSpace(*in.LastName)
		}
		if in.Role != nil {
			user.Role = *in.Role
		}
		if err := user.Validate(); err != nil {
			return err
		}
		if err := checkDuplicateUser(ctx, tx, user); err != nil {
			return err
		}
		if err := checkRoleChange(ctx, tx, user, previousRole); err != nil {
			return err
		}

		if err := tx.Users().Save(ctx, user, password); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user updated", "user_id", id)
	return user, nil
}

func (s *userService) DeleteUser(ctx context.Context, id model.ID) error {
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		user, err := tx.Users().GetByIDForUpdate(ctx, id)
		if err != nil {
			return lookupError(err, errors.CodeUserNotFound, "user", id)
		}

		if err := checkNoActiveLoans(ctx, tx, user); err != nil {
			return err
		}
		if user.IsLibrarian() {
			if err := checkNotLastLibrarian(ctx, tx); err != nil {
				return err
			}
		}

		if _, err := tx.Users().Delete(ctx, id); err != nil {
			return fmt.Errorf("delete user %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user deleted", "user_id", id)
	return nil
}

func (s *userService) EnsureLibrarian(ctx context.Context, username, email, password string) (*model.User, bool, error) {
	count, err := s.store.Users().CountByRole(ctx, model.RoleLibrarian)
	if err != nil {
		return nil, false, fmt.Errorf("count librarians: %w", err)
	}
	if count > 0 {
		return nil, false, nil
	}

	user, err := s.CreateUser(ctx, CreateUserInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     model.RoleLibrarian,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create librarian: %w", err)
	}
	return user, true, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return errors.Validation(errors.CodeInvalidUser, "password must be at least %d characters", minPasswordLength)
	}
	return nil
}

func checkDuplicateUser(ctx context.Context, tx repository.Store, user *model.User) error {
	existing, err := tx.Users().GetByUsername(ctx, user.Username)
	switch {
	case err == nil && !existing.ID.Equal(user.ID):
		return errors.Validation(errors.CodeDuplicateUsername, "username '%s' is already taken", user.Username)
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("check username: %w", err)
	}

	existing, err = tx.Users().GetByEmail(ctx, user.Email)
	switch {
	case err == nil && !existing.ID.Equal(user.ID):
		return errors.Validation(errors.CodeDuplicateEmail, "email '%s' is already registered", user.Email)
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("check email: %w", err)
	}
	return nil
}

func checkRoleChange(ctx context.Context, tx repository.Store, user *model.User, previous model.Role) error {
	if user.Role == previous {
		return nil
	}
	switch previous {
	case model.RoleLibrarian:
		return checkNotLastLibrarian(ctx, tx)
	case model.RoleStudent:
		return checkNoActiveLoans(ctx, tx, user)
	}
	return nil
}

func checkNoActiveLoans(ctx context.Context, tx repository.Store, user *model.User) error {
	loans, err := tx.Loans().FindByStudent(ctx, user.ID.Value())
	if err != nil {
		return fmt.Errorf("find loans of user %s: %w", user.ID.Value(), err)
	}
	if active := model.ActiveLoans(loans); len(active) > 0 {
		return errors.RuleViolation(errors.CodeUserHasActiveLoans,
			"user '%s' has %d active loan(s)", user.Username, len(active))
	}
	return nil
}

func checkNotLastLibrarian(ctx context.Context, tx repository.Store) error {
	count, err := tx.Users().CountByRole(ctx, model.RoleLibrarian)
	if err != nil {
		return fmt.Errorf("count librarians: %w", err)
	}
	if count <= 1 {
		return errors.RuleViolation(errors.CodeLastLibrarian, "cannot remove the last librarian")
	}
	return nil
}
