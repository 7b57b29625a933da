package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"library-lending/internal/model"
	"library-lending/pkg/apierror"
)

type userStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, page model.Page) ([]model.User, int, error)
}

type UserService struct {
	users userStore
}

func NewUserService(users userStore) *UserService {
	return &UserService{users: users}
}

// Register creates a user. Anyone may register as a member; creating a librarian takes a
// librarian actor.
func (s *UserService) Register(ctx context.Context, req model.RegisterRequest, actor *model.Principal) (model.User, error) {
	role := model.RoleMember
	if strings.TrimSpace(req.Role) != "" {
		parsed, ok := model.ParseRole(req.Role)
		if !ok {
			return model.User{}, apierror.BadRequest("invalid role", req.Role)
		}
		role = parsed
	}

	if role == model.RoleLibrarian {
		if actor == nil {
			return model.User{}, model.ErrUnauthenticated
		}
		if !actor.HasRole(model.RoleLibrarian) {
			return model.User{}, model.ErrInsufficientRole
		}
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	membershipID := strings.TrimSpace(req.MembershipID)
	if membershipID == "" {
		membershipID = "M-" + strings.ToUpper(uuid.NewString()[:8])
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, model.User{
		Name:         name,
		Email:        email,
		MembershipID: membershipID,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return model.User{}, err
	}

	slog.Info("user registered", "user_id", user.ID, "email", user.Email, "role", user.Role)
	return user, nil
}

// EnsureUser creates the user unless one with the same email exists.
func (s *UserService) EnsureUser(ctx context.Context, name string, email string, password string, role model.Role) (model.User, bool, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, false, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return model.User{}, false, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, model.User{
		Name:         name,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		MembershipID: "M-" + strings.ToUpper(uuid.NewString()[:8]),
		PasswordHash: hash,
		Role:         role,
	})
	if errors.Is(err, model.ErrDuplicate) {
		existing, err = s.users.FindByEmail(ctx, email)
		return existing, false, err
	}
	if err != nil {
		return model.User{}, false, err
	}
	return user, true, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (model.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return s.users.FindByEmail(ctx, email)
}

func (s *UserService) List(ctx context.Context, page model.Page) ([]model.User, *model.Meta, error) {
	users, total, err := s.users.List(ctx, page)
	if err != nil {
		return nil, nil, err
	}
	return users, page.Meta(total), nil
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("user deleted", "user_id", id)
	return nil
}
