package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"roombooking/internal/domain"
)

const minPasswordLen = 8

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type authService struct {
	userRepo    domain.UserRepository
	hasher      domain.PasswordHasher
	tokenIssuer domain.TokenIssuer
	tokenExpiry time.Duration
	logger      *slog.Logger
}

// NewAuthService creates an AuthService with the given repository and auth ports.
func NewAuthService(userRepo domain.UserRepository, hasher domain.PasswordHasher, tokenIssuer domain.TokenIssuer, tokenExpiry time.Duration, logger *slog.Logger) domain.AuthService {
	return &authService{
		userRepo:    userRepo,
		hasher:      hasher,
		tokenIssuer: tokenIssuer,
		tokenExpiry: tokenExpiry,
		logger:      orDefault(logger),
	}
}

// SignUp registers a student or teacher. Admins come from EnsureAdmin or
// AdminCreateUser.
func (s *authService) SignUp(ctx context.Context, in domain.SignUpInput) (*domain.User, error) {
	switch in.Role {
	case "":
		in.Role = domain.RoleStudent
	case domain.RoleStudent, domain.RoleTeacher:
	default:
		return nil, fmt.Errorf("%w: role must be student or teacher", domain.ErrInvalidInput)
	}
	user, err := s.register(ctx, in)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "role", string(user.Role))
	return user, nil
}

// AdminCreateUser creates an account with any role. The role defaults to student.
func (s *authService) AdminCreateUser(ctx context.Context, in domain.SignUpInput) (*domain.User, error) {
	if in.Role == "" {
		in.Role = domain.RoleStudent
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, in.Role)
	}
	user, err := s.register(ctx, in)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user created by admin", "user_id", user.ID, "role", string(user.Role))
	return user, nil
}

func (s *authService) register(ctx context.Context, in domain.SignUpInput) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	user, err := s.newUser(name, email, in.Role, in.Password)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateName) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email != "" && !emailRegexp.MatchString(email) {
		return "", fmt.Errorf("%w: invalid email format", domain.ErrInvalidInput)
	}
	return email, nil
}

func checkPassword(password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLen)
	}
	return nil
}

func (s *authService) Login(ctx context.Context, name, password string) (string, *domain.User, error) {
	user, err := s.userRepo.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, user.Salt, password); err != nil {
		return "", nil, domain.ErrInvalidCredentials
	}
	token, err := s.tokenIssuer.Issue(user, s.tokenExpiry)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, user, nil
}

func (s *authService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *authService) newUser(name, email string, role domain.Role, password string) (*domain.User, error) {
	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	hash, err := s.hasher.Hash(salt, password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.NewUser(name, email, role, now, now)
	user.PasswordHash = hash
	user.Salt = salt
	return user, nil
}

func (s *authService) AdminListUsers(ctx context.Context, filter domain.UserFilter, page domain.PaginationParams) ([]*domain.User, int, error) {
	for _, role := range filter.Roles {
		if !role.Valid() {
			return nil, 0, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
		}
	}
	users, total, err := s.userRepo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// AdminUpdateUser applies patch to the user with the given id. Renaming
// onto a taken name yields ErrDuplicateName.
func (s *authService) AdminUpdateUser(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	user, err := s.Me(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidInput)
		}
		user.Name = name
	}
	if patch.Email != nil {
		if user.Email, err = normalizeEmail(*patch.Email); err != nil {
			return nil, err
		}
	}
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, *patch.Role)
		}
		user.Role = *patch.Role
	}
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user updated", "user_id", user.ID, "role", string(user.Role))
	return user, nil
}

// ResetPassword replaces the password of the user with the given id,
// generating a fresh salt.
func (s *authService) ResetPassword(ctx context.Context, id, password string) (*domain.User, error) {
	if err := checkPassword(password); err != nil {
		return nil, err
	}
	user, err := s.Me(ctx, id)
	if err != nil {
		return nil, err
	}
	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	hash, err := s.hasher.Hash(salt, password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.Salt, user.PasswordHash = salt, hash
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID)
	return user, nil
}

func (s *authService) save(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()
	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrDuplicateName) {
			return err
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// EnsureAdmin creates the administrator account named name unless a user with
// that name already exists. It is a no-op when name or password is empty.
func EnsureAdmin(ctx context.Context, userRepo domain.UserRepository, hasher domain.PasswordHasher, name, password string, logger *slog.Logger) error {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return nil
	}
	logger = orDefault(logger)
	if _, err := userRepo.GetByName(ctx, name); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	s := &authService{hasher: hasher}
	user, err := s.newUser(name, "", domain.RoleAdmin, password)
	if err != nil {
		return err
	}
	if err := userRepo.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	logger.InfoContext(ctx, "admin account created", "user_id", user.ID, "name", name)
	return nil
}
