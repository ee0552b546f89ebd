package domain

import (
	"context"
	"time"
)

// Role decides what a user may do. Students and teachers book rooms for
// themselves; admins manage rooms, lessons and every reservation.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// User is an account that can hold reservations. Name doubles as the
// login and is unique.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser builds an unsaved user; the repository assigns the ID.
func NewUser(name, email string, role Role, createdAt, updatedAt time.Time) *User {
	return &User{Name: name, Email: email, Role: role, CreatedAt: createdAt, UpdatedAt: updatedAt}
}

// Claims is the identity carried by a verified token.
type Claims struct {
	UserID string
	Name   string
	Role   Role
}

// IsAdmin reports whether the claims grant administrator rights.
func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// PasswordHasher stores passwords as salted one-way hashes. Compare
// returns ErrInvalidCredentials on a mismatch.
type PasswordHasher interface {
	GenerateSalt() (string, error)
	Hash(salt, password string) (hash string, err error)
	Compare(hash, salt, password string) error
}

type TokenIssuer interface {
	Issue(user *User, expiry time.Duration) (string, error)
}

// TokenVerifier returns ErrUnauthorized for any token it does not accept.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// UserFilter narrows an admin user listing. Query matches a substring of
// the name, ignoring case; an empty Roles matches every role.
type UserFilter struct {
	Query string
	Roles []Role
}

// UserRepository returns ErrNotFound for unknown users and
// ErrDuplicateName when Create or Update meets a taken name.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByName(ctx context.Context, name string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	// List returns one page ordered by name and the total match count.
	List(ctx context.Context, filter UserFilter, page PaginationParams) ([]*User, int, error)
	// Update overwrites every mutable field of user, credentials included.
	Update(ctx context.Context, user *User) error
}

// SignUpInput carries the fields of a self-service registration.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

// UserPatch lists the fields an admin changes; nil leaves a field as is.
// An empty Email clears it.
type UserPatch struct {
	Name  *string
	Email *string
	Role  *Role
}

type AuthService interface {
	SignUp(ctx context.Context, in SignUpInput) (*User, error)
	Login(ctx context.Context, name, password string) (token string, user *User, err error)
	Me(ctx context.Context, userID string) (*User, error)

	AdminListUsers(ctx context.Context, filter UserFilter, page PaginationParams) ([]*User, int, error)
	// AdminCreateUser creates an account with any role, admin included.
	AdminCreateUser(ctx context.Context, in SignUpInput) (*User, error)
	AdminUpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error)
	ResetPassword(ctx context.Context, id, password string) (*User, error)
}
