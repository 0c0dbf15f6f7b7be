package repository

import (
	"context"
	"errors"

	"github.com/inkpress/account-service/internal/domain/entity"
)

var (
	// ErrNotFound is returned when an identifier or filter resolves to no record.
	ErrNotFound = errors.New("record not found")
	// ErrEmailTaken is returned when a write would violate email uniqueness.
	// The store constraint is authoritative; callers may pre-check as a fast path.
	ErrEmailTaken = errors.New("email already taken")
)

// UserPatch describes a partial update. Nil fields are left untouched,
// mirroring find-by-id-and-update semantics.
type UserPatch struct {
	Fullname     *string
	Email        *string
	Password     *string
	ProfileImage *string
	CoverImage   *string
}

// UserRepository defines the persistence operations the account service needs.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	// GetProfile returns the user with posts and comments expanded.
	GetProfile(ctx context.Context, id string) (*entity.Profile, error)
	// UpdateFields applies a partial update and returns the updated record.
	UpdateFields(ctx context.Context, id string, patch UserPatch) (*entity.User, error)
}
