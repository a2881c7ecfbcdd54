// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"
	"time"

	"propguard/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrUserNotFound is a domain-specific error returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the standard operations for user persistence.
// The application layer depends on this interface, not the concrete implementation.
type UserRepository interface {
	// FindByID retrieves a single user by their unique ID, including security settings.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByEmail retrieves a single user by their email address.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// Create persists a new user entity to the storage.
	Create(ctx context.Context, user *entity.User) error

	// Update modifies an existing user entity in the storage.
	Update(ctx context.Context, user *entity.User) error

	// IncrementFailedLogins atomically increments the failed-attempt counter in
	// a single UPDATE and returns the new value. Concurrent failures must never
	// under-count, so this is not a read-modify-write.
	IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error)

	// Lock marks the account locked until the given time.
	Lock(ctx context.Context, id uuid.UUID, until time.Time) error

	// ResetLockout clears the failed-attempt counter and lock state unconditionally.
	ResetLockout(ctx context.Context, id uuid.UUID) error

	// UpdateRefreshTokenHash overwrites the single-slot refresh token hash.
	// The previously issued refresh token becomes unusable.
	UpdateRefreshTokenHash(ctx context.Context, id uuid.UUID, tokenHash string) error

	// UpsertSecuritySettings creates or replaces the per-user security overrides.
	UpsertSecuritySettings(ctx context.Context, settings *entity.SecuritySettings) error

}
