package repository

import (
	"context"
	"errors"

	"propguard/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrCredentialNotFound is returned when a biometric credential is not found.
var ErrCredentialNotFound = errors.New("biometric credential not found")

// BiometricCredentialRepository defines persistence for public-key credentials.
type BiometricCredentialRepository interface {
	// Create persists a new credential. The credential identifier is unique;
	// the implementation surfaces duplicates as a constraint violation.
	Create(ctx context.Context, credential *entity.BiometricCredential) error

	// FindByCredentialID retrieves a credential by its opaque identifier.
	FindByCredentialID(ctx context.Context, credentialID string) (*entity.BiometricCredential, error)

	// FindActiveByUserID lists all active credentials registered for a user.
	FindActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.BiometricCredential, error)

	// Update modifies an existing credential (deactivation, last-used bump).
	Update(ctx context.Context, credential *entity.BiometricCredential) error

	// CountActiveByUserID returns the number of active credentials for a user.
	CountActiveByUserID(ctx context.Context, userID uuid.UUID) (int, error)
}
