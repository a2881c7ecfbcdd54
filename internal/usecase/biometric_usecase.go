package usecase

import (
	"context"
	"time"

	"propguard/internal/domain/entity"

	"github.com/google/uuid"
)

// ChallengeOutput returns a server-issued challenge for the client to sign.
type ChallengeOutput struct {
	Challenge string
	ExpiresAt time.Time
}

// RegisterCredentialInput registers a device public key under a consumed
// registration challenge.
type RegisterCredentialInput struct {
	UserID       uuid.UUID
	Challenge    string
	CredentialID string
	PublicKey    string
	DeviceType   string
	IPAddress    string
	UserAgent    string
}

// BiometricLoginInput answers an authentication challenge with a credential
// assertion.
type BiometricLoginInput struct {
	Email        string
	Challenge    string
	CredentialID string
	DeviceName   string
	IPAddress    string
	UserAgent    string
}

// BiometricUsecase defines challenge-based device credential operations.
type BiometricUsecase interface {
	// GenerateRegistrationOptions issues a single-use registration challenge.
	GenerateRegistrationOptions(ctx context.Context, userID uuid.UUID) (*ChallengeOutput, error)

	// GenerateAuthenticationOptions issues a single-use login challenge for
	// the account identified by email. The response shape is identical
	// whether or not the account exists or has credentials.
	GenerateAuthenticationOptions(ctx context.Context, email string) (*ChallengeOutput, error)

	// RegisterCredential stores a new device credential and marks the user
	// biometric-enabled.
	RegisterCredential(ctx context.Context, input RegisterCredentialInput) (*entity.BiometricCredential, error)

	// Login verifies an assertion against a previously issued challenge and
	// completes authentication on success.
	Login(ctx context.Context, input BiometricLoginInput) (*LoginOutput, error)

	// ListCredentials returns the user's active credentials.
	ListCredentials(ctx context.Context, userID uuid.UUID) ([]*entity.BiometricCredential, error)

	// RemoveCredential deactivates one credential; when none remain active
	// the user's biometric flag is cleared.
	RemoveCredential(ctx context.Context, userID uuid.UUID, credentialID string, device DeviceInfo) error
}
