package usecase

import (
	"context"

	"github.com/google/uuid"
)

// MFAEnrollmentOutput returns the provisioned secret and otpauth URI for
// authenticator apps.
type MFAEnrollmentOutput struct {
	Secret        string
	EnrollmentURI string
}

// MFAUsecase defines TOTP enrollment and verification operations.
type MFAUsecase interface {
	// StartEnrollment provisions a secret for the user. MFA stays disabled
	// until Enable confirms the user can produce valid codes.
	StartEnrollment(ctx context.Context, userID uuid.UUID) (*MFAEnrollmentOutput, error)

	// Enable turns MFA on after verifying one code against the pending secret.
	Enable(ctx context.Context, userID uuid.UUID, code string, device DeviceInfo) error

	// Disable turns MFA off and clears the stored secret. Requires a valid
	// current code so a hijacked session cannot silently drop the factor.
	Disable(ctx context.Context, userID uuid.UUID, code string, device DeviceInfo) error

	// VerifyCode checks a code against the user's enrolled secret.
	VerifyCode(ctx context.Context, userID uuid.UUID, code string) (bool, error)
}
