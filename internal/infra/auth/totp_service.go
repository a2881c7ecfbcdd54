package auth

import (
	"github.com/pkg/errors"
	"github.com/pquerna/otp/totp"

	"propguard/config"
	"propguard/internal/domain/service"
)

// totpService implements service.TOTPService using the standard time-step
// TOTP algorithm (30-second step, 6 digits).
type totpService struct {
	issuer string
}

// NewTOTPService is the constructor for totpService.
func NewTOTPService(cfg *config.Config) service.TOTPService {
	return &totpService{issuer: cfg.MFA.Issuer}
}

// GenerateSecret provisions a new shared secret for the given account identity.
func (s *totpService) GenerateSecret(accountName string) (*service.TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate TOTP secret")
	}

	return &service.TOTPEnrollment{
		Secret:        key.Secret(),
		EnrollmentURI: key.URL(),
	}, nil
}

// Validate reports whether the code is currently valid for the secret.
func (s *totpService) Validate(secret, code string) bool {
	return totp.Validate(code, secret)
}
