package service

// TOTPEnrollment is the result of provisioning a new time-based one-time
// password secret for a user.
type TOTPEnrollment struct {
	Secret        string // Base32-encoded shared secret.
	EnrollmentURI string // otpauth:// URI for authenticator apps.
}

// TOTPService defines time-based one-time password operations used for MFA.
// The standard 30-second step and 6-digit codes apply; no replay-window
// widening beyond the library default.
type TOTPService interface {
	// GenerateSecret provisions a new secret for the given account identity.
	GenerateSecret(accountName string) (*TOTPEnrollment, error)

	// Validate reports whether the code is currently valid for the secret.
	Validate(secret, code string) bool
}
