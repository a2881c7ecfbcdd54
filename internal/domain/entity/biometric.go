package entity

import (
	"time"

	"github.com/google/uuid"
)

// BiometricCredential is a registered public-key credential bound to a device,
// used to answer server-issued challenges without a shared secret.
type BiometricCredential struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	CredentialID string // Opaque identifier chosen by the authenticator, unique.
	PublicKey    string // Base64-encoded public key material.
	DeviceType   string // e.g. "fingerprint", "face", "security-key".
	IsActive     bool
	LastUsed     *time.Time
	CreatedAt    time.Time
}

// TruncatedCredentialID returns a log-safe prefix of the credential identifier.
// Full credential identifiers are never written to the audit log.
func (c *BiometricCredential) TruncatedCredentialID() string {
	return TruncateCredentialID(c.CredentialID)
}

// TruncateCredentialID shortens a credential identifier for audit purposes.
func TruncateCredentialID(credentialID string) string {
	const visible = 8
	if len(credentialID) <= visible {
		return credentialID
	}

	return credentialID[:visible] + "..."
}
