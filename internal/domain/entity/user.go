// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// PasswordHistoryLimit bounds how many previous password hashes are retained
// per user, most-recent-first.
const PasswordHistoryLimit = 5

// User is the core identity in the system. Every authentication path
// (password, MFA, biometric, SSO) resolves to exactly one User.
type User struct {
	ID           uuid.UUID // The unique identifier for the user.
	Email        string    // Primary login identifier, unique across the platform.
	Name         string    // Display name.
	PasswordHash string    // bcrypt hash of the current password. Empty for SSO-only accounts.

	// Lockout state. IsLocked implies LockedUntil is set and the failed-attempt
	// counter reached the configured threshold at lock time.
	FailedLoginAttempts int
	IsLocked            bool
	LockedUntil         *time.Time

	// Multi-factor state. MFASecret is set once enrollment starts and is
	// cleared when MFA is disabled.
	MFAEnabled bool
	MFASecret  string

	// Biometric state. Cleared when the last active credential is removed.
	BiometricEnabled bool

	// Federated login state.
	SSOEnabled    bool
	SSOProvider   ProviderType
	SSOProviderID string

	// PasswordHistory holds up to PasswordHistoryLimit previous hashes,
	// most-recent-first, used to reject password reuse.
	PasswordHistory     []string
	PasswordLastChanged *time.Time

	// RefreshTokenHash is the single-slot hash of the most recently issued
	// refresh token. Issuing a new one implicitly invalidates the previous.
	RefreshTokenHash string

	Role             AccountRole       // Primary static role.
	SecuritySettings *SecuritySettings // Per-user security overrides. Nil means process defaults.

	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsCurrentlyLocked reports whether the lockout window is still in effect at now.
func (u *User) IsCurrentlyLocked(now time.Time) bool {
	return u.IsLocked && u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// PushPasswordHistory prepends hash and trims the history to the bounded limit.
func (u *User) PushPasswordHistory(hash string) {
	history := make([]string, 0, PasswordHistoryLimit)
	history = append(history, hash)
	for _, h := range u.PasswordHistory {
		if len(history) == PasswordHistoryLimit {
			break
		}
		history = append(history, h)
	}
	u.PasswordHistory = history
}

// MFARequired reports whether login must step up to MFA verification,
// either because the user enrolled or their security settings demand it.
func (u *User) MFARequired() bool {
	if u.MFAEnabled {
		return true
	}

	return u.SecuritySettings != nil && u.SecuritySettings.RequireMFA
}

// SecuritySettings carries per-user overrides for the process-wide
// authentication policy. Nil pointer fields fall back to configuration.
type SecuritySettings struct {
	UserID                 uuid.UUID
	RequireMFA             bool // Forces the MFA step-up even when MFAEnabled is false.
	MaxFailedAttempts      *int // Override for the lockout threshold.
	LockoutDurationMinutes *int // Override for the lockout duration.
	SessionTimeoutMinutes  *int // Override for the session idle timeout.
	UpdatedAt              time.Time
}
