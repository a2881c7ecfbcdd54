package service

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Challenge purposes recognized by the store. The purpose namespaces keys so
// a biometric challenge can never be consumed as a password-reset token.
const (
	ChallengePurposeBiometricRegistration   = "biometric_registration"
	ChallengePurposeBiometricAuthentication = "biometric_authentication"
	ChallengePurposeMFALogin                = "mfa_login"
	ChallengePurposePasswordReset           = "password_reset"
	ChallengePurposeSSOState                = "sso_state"
)

// Challenge is a short-lived, single-use value bound to a user.
type Challenge struct {
	UserID    uuid.UUID
	Purpose   string
	ExpiresAt time.Time
}

// ChallengeStore is an injectable TTL-keyed store for single-use challenges.
// Implementations sweep expired entries; a consumed or expired challenge is
// never returned twice. The in-process implementation is per-instance state;
// a shared cache implementation can stand in for horizontally scaled
// deployments without touching callers.
type ChallengeStore interface {
	// Issue stores a challenge under key until its ExpiresAt passes.
	Issue(ctx context.Context, key string, challenge Challenge) error

	// Consume removes and returns the challenge for key. The boolean is false
	// when the key is unknown, expired, or already consumed.
	Consume(ctx context.Context, key string) (Challenge, bool)
}
