package entity

import (
	"time"

	"github.com/google/uuid"
)

// ProviderType identifies an external identity provider.
type ProviderType string

const (
	// ProviderTypeGoogle indicates Google Sign-In.
	ProviderTypeGoogle ProviderType = "google"
	// ProviderTypeMicrosoft indicates Microsoft identity platform.
	ProviderTypeMicrosoft ProviderType = "microsoft"
)

// String returns the string representation of the ProviderType.
func (p ProviderType) String() string {
	return string(p)
}

// IsValid checks if the ProviderType is a recognized provider.
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderTypeGoogle, ProviderTypeMicrosoft:
		return true
	default:
		return false
	}
}

// OAuthConnection links a user to one external identity, carrying the
// provider-issued token material for later API access.
type OAuthConnection struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Provider       ProviderType
	ProviderUserID string // The provider's stable subject identifier.
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
