package service

import (
	"context"
	"time"

	"propguard/internal/domain/entity"
)

// ExternalIdentity is the normalized identity returned by a provider's
// userinfo endpoint, independent of provider-specific payload shapes.
type ExternalIdentity struct {
	ID        string // The provider's stable subject identifier.
	Email     string
	FirstName string
	LastName  string
	Provider  entity.ProviderType
}

// ProviderToken is the token material returned by a code exchange.
type ProviderToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// IdentityProvider drives the OAuth2 authorization-code flow against one
// configured external identity provider.
type IdentityProvider interface {
	// Name returns the provider identity.
	Name() entity.ProviderType

	// AuthorizationURL builds the provider's authorize endpoint URL, always
	// requesting offline access and forcing the consent prompt.
	AuthorizationURL(state string) string

	// ExchangeCode trades an authorization code for provider tokens.
	ExchangeCode(ctx context.Context, code string) (*ProviderToken, error)

	// FetchIdentity loads and normalizes the provider's userinfo payload.
	FetchIdentity(ctx context.Context, accessToken string) (*ExternalIdentity, error)
}

// ProviderRegistry resolves configured identity providers by name.
type ProviderRegistry interface {
	// Provider returns the client for the named provider. Unknown names fail
	// with the unsupported-provider error, known but unconfigured ones with
	// the not-configured error.
	Provider(name string) (IdentityProvider, error)
}
