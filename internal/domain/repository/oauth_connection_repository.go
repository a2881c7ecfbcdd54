package repository

import (
	"context"
	"errors"

	"propguard/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrConnectionNotFound is returned when no OAuth connection matches.
var ErrConnectionNotFound = errors.New("oauth connection not found")

// OAuthConnectionRepository defines persistence for federated identity links.
type OAuthConnectionRepository interface {
	// Create persists a new provider link for a user.
	Create(ctx context.Context, conn *entity.OAuthConnection) error

	// FindByProviderIdentity retrieves a connection by (provider, providerUserID).
	FindByProviderIdentity(ctx context.Context, provider entity.ProviderType, providerUserID string) (*entity.OAuthConnection, error)

	// FindByUserAndProvider retrieves the user's connection for one provider.
	FindByUserAndProvider(ctx context.Context, userID uuid.UUID, provider entity.ProviderType) (*entity.OAuthConnection, error)

	// Update refreshes stored token material for an existing connection.
	Update(ctx context.Context, conn *entity.OAuthConnection) error
}
