package postgres

import (
	"context"

	"propguard/internal/domain/entity"
	domainerrors "propguard/internal/domain/errors"
	"propguard/internal/domain/repository"
	"propguard/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// oauthConnectionRepository implements the domain's OAuthConnectionRepository interface using GORM.
type oauthConnectionRepository struct {
	db *gorm.DB
}

// NewOAuthConnectionRepository is the constructor for oauthConnectionRepository.
func NewOAuthConnectionRepository(db *gorm.DB) repository.OAuthConnectionRepository {
	return &oauthConnectionRepository{db: db}
}

// Create persists a new provider link for a user.
func (repo *oauthConnectionRepository) Create(ctx context.Context, conn *entity.OAuthConnection) error {
	connM := fromOAuthConnectionDomain(conn)

	if err := repo.db.WithContext(ctx).Create(connM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrCredentialConflict.WrapMessage("provider identity already linked")
		}
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrUserNotFound
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create oauth connection")
	}

	conn.ID = connM.ID
	conn.CreatedAt = connM.CreatedAt
	conn.UpdatedAt = connM.UpdatedAt

	return nil
}

// FindByProviderIdentity retrieves a connection by (provider, providerUserID).
func (repo *oauthConnectionRepository) FindByProviderIdentity(ctx context.Context, provider entity.ProviderType, providerUserID string) (*entity.OAuthConnection, error) {
	var connM model.OAuthConnectionModel
	err := repo.db.WithContext(ctx).
		First(&connM, "provider = ? AND provider_user_id = ?", provider.String(), providerUserID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrConnectionNotFound
		}

		return nil, errors.Wrap(err, "failed to find oauth connection by provider identity")
	}

	return toOAuthConnectionDomain(&connM), nil
}

// FindByUserAndProvider retrieves the user's connection for one provider.
func (repo *oauthConnectionRepository) FindByUserAndProvider(ctx context.Context, userID uuid.UUID, provider entity.ProviderType) (*entity.OAuthConnection, error) {
	var connM model.OAuthConnectionModel
	err := repo.db.WithContext(ctx).
		First(&connM, "user_id = ? AND provider = ?", userID, provider.String()).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrConnectionNotFound
		}

		return nil, errors.Wrap(err, "failed to find oauth connection by user")
	}

	return toOAuthConnectionDomain(&connM), nil
}

// Update refreshes stored token material for an existing connection.
func (repo *oauthConnectionRepository) Update(ctx context.Context, conn *entity.OAuthConnection) error {
	connM := fromOAuthConnectionDomain(conn)

	if err := repo.db.WithContext(ctx).Save(connM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to update oauth connection")
	}

	conn.UpdatedAt = connM.UpdatedAt

	return nil
}

// --- Mapper Functions ---

// toOAuthConnectionDomain converts a GORM model to a domain OAuthConnection.
func toOAuthConnectionDomain(data *model.OAuthConnectionModel) *entity.OAuthConnection {
	if data == nil {
		return nil
	}

	return &entity.OAuthConnection{
		ID:             data.ID,
		UserID:         data.UserID,
		Provider:       entity.ProviderType(data.Provider),
		ProviderUserID: data.ProviderUserID,
		AccessToken:    data.AccessToken,
		RefreshToken:   data.RefreshToken,
		TokenExpiresAt: data.TokenExpiresAt,
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
	}
}

// fromOAuthConnectionDomain converts a domain OAuthConnection to a GORM model.
func fromOAuthConnectionDomain(data *entity.OAuthConnection) *model.OAuthConnectionModel {
	if data == nil {
		return nil
	}

	return &model.OAuthConnectionModel{
		ID:             data.ID,
		UserID:         data.UserID,
		Provider:       data.Provider.String(),
		ProviderUserID: data.ProviderUserID,
		AccessToken:    data.AccessToken,
		RefreshToken:   data.RefreshToken,
		TokenExpiresAt: data.TokenExpiresAt,
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
	}
}
