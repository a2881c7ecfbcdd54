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

// biometricRepository implements the domain's BiometricCredentialRepository interface using GORM.
type biometricRepository struct {
	db *gorm.DB
}

// NewBiometricCredentialRepository is the constructor for biometricRepository.
func NewBiometricCredentialRepository(db *gorm.DB) repository.BiometricCredentialRepository {
	return &biometricRepository{db: db}
}

// Create persists a new credential. Duplicate credential identifiers surface
// as a conflict error.
func (repo *biometricRepository) Create(ctx context.Context, credential *entity.BiometricCredential) error {
	credentialM := fromBiometricDomain(credential)

	if err := repo.db.WithContext(ctx).Create(credentialM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrCredentialConflict.WrapMessage("credential id already registered")
		}
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrUserNotFound
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create biometric credential")
	}

	credential.ID = credentialM.ID
	credential.CreatedAt = credentialM.CreatedAt

	return nil
}

// FindByCredentialID retrieves a credential by its opaque identifier.
func (repo *biometricRepository) FindByCredentialID(ctx context.Context, credentialID string) (*entity.BiometricCredential, error) {
	var credentialM model.BiometricCredentialModel
	err := repo.db.WithContext(ctx).First(&credentialM, "credential_id = ?", credentialID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCredentialNotFound
		}

		return nil, errors.Wrap(err, "failed to find biometric credential")
	}

	return toBiometricDomain(&credentialM), nil
}

// FindActiveByUserID lists all active credentials registered for a user.
func (repo *biometricRepository) FindActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.BiometricCredential, error) {
	var credentialMs []*model.BiometricCredentialModel
	err := repo.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		Find(&credentialMs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list biometric credentials")
	}

	credentials := make([]*entity.BiometricCredential, 0, len(credentialMs))
	for _, credentialM := range credentialMs {
		credentials = append(credentials, toBiometricDomain(credentialM))
	}

	return credentials, nil
}

// Update modifies an existing credential.
func (repo *biometricRepository) Update(ctx context.Context, credential *entity.BiometricCredential) error {
	credentialM := fromBiometricDomain(credential)

	if err := repo.db.WithContext(ctx).Save(credentialM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to update biometric credential")
	}

	return nil
}

// CountActiveByUserID returns the number of active credentials for a user.
func (repo *biometricRepository) CountActiveByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&model.BiometricCredentialModel{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count biometric credentials")
	}

	return int(count), nil
}

// --- Mapper Functions ---

// toBiometricDomain converts a GORM model to a domain BiometricCredential.
func toBiometricDomain(data *model.BiometricCredentialModel) *entity.BiometricCredential {
	if data == nil {
		return nil
	}

	return &entity.BiometricCredential{
		ID:           data.ID,
		UserID:       data.UserID,
		CredentialID: data.CredentialID,
		PublicKey:    data.PublicKey,
		DeviceType:   data.DeviceType,
		IsActive:     data.IsActive,
		LastUsed:     data.LastUsed,
		CreatedAt:    data.CreatedAt,
	}
}

// fromBiometricDomain converts a domain BiometricCredential to a GORM model.
func fromBiometricDomain(data *entity.BiometricCredential) *model.BiometricCredentialModel {
	if data == nil {
		return nil
	}

	return &model.BiometricCredentialModel{
		ID:           data.ID,
		UserID:       data.UserID,
		CredentialID: data.CredentialID,
		PublicKey:    data.PublicKey,
		DeviceType:   data.DeviceType,
		IsActive:     data.IsActive,
		LastUsed:     data.LastUsed,
		CreatedAt:    data.CreatedAt,
	}
}
