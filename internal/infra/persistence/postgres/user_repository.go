// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"time"

	"propguard/internal/domain/entity"
	domainerrors "propguard/internal/domain/errors"
	"propguard/internal/domain/repository"
	"propguard/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// userRepository implements the domain's UserRepository interface using GORM.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository is the constructor for userRepository.
// It returns the repository as a domain interface, adhering to dependency inversion.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

// FindByID retrieves a single user by their unique ID, preloading security settings.
func (repo *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var userM model.UserModel
	err := repo.db.WithContext(ctx).
		Preload("SecuritySettings").
		First(&userM, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user by id")
	}

	return toUserDomain(&userM), nil
}

// FindByEmail retrieves a single user by their email address.
func (repo *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var userM model.UserModel
	err := repo.db.WithContext(ctx).
		Preload("SecuritySettings").
		First(&userM, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user by email")
	}

	return toUserDomain(&userM), nil
}

// Create persists a new user entity to the database.
func (repo *userRepository) Create(ctx context.Context, user *entity.User) error {
	userM := fromUserDomain(user)

	if err := repo.db.WithContext(ctx).Create(userM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrUserAlreadyExists.WrapMessage("email already exists")
		}
		if isNotNullConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("missing required user information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create user")
	}

	user.ID = userM.ID
	user.CreatedAt = userM.CreatedAt
	user.UpdatedAt = userM.UpdatedAt

	return nil
}

// Update modifies an existing user row. Security settings are managed
// separately through UpsertSecuritySettings.
func (repo *userRepository) Update(ctx context.Context, user *entity.User) error {
	userM := fromUserDomain(user)

	err := repo.db.WithContext(ctx).Omit("SecuritySettings").Save(userM).Error
	if err != nil {
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrUserAlreadyExists.WrapMessage("email already exists")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to update user")
	}

	user.UpdatedAt = userM.UpdatedAt

	return nil
}

// IncrementFailedLogins bumps the failed-attempt counter in one UPDATE and
// returns the new value, so concurrent failures never under-count.
func (repo *userRepository) IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int
	result := repo.db.WithContext(ctx).Raw(
		`UPDATE users
		 SET failed_login_attempts = failed_login_attempts + 1, updated_at = NOW()
		 WHERE id = ?
		 RETURNING failed_login_attempts`, id).Scan(&attempts)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to increment failed logins")
	}
	if result.RowsAffected == 0 {
		return 0, repository.ErrUserNotFound
	}

	return attempts, nil
}

// Lock marks the account locked until the given time.
func (repo *userRepository) Lock(ctx context.Context, id uuid.UUID, until time.Time) error {
	result := repo.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_locked":    true,
			"locked_until": until,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to lock user")
	}
	if result.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}

// ResetLockout clears the failed-attempt counter and lock state.
func (repo *userRepository) ResetLockout(ctx context.Context, id uuid.UUID) error {
	err := repo.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"failed_login_attempts": 0,
			"is_locked":             false,
			"locked_until":          nil,
		}).Error
	if err != nil {
		return errors.Wrap(err, "failed to reset lockout")
	}

	return nil
}

// UpdateRefreshTokenHash overwrites the single-slot refresh token hash.
func (repo *userRepository) UpdateRefreshTokenHash(ctx context.Context, id uuid.UUID, tokenHash string) error {
	result := repo.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("id = ?", id).
		Update("refresh_token_hash", tokenHash)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update refresh token hash")
	}
	if result.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}

// UpsertSecuritySettings creates or replaces the per-user security overrides.
func (repo *userRepository) UpsertSecuritySettings(ctx context.Context, settings *entity.SecuritySettings) error {
	settingsM := fromSecuritySettingsDomain(settings)

	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"require_mfa",
				"max_failed_attempts",
				"lockout_duration_minutes",
				"session_timeout_minutes",
				"updated_at",
			}),
		}).
		Create(settingsM).Error
	if err != nil {
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrUserNotFound
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to upsert security settings")
	}

	settings.UpdatedAt = settingsM.UpdatedAt

	return nil
}

// --- Mapper Functions ---

// toUserDomain converts a GORM UserModel to a domain User entity.
func toUserDomain(data *model.UserModel) *entity.User {
	if data == nil {
		return nil
	}

	var history []string
	if len(data.PasswordHistory) > 0 {
		// A corrupt history column only weakens reuse detection; it never
		// blocks a read.
		_ = json.Unmarshal(data.PasswordHistory, &history)
	}

	return &entity.User{
		ID:                  data.ID,
		Email:               data.Email,
		Name:                data.Name,
		PasswordHash:        data.PasswordHash,
		FailedLoginAttempts: data.FailedLoginAttempts,
		IsLocked:            data.IsLocked,
		LockedUntil:         data.LockedUntil,
		MFAEnabled:          data.MFAEnabled,
		MFASecret:           data.MFASecret,
		BiometricEnabled:    data.BiometricEnabled,
		SSOEnabled:          data.SSOEnabled,
		SSOProvider:         entity.ProviderType(data.SSOProvider),
		SSOProviderID:       data.SSOProviderID,
		PasswordHistory:     history,
		PasswordLastChanged: data.PasswordLastChanged,
		RefreshTokenHash:    data.RefreshTokenHash,
		Role:                entity.AccountRole(data.Role),
		SecuritySettings:    toSecuritySettingsDomain(data.SecuritySettings),
		LastLogin:           data.LastLogin,
		CreatedAt:           data.CreatedAt,
		UpdatedAt:           data.UpdatedAt,
	}
}

// fromUserDomain converts a domain User entity to a GORM UserModel for persistence.
func fromUserDomain(data *entity.User) *model.UserModel {
	if data == nil {
		return nil
	}

	historyJSON, _ := json.Marshal(data.PasswordHistory)

	return &model.UserModel{
		ID:                  data.ID,
		Email:               data.Email,
		Name:                data.Name,
		PasswordHash:        data.PasswordHash,
		FailedLoginAttempts: data.FailedLoginAttempts,
		IsLocked:            data.IsLocked,
		LockedUntil:         data.LockedUntil,
		MFAEnabled:          data.MFAEnabled,
		MFASecret:           data.MFASecret,
		BiometricEnabled:    data.BiometricEnabled,
		SSOEnabled:          data.SSOEnabled,
		SSOProvider:         data.SSOProvider.String(),
		SSOProviderID:       data.SSOProviderID,
		PasswordHistory:     historyJSON,
		PasswordLastChanged: data.PasswordLastChanged,
		RefreshTokenHash:    data.RefreshTokenHash,
		Role:                data.Role.String(),
		LastLogin:           data.LastLogin,
		CreatedAt:           data.CreatedAt,
		UpdatedAt:           data.UpdatedAt,
	}
}

// toSecuritySettingsDomain converts a GORM SecuritySettingsModel to a domain entity.
func toSecuritySettingsDomain(data *model.SecuritySettingsModel) *entity.SecuritySettings {
	if data == nil {
		return nil
	}

	return &entity.SecuritySettings{
		UserID:                 data.UserID,
		RequireMFA:             data.RequireMFA,
		MaxFailedAttempts:      data.MaxFailedAttempts,
		LockoutDurationMinutes: data.LockoutDurationMinutes,
		SessionTimeoutMinutes:  data.SessionTimeoutMinutes,
		UpdatedAt:              data.UpdatedAt,
	}
}

// fromSecuritySettingsDomain converts a domain entity to a GORM SecuritySettingsModel.
func fromSecuritySettingsDomain(data *entity.SecuritySettings) *model.SecuritySettingsModel {
	if data == nil {
		return nil
	}

	return &model.SecuritySettingsModel{
		UserID:                 data.UserID,
		RequireMFA:             data.RequireMFA,
		MaxFailedAttempts:      data.MaxFailedAttempts,
		LockoutDurationMinutes: data.LockoutDurationMinutes,
		SessionTimeoutMinutes:  data.SessionTimeoutMinutes,
		UpdatedAt:              data.UpdatedAt,
	}
}
