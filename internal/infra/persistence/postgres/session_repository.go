package postgres

import (
	"context"
	"time"

	"propguard/internal/domain/entity"
	domainerrors "propguard/internal/domain/errors"
	"propguard/internal/domain/repository"
	"propguard/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// sessionRepository implements the domain's SessionRepository interface using GORM.
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository is the constructor for sessionRepository.
func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// Create persists a new session. The entity's Token field carries the hash;
// the raw token exists only in the login response.
func (repo *sessionRepository) Create(ctx context.Context, session *entity.Session) error {
	sessionM := fromSessionDomain(session)

	if err := repo.db.WithContext(ctx).Create(sessionM).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrUserNotFound
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create session")
	}

	session.ID = sessionM.ID
	session.CreatedAt = sessionM.CreatedAt

	return nil
}

// FindByTokenHash retrieves a session by the hash of its bearer token.
func (repo *sessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*entity.Session, error) {
	var sessionM model.SessionModel
	err := repo.db.WithContext(ctx).First(&sessionM, "token_hash = ?", tokenHash).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}

		return nil, errors.Wrap(err, "failed to find session by token hash")
	}

	return toSessionDomain(&sessionM), nil
}

// FindByID retrieves a session by its unique ID.
func (repo *sessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	var sessionM model.SessionModel
	err := repo.db.WithContext(ctx).First(&sessionM, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}

		return nil, errors.Wrap(err, "failed to find session by id")
	}

	return toSessionDomain(&sessionM), nil
}

// FindActiveByUserID lists usable sessions oldest-activity first, which is
// the eviction order when the concurrent-session limit is hit.
func (repo *sessionRepository) FindActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) ([]*entity.Session, error) {
	var sessionMs []*model.SessionModel
	err := repo.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, now).
		Order("last_activity ASC").
		Find(&sessionMs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active sessions")
	}

	sessions := make([]*entity.Session, 0, len(sessionMs))
	for _, sessionM := range sessionMs {
		sessions = append(sessions, toSessionDomain(sessionM))
	}

	return sessions, nil
}

// Touch updates LastActivity and optionally extends ExpiresAt.
func (repo *sessionRepository) Touch(ctx context.Context, id uuid.UUID, lastActivity time.Time, expiresAt *time.Time) error {
	updates := map[string]any{"last_activity": lastActivity}
	if expiresAt != nil {
		updates["expires_at"] = *expiresAt
	}

	err := repo.db.WithContext(ctx).Model(&model.SessionModel{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return errors.Wrap(err, "failed to touch session")
	}

	return nil
}

// InvalidateByTokenHash deactivates the matching session. Missing or already
// inactive sessions are a no-op.
func (repo *sessionRepository) InvalidateByTokenHash(ctx context.Context, tokenHash string) error {
	err := repo.db.WithContext(ctx).Model(&model.SessionModel{}).
		Where("token_hash = ?", tokenHash).
		Update("is_active", false).Error
	if err != nil {
		return errors.Wrap(err, "failed to invalidate session by token hash")
	}

	return nil
}

// InvalidateByID deactivates the session with the given ID. Idempotent.
func (repo *sessionRepository) InvalidateByID(ctx context.Context, id uuid.UUID) error {
	err := repo.db.WithContext(ctx).Model(&model.SessionModel{}).
		Where("id = ?", id).
		Update("is_active", false).Error
	if err != nil {
		return errors.Wrap(err, "failed to invalidate session by id")
	}

	return nil
}

// InvalidateAllByUserID deactivates every session of the user.
func (repo *sessionRepository) InvalidateAllByUserID(ctx context.Context, userID uuid.UUID) error {
	err := repo.db.WithContext(ctx).Model(&model.SessionModel{}).
		Where("user_id = ?", userID).
		Update("is_active", false).Error
	if err != nil {
		return errors.Wrap(err, "failed to invalidate user sessions")
	}

	return nil
}

// InvalidateAllByUserIDExcept deactivates every session of the user except
// the one identified by keepTokenHash.
func (repo *sessionRepository) InvalidateAllByUserIDExcept(ctx context.Context, userID uuid.UUID, keepTokenHash string) error {
	err := repo.db.WithContext(ctx).Model(&model.SessionModel{}).
		Where("user_id = ? AND token_hash <> ?", userID, keepTokenHash).
		Update("is_active", false).Error
	if err != nil {
		return errors.Wrap(err, "failed to invalidate other user sessions")
	}

	return nil
}

// CountActiveByUserID returns the number of usable sessions for a user.
func (repo *sessionRepository) CountActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&model.SessionModel{}).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, now).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count active sessions")
	}

	return int(count), nil
}

// DeleteOlderThan removes session rows created before the cutoff.
func (repo *sessionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.SessionModel{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete expired sessions")
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

// toSessionDomain converts a GORM SessionModel to a domain Session entity.
// The Token field of the entity carries the stored hash.
func toSessionDomain(data *model.SessionModel) *entity.Session {
	if data == nil {
		return nil
	}

	return &entity.Session{
		ID:           data.ID,
		Token:        data.TokenHash,
		UserID:       data.UserID,
		DeviceName:   data.DeviceName,
		IPAddress:    data.IPAddress,
		UserAgent:    data.UserAgent,
		CreatedAt:    data.CreatedAt,
		LastActivity: data.LastActivity,
		ExpiresAt:    data.ExpiresAt,
		IsActive:     data.IsActive,
	}
}

// fromSessionDomain converts a domain Session entity to a GORM SessionModel.
func fromSessionDomain(data *entity.Session) *model.SessionModel {
	if data == nil {
		return nil
	}

	return &model.SessionModel{
		ID:           data.ID,
		TokenHash:    data.Token,
		UserID:       data.UserID,
		DeviceName:   data.DeviceName,
		IPAddress:    data.IPAddress,
		UserAgent:    data.UserAgent,
		CreatedAt:    data.CreatedAt,
		LastActivity: data.LastActivity,
		ExpiresAt:    data.ExpiresAt,
		IsActive:     data.IsActive,
	}
}
