package impl

import (
	"context"
	"testing"

	"propguard/internal/domain/entity"
	domainerrors "propguard/internal/domain/errors"
	"propguard/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type securitySettingsFixtures struct {
	service usecase.SecuritySettingsUsecase
	users   *fakeUserRepo
	audit   *recordingAudit
	clock   *movableClock
}

func createTestSecuritySettingsService(t *testing.T) *securitySettingsFixtures {
	t.Helper()

	users := newFakeUserRepo()
	audit := &recordingAudit{}
	clock := newMovableClock()

	service := NewSecuritySettingsService(SecuritySettingsServiceParams{
		UserRepo: users,
		Audit:    audit,
		Clock:    clock.Now,
		Logger:   newDiscardLogger(),
	})

	return &securitySettingsFixtures{service: service, users: users, audit: audit, clock: clock}
}

func TestSecuritySettingsService_Get(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		f := createTestSecuritySettingsService(t)

		_, err := f.service.Get(context.Background(), uuid.New())
		assert.ErrorIs(t, err, domainerrors.ErrUserNotFound)
	})

	t.Run("defaults apply when nothing is stored", func(t *testing.T) {
		f := createTestSecuritySettingsService(t)
		user := f.users.add(&entity.User{Email: "user@example.com", Role: entity.AccountRoleTenant})

		settings, err := f.service.Get(context.Background(), user.ID)

		require.NoError(t, err)
		assert.Equal(t, user.ID, settings.UserID)
		assert.False(t, settings.RequireMFA)
		assert.Nil(t, settings.MaxFailedAttempts)
	})
}

func TestSecuritySettingsService_Update(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		f := createTestSecuritySettingsService(t)

		_, err := f.service.Update(context.Background(), usecase.UpdateSecuritySettingsInput{UserID: uuid.New()})
		assert.ErrorIs(t, err, domainerrors.ErrUserNotFound)
	})

	t.Run("overrides must be positive", func(t *testing.T) {
		f := createTestSecuritySettingsService(t)
		user := f.users.add(&entity.User{Email: "user@example.com", Role: entity.AccountRoleTenant})

		zero := 0
		_, err := f.service.Update(context.Background(), usecase.UpdateSecuritySettingsInput{
			UserID:            user.ID,
			MaxFailedAttempts: &zero,
		})
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)

		negative := -5
		_, err = f.service.Update(context.Background(), usecase.UpdateSecuritySettingsInput{
			UserID:                 user.ID,
			LockoutDurationMinutes: &negative,
		})
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	})

	t.Run("stores overrides and audits the change", func(t *testing.T) {
		f := createTestSecuritySettingsService(t)
		user := f.users.add(&entity.User{Email: "user@example.com", Role: entity.AccountRoleTenant})

		attempts := 5
		lockout := 60
		settings, err := f.service.Update(context.Background(), usecase.UpdateSecuritySettingsInput{
			UserID:                 user.ID,
			RequireMFA:             true,
			MaxFailedAttempts:      &attempts,
			LockoutDurationMinutes: &lockout,
		})

		require.NoError(t, err)
		assert.Equal(t, f.clock.Now(), settings.UpdatedAt)

		stored, err := f.service.Get(context.Background(), user.ID)
		require.NoError(t, err)
		assert.True(t, stored.RequireMFA)
		require.NotNil(t, stored.MaxFailedAttempts)
		assert.Equal(t, 5, *stored.MaxFailedAttempts)

		event, ok := f.audit.findAction(entity.ActionSecuritySettings)
		require.True(t, ok)
		assert.Equal(t, user.ID.String(), event.EntityID)
		assert.Equal(t, true, event.Details["requireMFA"])
		assert.Equal(t, 5, event.Details["maxFailedAttempts"])
	})
}
