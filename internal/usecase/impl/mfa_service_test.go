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

type mfaFixtures struct {
	service usecase.MFAUsecase
	users   *fakeUserRepo
	audit   *recordingAudit
}

func createTestMFAService(t *testing.T) *mfaFixtures {
	t.Helper()

	users := newFakeUserRepo()
	audit := &recordingAudit{}

	service := NewMFAService(MFAServiceParams{
		UserRepo:    users,
		TOTPService: stubTOTPService{},
		Audit:       audit,
		Logger:      newDiscardLogger(),
	})

	return &mfaFixtures{service: service, users: users, audit: audit}
}

func TestMFAService_StartEnrollment(t *testing.T) {
	t.Run("stores a pending secret without enabling mfa", func(t *testing.T) {
		f := createTestMFAService(t)
		user := f.users.add(&entity.User{Email: "user@example.com"})

		output, err := f.service.StartEnrollment(context.Background(), user.ID)

		require.NoError(t, err)
		assert.NotEmpty(t, output.Secret)
		assert.NotEmpty(t, output.EnrollmentURI)
		assert.Equal(t, output.Secret, user.MFASecret)
		assert.False(t, user.MFAEnabled)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := createTestMFAService(t)

		_, err := f.service.StartEnrollment(context.Background(), uuid.New())
		assert.ErrorIs(t, err, domainerrors.ErrUserNotFound)
	})
}

func TestMFAService_Enable(t *testing.T) {
	t.Run("requires a started enrollment", func(t *testing.T) {
		f := createTestMFAService(t)
		user := f.users.add(&entity.User{Email: "user@example.com"})

		err := f.service.Enable(context.Background(), user.ID, validTOTPCode, usecase.DeviceInfo{})
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	})

	t.Run("rejects a wrong code", func(t *testing.T) {
		f := createTestMFAService(t)
		user := f.users.add(&entity.User{Email: "user@example.com", MFASecret: "pending-secret"})

		err := f.service.Enable(context.Background(), user.ID, "000000", usecase.DeviceInfo{})

		assert.ErrorIs(t, err, domainerrors.ErrInvalidMFACode)
		assert.False(t, user.MFAEnabled)
	})

	t.Run("turns mfa on with a valid code", func(t *testing.T) {
		f := createTestMFAService(t)
		user := f.users.add(&entity.User{Email: "user@example.com", MFASecret: "pending-secret"})

		err := f.service.Enable(context.Background(), user.ID, validTOTPCode, usecase.DeviceInfo{})

		require.NoError(t, err)
		assert.True(t, user.MFAEnabled)
		assert.True(t, f.audit.hasAction(entity.ActionMFAEnabled))
	})
}

func TestMFAService_Disable(t *testing.T) {
	t.Run("requires mfa to be enabled", func(t *testing.T) {
		f := createTestMFAService(t)
		user := f.users.add(&entity.User{Email: "user@example.com", MFASecret: "secret"})

		err := f.service.Disable(context.Background(), user.ID, validTOTPCode, usecase.DeviceInfo{})
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	})

	t.Run("requires a valid current code", func(t *testing.T) {
		f := createTestMFAService(t)
		user := f.users.add(&entity.User{Email: "user@example.com", MFASecret: "secret", MFAEnabled: true})

		err := f.service.Disable(context.Background(), user.ID, "000000", usecase.DeviceInfo{})

		assert.ErrorIs(t, err, domainerrors.ErrInvalidMFACode)
		assert.True(t, user.MFAEnabled)
	})

	t.Run("clears the secret", func(t *testing.T) {
		f := createTestMFAService(t)
		user := f.users.add(&entity.User{Email: "user@example.com", MFASecret: "secret", MFAEnabled: true})

		err := f.service.Disable(context.Background(), user.ID, validTOTPCode, usecase.DeviceInfo{})

		require.NoError(t, err)
		assert.False(t, user.MFAEnabled)
		assert.Empty(t, user.MFASecret)
		assert.True(t, f.audit.hasAction(entity.ActionMFADisabled))
	})
}

func TestMFAService_VerifyCode(t *testing.T) {
	f := createTestMFAService(t)
	user := f.users.add(&entity.User{Email: "user@example.com", MFASecret: "secret", MFAEnabled: true})
	unenrolled := f.users.add(&entity.User{Email: "other@example.com"})

	ok, err := f.service.VerifyCode(context.Background(), user.ID, validTOTPCode)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.service.VerifyCode(context.Background(), user.ID, "000000")
	require.NoError(t, err)
	assert.False(t, ok)

	// A user without an enrolled secret never verifies.
	ok, err = f.service.VerifyCode(context.Background(), unenrolled.ID, validTOTPCode)
	require.NoError(t, err)
	assert.False(t, ok)
}
