package impl

import (
	"context"
	"testing"
	"time"

	"propguard/internal/domain/entity"
	domainerrors "propguard/internal/domain/errors"
	"propguard/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type biometricFixtures struct {
	service usecase.BiometricUsecase
	factory *fakeRepoFactory
	auth    *stubAuthUsecase
	audit   *recordingAudit
	clock   *movableClock
}

func createTestBiometricService(t *testing.T) *biometricFixtures {
	t.Helper()

	factory := newFakeRepoFactory()
	clock := newMovableClock()
	audit := &recordingAudit{}
	auth := &stubAuthUsecase{}

	service := NewBiometricService(BiometricServiceParams{
		TxManager:      &fakeTxManager{factory: factory},
		UserRepo:       factory.users,
		CredentialRepo: factory.credentials,
		ChallengeStore: newFakeChallengeStore(clock),
		AuthUsecase:    auth,
		Audit:          audit,
		Config:         newTestConfig(),
		Clock:          clock.Now,
		Logger:         newDiscardLogger(),
	})

	return &biometricFixtures{service: service, factory: factory, auth: auth, audit: audit, clock: clock}
}

func (f *biometricFixtures) addUser(email string) *entity.User {
	return f.factory.users.add(&entity.User{Email: email, Role: entity.AccountRoleTenant})
}

func (f *biometricFixtures) registerCredential(t *testing.T, user *entity.User, credentialID string) *entity.BiometricCredential {
	t.Helper()

	options, err := f.service.GenerateRegistrationOptions(context.Background(), user.ID)
	require.NoError(t, err)

	credential, err := f.service.RegisterCredential(context.Background(), usecase.RegisterCredentialInput{
		UserID:       user.ID,
		Challenge:    options.Challenge,
		CredentialID: credentialID,
		PublicKey:    "public-key",
		DeviceType:   "phone",
	})
	require.NoError(t, err)

	return credential
}

func TestBiometricService_GenerateRegistrationOptions(t *testing.T) {
	t.Run("requires an existing user", func(t *testing.T) {
		f := createTestBiometricService(t)

		_, err := f.service.GenerateRegistrationOptions(context.Background(), uuid.New())
		assert.ErrorIs(t, err, domainerrors.ErrUserNotFound)
	})

	t.Run("issues a fresh challenge", func(t *testing.T) {
		f := createTestBiometricService(t)
		user := f.addUser("user@example.com")

		output, err := f.service.GenerateRegistrationOptions(context.Background(), user.ID)

		require.NoError(t, err)
		assert.NotEmpty(t, output.Challenge)
		assert.Equal(t, f.clock.Now().Add(5*time.Minute), output.ExpiresAt)
	})
}

func TestBiometricService_GenerateAuthenticationOptions(t *testing.T) {
	// The response shape must not reveal whether the email is registered.
	f := createTestBiometricService(t)
	f.addUser("user@example.com")

	known, err := f.service.GenerateAuthenticationOptions(context.Background(), "user@example.com")
	require.NoError(t, err)
	unknown, err := f.service.GenerateAuthenticationOptions(context.Background(), "nobody@example.com")
	require.NoError(t, err)

	assert.NotEmpty(t, known.Challenge)
	assert.NotEmpty(t, unknown.Challenge)
	assert.Equal(t, known.ExpiresAt, unknown.ExpiresAt)
}

func TestBiometricService_RegisterCredential(t *testing.T) {
	t.Run("stores the credential and enables biometric login", func(t *testing.T) {
		f := createTestBiometricService(t)
		user := f.addUser("user@example.com")

		credential := f.registerCredential(t, user, "credential-1")

		assert.True(t, credential.IsActive)
		assert.True(t, user.BiometricEnabled)

		event, ok := f.audit.findAction(entity.ActionBiometricRegister)
		require.True(t, ok)
		assert.Equal(t, credential.TruncatedCredentialID(), event.EntityID)
	})

	t.Run("challenge is single use", func(t *testing.T) {
		f := createTestBiometricService(t)
		user := f.addUser("user@example.com")

		options, err := f.service.GenerateRegistrationOptions(context.Background(), user.ID)
		require.NoError(t, err)

		input := usecase.RegisterCredentialInput{
			UserID:       user.ID,
			Challenge:    options.Challenge,
			CredentialID: "credential-1",
			PublicKey:    "public-key",
		}
		_, err = f.service.RegisterCredential(context.Background(), input)
		require.NoError(t, err)

		input.CredentialID = "credential-2"
		_, err = f.service.RegisterCredential(context.Background(), input)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidBiometricAssertion)
	})

	t.Run("rejects a challenge bound to another user", func(t *testing.T) {
		f := createTestBiometricService(t)
		user := f.addUser("user@example.com")
		other := f.addUser("other@example.com")

		options, err := f.service.GenerateRegistrationOptions(context.Background(), other.ID)
		require.NoError(t, err)

		_, err = f.service.RegisterCredential(context.Background(), usecase.RegisterCredentialInput{
			UserID:       user.ID,
			Challenge:    options.Challenge,
			CredentialID: "credential-1",
			PublicKey:    "public-key",
		})
		assert.ErrorIs(t, err, domainerrors.ErrInvalidBiometricAssertion)
	})

	t.Run("rejects an expired challenge", func(t *testing.T) {
		f := createTestBiometricService(t)
		user := f.addUser("user@example.com")

		options, err := f.service.GenerateRegistrationOptions(context.Background(), user.ID)
		require.NoError(t, err)

		f.clock.Advance(6 * time.Minute)

		_, err = f.service.RegisterCredential(context.Background(), usecase.RegisterCredentialInput{
			UserID:       user.ID,
			Challenge:    options.Challenge,
			CredentialID: "credential-1",
			PublicKey:    "public-key",
		})
		assert.ErrorIs(t, err, domainerrors.ErrInvalidBiometricAssertion)
	})
}

func TestBiometricService_Login(t *testing.T) {
	startLogin := func(t *testing.T, f *biometricFixtures, email string) string {
		t.Helper()
		options, err := f.service.GenerateAuthenticationOptions(context.Background(), email)
		require.NoError(t, err)

		return options.Challenge
	}

	t.Run("completes authentication through the shared login path", func(t *testing.T) {
		f := createTestBiometricService(t)
		user := f.addUser("user@example.com")
		credential := f.registerCredential(t, user, "credential-1")
		challenge := startLogin(t, f, "user@example.com")

		output, err := f.service.Login(context.Background(), usecase.BiometricLoginInput{
			Email:        "user@example.com",
			Challenge:    challenge,
			CredentialID: "credential-1",
		})

		require.NoError(t, err)
		assert.NotEmpty(t, output.AccessToken)
		require.Len(t, f.auth.completions, 1)
		assert.Equal(t, user.ID, f.auth.completions[0].user.ID)
		assert.Equal(t, loginMethodBiometric, f.auth.completions[0].method)
		assert.NotNil(t, credential.LastUsed)
		assert.True(t, f.audit.hasAction(entity.ActionBiometricVerify))
	})

	t.Run("challenge issued for another account is rejected", func(t *testing.T) {
		f := createTestBiometricService(t)
		user := f.addUser("user@example.com")
		f.addUser("other@example.com")
		f.registerCredential(t, user, "credential-1")

		// Challenge bound to other@, asserted against user@.
		challenge := startLogin(t, f, "other@example.com")

		_, err := f.service.Login(context.Background(), usecase.BiometricLoginInput{
			Email:        "user@example.com",
			Challenge:    challenge,
			CredentialID: "credential-1",
		})

		assert.ErrorIs(t, err, domainerrors.ErrInvalidBiometricAssertion)
		assert.True(t, f.audit.hasAction(entity.ActionBiometricFailed))
		assert.Empty(t, f.auth.completions)
	})

	t.Run("another user's credential is rejected", func(t *testing.T) {
		f := createTestBiometricService(t)
		user := f.addUser("user@example.com")
		other := f.addUser("other@example.com")
		f.registerCredential(t, user, "credential-1")
		f.registerCredential(t, other, "credential-2")
		challenge := startLogin(t, f, "user@example.com")

		_, err := f.service.Login(context.Background(), usecase.BiometricLoginInput{
			Email:        "user@example.com",
			Challenge:    challenge,
			CredentialID: "credential-2",
		})

		assert.ErrorIs(t, err, domainerrors.ErrInvalidBiometricAssertion)
	})

	t.Run("consumed challenge cannot be replayed", func(t *testing.T) {
		f := createTestBiometricService(t)
		user := f.addUser("user@example.com")
		f.registerCredential(t, user, "credential-1")
		challenge := startLogin(t, f, "user@example.com")

		input := usecase.BiometricLoginInput{
			Email:        "user@example.com",
			Challenge:    challenge,
			CredentialID: "credential-1",
		}
		_, err := f.service.Login(context.Background(), input)
		require.NoError(t, err)

		_, err = f.service.Login(context.Background(), input)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidBiometricAssertion)
	})
}

func TestBiometricService_RemoveCredential(t *testing.T) {
	t.Run("removing the last credential clears the biometric flag", func(t *testing.T) {
		f := createTestBiometricService(t)
		user := f.addUser("user@example.com")
		f.registerCredential(t, user, "credential-1")
		f.registerCredential(t, user, "credential-2")

		err := f.service.RemoveCredential(context.Background(), user.ID, "credential-1", usecase.DeviceInfo{})
		require.NoError(t, err)
		assert.True(t, user.BiometricEnabled)

		err = f.service.RemoveCredential(context.Background(), user.ID, "credential-2", usecase.DeviceInfo{})
		require.NoError(t, err)
		assert.False(t, user.BiometricEnabled)
		assert.True(t, f.audit.hasAction(entity.ActionBiometricRemoved))

		credentials, err := f.service.ListCredentials(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Empty(t, credentials)
	})

	t.Run("rejects another user's credential", func(t *testing.T) {
		f := createTestBiometricService(t)
		user := f.addUser("user@example.com")
		f.registerCredential(t, user, "credential-1")

		err := f.service.RemoveCredential(context.Background(), uuid.New(), "credential-1", usecase.DeviceInfo{})
		assert.ErrorIs(t, err, domainerrors.ErrForbidden)
	})

	t.Run("unknown credential", func(t *testing.T) {
		f := createTestBiometricService(t)
		user := f.addUser("user@example.com")

		err := f.service.RemoveCredential(context.Background(), user.ID, "never-registered", usecase.DeviceInfo{})
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})
}
