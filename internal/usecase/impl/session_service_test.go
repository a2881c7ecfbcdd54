package impl

import (
	"context"
	"testing"
	"time"

	domainerrors "propguard/internal/domain/errors"
	"propguard/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionFixtures struct {
	service usecase.SessionUsecase
	factory *fakeRepoFactory
	audit   *recordingAudit
	clock   *movableClock
}

func createTestSessionService(t *testing.T) *sessionFixtures {
	t.Helper()

	factory := newFakeRepoFactory()
	clock := newMovableClock()
	audit := &recordingAudit{}

	service := NewSessionService(SessionServiceParams{
		TxManager:    &fakeTxManager{factory: factory},
		SessionRepo:  factory.sessions,
		TokenService: newStubTokenService(),
		Audit:        audit,
		Config:       newTestConfig(),
		Clock:        clock.Now,
		Logger:       newDiscardLogger(),
	})

	return &sessionFixtures{service: service, factory: factory, audit: audit, clock: clock}
}

func TestSessionService_Create(t *testing.T) {
	t.Run("raw token resolves while only the hash is stored", func(t *testing.T) {
		f := createTestSessionService(t)
		userID := uuid.New()

		output, err := f.service.Create(context.Background(), usecase.CreateSessionInput{
			UserID:     userID,
			DeviceName: "laptop",
		})

		require.NoError(t, err)
		assert.NotEmpty(t, output.RawToken)
		assert.NotEqual(t, output.RawToken, output.Session.Token)
		assert.Equal(t, "sha:"+output.RawToken, output.Session.Token)

		session, err := f.service.Validate(context.Background(), output.RawToken)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, userID, session.UserID)
	})

	t.Run("evicts the least recently active session at the ceiling", func(t *testing.T) {
		f := createTestSessionService(t)
		userID := uuid.New()

		// The test config allows two concurrent sessions.
		first, err := f.service.Create(context.Background(), usecase.CreateSessionInput{UserID: userID})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
		second, err := f.service.Create(context.Background(), usecase.CreateSessionInput{UserID: userID})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)

		// Touch the first so the second becomes the eviction candidate.
		_, err = f.service.Validate(context.Background(), first.RawToken)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)

		third, err := f.service.Create(context.Background(), usecase.CreateSessionInput{UserID: userID})
		require.NoError(t, err)

		evicted, err := f.service.Validate(context.Background(), second.RawToken)
		require.NoError(t, err)
		assert.Nil(t, evicted)

		for _, token := range []string{first.RawToken, third.RawToken} {
			session, err := f.service.Validate(context.Background(), token)
			require.NoError(t, err)
			assert.NotNil(t, session)
		}

		active, err := f.service.GetActiveSessions(context.Background(), userID)
		require.NoError(t, err)
		assert.Len(t, active, 2)
	})

	t.Run("other users are unaffected by the ceiling", func(t *testing.T) {
		f := createTestSessionService(t)
		userID, otherID := uuid.New(), uuid.New()

		for range 2 {
			_, err := f.service.Create(context.Background(), usecase.CreateSessionInput{UserID: otherID})
			require.NoError(t, err)
		}

		_, err := f.service.Create(context.Background(), usecase.CreateSessionInput{UserID: userID})
		require.NoError(t, err)

		active, err := f.service.GetActiveSessions(context.Background(), otherID)
		require.NoError(t, err)
		assert.Len(t, active, 2)
	})
}

func TestSessionService_Validate(t *testing.T) {
	t.Run("empty and unknown tokens resolve to nil without error", func(t *testing.T) {
		f := createTestSessionService(t)

		session, err := f.service.Validate(context.Background(), "")
		require.NoError(t, err)
		assert.Nil(t, session)

		session, err = f.service.Validate(context.Background(), "unknown-token")
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("expired session resolves to nil", func(t *testing.T) {
		f := createTestSessionService(t)

		output, err := f.service.Create(context.Background(), usecase.CreateSessionInput{UserID: uuid.New()})
		require.NoError(t, err)

		f.clock.Advance(25 * time.Hour)

		session, err := f.service.Validate(context.Background(), output.RawToken)
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("bumps last activity", func(t *testing.T) {
		f := createTestSessionService(t)

		output, err := f.service.Create(context.Background(), usecase.CreateSessionInput{UserID: uuid.New()})
		require.NoError(t, err)
		createdAt := f.clock.Now()

		f.clock.Advance(10 * time.Minute)

		session, err := f.service.Validate(context.Background(), output.RawToken)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, createdAt.Add(10*time.Minute), session.LastActivity)
	})
}

func TestSessionService_Invalidate(t *testing.T) {
	t.Run("is idempotent", func(t *testing.T) {
		f := createTestSessionService(t)

		output, err := f.service.Create(context.Background(), usecase.CreateSessionInput{UserID: uuid.New()})
		require.NoError(t, err)

		require.NoError(t, f.service.Invalidate(context.Background(), output.RawToken))
		require.NoError(t, f.service.Invalidate(context.Background(), output.RawToken))
		require.NoError(t, f.service.Invalidate(context.Background(), "never-issued"))

		session, err := f.service.Validate(context.Background(), output.RawToken)
		require.NoError(t, err)
		assert.Nil(t, session)
	})
}

func TestSessionService_InvalidateByID(t *testing.T) {
	t.Run("revokes an owned session and audits it", func(t *testing.T) {
		f := createTestSessionService(t)
		userID := uuid.New()

		output, err := f.service.Create(context.Background(), usecase.CreateSessionInput{UserID: userID})
		require.NoError(t, err)

		err = f.service.InvalidateByID(context.Background(), userID, output.Session.ID)
		require.NoError(t, err)

		event, ok := f.audit.findAction("SESSION_REVOKED")
		require.True(t, ok)
		assert.Equal(t, output.Session.ID.String(), event.Details["sessionID"])
	})

	t.Run("rejects another user's session", func(t *testing.T) {
		f := createTestSessionService(t)

		output, err := f.service.Create(context.Background(), usecase.CreateSessionInput{UserID: uuid.New()})
		require.NoError(t, err)

		err = f.service.InvalidateByID(context.Background(), uuid.New(), output.Session.ID)
		assert.ErrorIs(t, err, domainerrors.ErrForbidden)
	})

	t.Run("unknown session id", func(t *testing.T) {
		f := createTestSessionService(t)

		err := f.service.InvalidateByID(context.Background(), uuid.New(), uuid.New())
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})
}

func TestSessionService_InvalidateAll(t *testing.T) {
	f := createTestSessionService(t)
	userID := uuid.New()

	for range 2 {
		_, err := f.service.Create(context.Background(), usecase.CreateSessionInput{UserID: userID})
		require.NoError(t, err)
	}

	require.NoError(t, f.service.InvalidateAll(context.Background(), userID))

	active, err := f.service.GetActiveSessions(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, active)

	event, ok := f.audit.findAction("SESSION_REVOKED")
	require.True(t, ok)
	assert.Equal(t, "all", event.Details["scope"])
}

func TestSessionService_Extend(t *testing.T) {
	t.Run("pushes expiry forward from now", func(t *testing.T) {
		f := createTestSessionService(t)
		userID := uuid.New()

		output, err := f.service.Create(context.Background(), usecase.CreateSessionInput{UserID: userID})
		require.NoError(t, err)

		f.clock.Advance(20 * time.Hour)

		newExpiry, err := f.service.Extend(context.Background(), userID, output.Session.ID)
		require.NoError(t, err)
		assert.Equal(t, f.clock.Now().Add(24*time.Hour), newExpiry)

		f.clock.Advance(23 * time.Hour)

		session, err := f.service.Validate(context.Background(), output.RawToken)
		require.NoError(t, err)
		assert.NotNil(t, session)
	})

	t.Run("rejects an expired session", func(t *testing.T) {
		f := createTestSessionService(t)
		userID := uuid.New()

		output, err := f.service.Create(context.Background(), usecase.CreateSessionInput{UserID: userID})
		require.NoError(t, err)

		f.clock.Advance(25 * time.Hour)

		_, err = f.service.Extend(context.Background(), userID, output.Session.ID)
		assert.ErrorIs(t, err, domainerrors.ErrSessionInvalid)
	})

	t.Run("rejects another user's session", func(t *testing.T) {
		f := createTestSessionService(t)

		output, err := f.service.Create(context.Background(), usecase.CreateSessionInput{UserID: uuid.New()})
		require.NoError(t, err)

		_, err = f.service.Extend(context.Background(), uuid.New(), output.Session.ID)
		assert.ErrorIs(t, err, domainerrors.ErrForbidden)
	})
}
