package impl

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"propguard/config"
	deliverycontext "propguard/internal/delivery/context"
	"propguard/internal/domain/entity"
	domainerrors "propguard/internal/domain/errors"
	"propguard/internal/domain/repository"
	"propguard/internal/domain/service"
	"propguard/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const sessionTokenBytes = 32

// sessionService implements the SessionUsecase interface.
type sessionService struct {
	txManager    repository.TransactionManager
	sessionRepo  repository.SessionRepository
	tokenService service.TokenService
	audit        usecase.AuditUsecase
	cfg          *config.Config
	clock        service.Clock
	logger       *slog.Logger
}

// SessionServiceParams holds dependencies for sessionService, injected by Fx.
type SessionServiceParams struct {
	fx.In

	TxManager    repository.TransactionManager
	SessionRepo  repository.SessionRepository
	TokenService service.TokenService
	Audit        usecase.AuditUsecase
	Config       *config.Config
	Clock        service.Clock
	Logger       *slog.Logger
}

// NewSessionService is the constructor for sessionService.
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	return &sessionService{
		txManager:    params.TxManager,
		sessionRepo:  params.SessionRepo,
		tokenService: params.TokenService,
		audit:        params.Audit,
		cfg:          params.Config,
		clock:        params.Clock,
		logger:       params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *sessionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Create opens a session. The ceiling check and the insert run in one
// transaction; sessions beyond the per-user limit are evicted oldest
// activity first.
func (srv *sessionService) Create(ctx context.Context, input usecase.CreateSessionInput) (*usecase.CreateSessionOutput, error) {
	rawToken, err := newSessionToken()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate session token")
	}

	now := srv.clock()
	session := &entity.Session{
		Token:        srv.tokenService.HashToken(rawToken),
		UserID:       input.UserID,
		DeviceName:   input.DeviceName,
		IPAddress:    input.IPAddress,
		UserAgent:    input.UserAgent,
		LastActivity: now,
		ExpiresAt:    now.Add(srv.cfg.Auth.SessionTTL),
		IsActive:     true,
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		sessionRepo := repoFactory.NewSessionRepository()

		if limit := srv.cfg.Auth.MaxActiveSessions; limit > 0 {
			active, err := sessionRepo.FindActiveByUserID(ctx, input.UserID, now)
			if err != nil {
				return errors.Wrap(err, "failed to list active sessions")
			}

			// Evict enough of the least recently used sessions to make room.
			for i := 0; i <= len(active)-limit; i++ {
				if err := sessionRepo.InvalidateByID(ctx, active[i].ID); err != nil {
					return errors.Wrap(err, "failed to evict session")
				}
			}
		}

		return sessionRepo.Create(ctx, session)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}

	srv.log(ctx).Debug("Session created", slog.Any("userID", input.UserID), slog.Any("sessionID", session.ID))

	return &usecase.CreateSessionOutput{Session: session, RawToken: rawToken}, nil
}

// Validate resolves a raw bearer token to a usable session. Misses, inactive
// and expired sessions all return nil without error; the caller decides the
// response.
func (srv *sessionService) Validate(ctx context.Context, rawToken string) (*entity.Session, error) {
	if rawToken == "" {
		return nil, nil
	}

	session, err := srv.sessionRepo.FindByTokenHash(ctx, srv.tokenService.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "failed to look up session")
	}

	now := srv.clock()
	if !session.IsUsable(now) {
		return nil, nil
	}

	if err := srv.sessionRepo.Touch(ctx, session.ID, now, nil); err != nil {
		return nil, errors.Wrap(err, "failed to touch session")
	}
	session.LastActivity = now

	return session, nil
}

// Invalidate deactivates the session for a raw token. Unknown or already
// inactive tokens are a no-op.
func (srv *sessionService) Invalidate(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}

	err := srv.sessionRepo.InvalidateByTokenHash(ctx, srv.tokenService.HashToken(rawToken))
	if err != nil {
		return errors.Wrap(err, "failed to invalidate session")
	}

	return nil
}

// InvalidateByID deactivates one session after verifying ownership.
func (srv *sessionService) InvalidateByID(ctx context.Context, userID, sessionID uuid.UUID) error {
	session, err := srv.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return domainerrors.ErrNotFound.WrapMessage("session not found")
		}

		return errors.Wrap(err, "failed to find session")
	}

	if session.UserID != userID {
		return domainerrors.ErrForbidden.WrapMessage("session does not belong to user")
	}

	if err := srv.sessionRepo.InvalidateByID(ctx, sessionID); err != nil {
		return errors.Wrap(err, "failed to invalidate session")
	}

	srv.auditRevocation(ctx, userID, map[string]any{"sessionID": sessionID.String()})

	return nil
}

// InvalidateAll deactivates every session of the user.
func (srv *sessionService) InvalidateAll(ctx context.Context, userID uuid.UUID) error {
	if err := srv.sessionRepo.InvalidateAllByUserID(ctx, userID); err != nil {
		return errors.Wrap(err, "failed to invalidate user sessions")
	}

	srv.auditRevocation(ctx, userID, map[string]any{"scope": "all"})

	return nil
}

// GetActiveSessions lists the user's usable sessions, oldest activity first.
func (srv *sessionService) GetActiveSessions(ctx context.Context, userID uuid.UUID) ([]*entity.Session, error) {
	sessions, err := srv.sessionRepo.FindActiveByUserID(ctx, userID, srv.clock())
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active sessions")
	}

	return sessions, nil
}

// Extend pushes a session's expiry forward by the configured TTL.
func (srv *sessionService) Extend(ctx context.Context, userID, sessionID uuid.UUID) (time.Time, error) {
	session, err := srv.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return time.Time{}, domainerrors.ErrNotFound.WrapMessage("session not found")
		}

		return time.Time{}, errors.Wrap(err, "failed to find session")
	}

	if session.UserID != userID {
		return time.Time{}, domainerrors.ErrForbidden.WrapMessage("session does not belong to user")
	}

	now := srv.clock()
	if !session.IsUsable(now) {
		return time.Time{}, domainerrors.ErrSessionInvalid
	}

	newExpiry := now.Add(srv.cfg.Auth.SessionTTL)
	if err := srv.sessionRepo.Touch(ctx, sessionID, now, &newExpiry); err != nil {
		return time.Time{}, errors.Wrap(err, "failed to extend session")
	}

	return newExpiry, nil
}

// auditRevocation records a SESSION_REVOKED entry; failures are logged only.
func (srv *sessionService) auditRevocation(ctx context.Context, userID uuid.UUID, details map[string]any) {
	err := srv.audit.LogEvent(ctx, usecase.LogEventInput{
		Action:     entity.ActionSessionRevoked,
		EntityType: "session",
		ActorID:    &userID,
		Details:    details,
	})
	if err != nil {
		srv.log(ctx).Error("Failed to audit session revocation", slog.Any("error", err))
	}
}

// newSessionToken returns a hex-encoded random bearer token.
func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}
