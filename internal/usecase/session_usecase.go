package usecase

import (
	"context"
	"time"

	"propguard/internal/domain/entity"

	"github.com/google/uuid"
)

// CreateSessionInput opens a session for an authenticated user.
type CreateSessionInput struct {
	UserID     uuid.UUID
	DeviceName string
	IPAddress  string
	UserAgent  string
}

// CreateSessionOutput returns the session and its raw bearer token. The raw
// token appears only here; at rest only its hash is stored.
type CreateSessionOutput struct {
	Session  *entity.Session
	RawToken string
}

// SessionUsecase defines session lifecycle operations.
type SessionUsecase interface {
	// Create opens a session, evicting the user's oldest-activity sessions
	// when the concurrent-session ceiling is reached.
	Create(ctx context.Context, input CreateSessionInput) (*CreateSessionOutput, error)

	// Validate resolves a raw bearer token to a usable session and bumps its
	// last-activity timestamp. Returns nil without error when the token is
	// unknown, inactive or expired.
	Validate(ctx context.Context, rawToken string) (*entity.Session, error)

	// Invalidate deactivates the session for a raw token. Idempotent.
	Invalidate(ctx context.Context, rawToken string) error

	// InvalidateByID deactivates one session after verifying ownership.
	InvalidateByID(ctx context.Context, userID, sessionID uuid.UUID) error

	// InvalidateAll deactivates every session of the user.
	InvalidateAll(ctx context.Context, userID uuid.UUID) error

	// GetActiveSessions lists the user's usable sessions, oldest activity first.
	GetActiveSessions(ctx context.Context, userID uuid.UUID) ([]*entity.Session, error)

	// Extend pushes a session's expiry forward by the configured TTL.
	Extend(ctx context.Context, userID, sessionID uuid.UUID) (time.Time, error)
}
