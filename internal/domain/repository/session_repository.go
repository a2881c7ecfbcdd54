package repository

import (
	"context"
	"errors"
	"time"

	"propguard/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository defines persistence operations for login sessions.
type SessionRepository interface {
	// Create persists a new session.
	Create(ctx context.Context, session *entity.Session) error

	// FindByTokenHash retrieves a session by the hash of its bearer token.
	FindByTokenHash(ctx context.Context, tokenHash string) (*entity.Session, error)

	// FindByID retrieves a session by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error)

	// FindActiveByUserID lists sessions with IsActive and ExpiresAt in the
	// future, ordered by LastActivity ascending (oldest first).
	FindActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) ([]*entity.Session, error)

	// Touch updates LastActivity and optionally extends ExpiresAt.
	Touch(ctx context.Context, id uuid.UUID, lastActivity time.Time, expiresAt *time.Time) error

	// InvalidateByTokenHash sets IsActive=false. Invalidating an already
	// inactive or missing session is a no-op, not an error.
	InvalidateByTokenHash(ctx context.Context, tokenHash string) error

	// InvalidateByID sets IsActive=false. Idempotent like InvalidateByTokenHash.
	InvalidateByID(ctx context.Context, id uuid.UUID) error

	// InvalidateAllByUserID sets IsActive=false on every session of the user.
	InvalidateAllByUserID(ctx context.Context, userID uuid.UUID) error

	// InvalidateAllByUserIDExcept sets IsActive=false on every session of the
	// user except the one with the given token hash. A password change keeps
	// the session that performed it alive.
	InvalidateAllByUserIDExcept(ctx context.Context, userID uuid.UUID, keepTokenHash string) error

	// CountActiveByUserID returns the number of usable sessions for a user.
	CountActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (int, error)

	// DeleteOlderThan removes session rows created before the cutoff,
	// regardless of activity state. Used by retention cleanup.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
