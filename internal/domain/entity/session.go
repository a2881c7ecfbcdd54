package entity

import (
	"time"

	"github.com/google/uuid"
)

// Session represents an authenticated presence of a user on one device.
// A session is usable only while IsActive and ExpiresAt is in the future.
type Session struct {
	ID           uuid.UUID
	Token        string // Opaque bearer token, unique. Stored hashed at rest.
	UserID       uuid.UUID
	DeviceName   string
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
	IsActive     bool
}

// IsUsable reports whether the session may still authenticate requests at now.
func (s *Session) IsUsable(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}
