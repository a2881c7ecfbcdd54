package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionModel mirrors the 'sessions' table. The bearer token is stored only
// as a SHA-256 hash; the raw token never reaches the database.
type SessionModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	TokenHash    string    `gorm:"type:varchar(64);unique;not null"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index"`
	DeviceName   string    `gorm:"type:varchar(100)"`
	IPAddress    string    `gorm:"type:varchar(45)"`
	UserAgent    string    `gorm:"type:varchar(512)"`
	CreatedAt    time.Time
	LastActivity time.Time `gorm:"not null;index"`
	ExpiresAt    time.Time `gorm:"not null"`
	IsActive     bool      `gorm:"not null;default:true"`
}

// TableName explicitly sets the table name for GORM.
func (SessionModel) TableName() string {
	return "sessions"
}
