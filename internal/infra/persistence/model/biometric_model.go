package model

import (
	"time"

	"github.com/google/uuid"
)

// BiometricCredentialModel mirrors the 'biometric_credentials' table.
// CredentialID is the authenticator-chosen identifier and is globally unique.
type BiometricCredentialModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index"`
	CredentialID string    `gorm:"type:varchar(255);unique;not null"`
	PublicKey    string    `gorm:"type:text;not null"`
	DeviceType   string    `gorm:"type:varchar(50)"`
	IsActive     bool      `gorm:"not null;default:true"`
	LastUsed     *time.Time
	CreatedAt    time.Time
}

// TableName explicitly sets the table name for GORM.
func (BiometricCredentialModel) TableName() string {
	return "biometric_credentials"
}
