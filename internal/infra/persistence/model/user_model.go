// Package model contains the GORM persistence structs mirroring the
// PostgreSQL schema. They never leave the persistence layer; repositories
// map them to and from domain entities.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// UserModel mirrors the 'users' table. PostgreSQL generates UUIDs via uuid_generate_v7().
type UserModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	Email        string    `gorm:"type:varchar(255);unique;not null"`
	Name         string    `gorm:"type:varchar(100)"`
	PasswordHash string    `gorm:"type:varchar(255)"`

	FailedLoginAttempts int  `gorm:"not null;default:0"`
	IsLocked            bool `gorm:"not null;default:false"`
	LockedUntil         *time.Time

	MFAEnabled bool   `gorm:"column:mfa_enabled;not null;default:false"`
	MFASecret  string `gorm:"column:mfa_secret;type:varchar(255)"`

	BiometricEnabled bool `gorm:"not null;default:false"`

	SSOEnabled    bool   `gorm:"column:sso_enabled;not null;default:false"`
	SSOProvider   string `gorm:"column:sso_provider;type:varchar(50)"`
	SSOProviderID string `gorm:"column:sso_provider_id;type:varchar(255)"`

	PasswordHistory     datatypes.JSON `gorm:"type:jsonb"`
	PasswordLastChanged *time.Time

	RefreshTokenHash string `gorm:"type:varchar(64);index"`

	Role      string `gorm:"type:varchar(50);not null;index"`
	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	SecuritySettings *SecuritySettingsModel `gorm:"foreignKey:UserID"`
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}

// SecuritySettingsModel mirrors the 'user_security_settings' table,
// one optional row of policy overrides per user.
type SecuritySettingsModel struct {
	UserID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	RequireMFA             bool      `gorm:"column:require_mfa;not null;default:false"`
	MaxFailedAttempts      *int
	LockoutDurationMinutes *int
	SessionTimeoutMinutes  *int
	UpdatedAt              time.Time
}

// TableName explicitly sets the table name for GORM.
func (SecuritySettingsModel) TableName() string {
	return "user_security_settings"
}
