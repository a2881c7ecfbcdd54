package model

import (
	"time"

	"github.com/google/uuid"
)

// OAuthConnectionModel mirrors the 'oauth_connections' table. The
// (provider, provider_user_id) pair is unique so one external identity can
// only ever link to one account.
type OAuthConnectionModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_oauth_user_provider"`
	Provider       string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_oauth_user_provider;uniqueIndex:idx_oauth_provider_subject"`
	ProviderUserID string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_oauth_provider_subject"`
	AccessToken    string    `gorm:"type:text"`
	RefreshToken   string    `gorm:"type:text"`
	TokenExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName explicitly sets the table name for GORM.
func (OAuthConnectionModel) TableName() string {
	return "oauth_connections"
}
