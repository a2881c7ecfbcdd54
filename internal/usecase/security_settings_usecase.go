package usecase

import (
	"context"

	"propguard/internal/domain/entity"

	"github.com/google/uuid"
)

// UpdateSecuritySettingsInput carries per-user policy overrides. Nil pointer
// fields leave the process-wide defaults in effect.
type UpdateSecuritySettingsInput struct {
	UserID                 uuid.UUID
	RequireMFA             bool
	MaxFailedAttempts      *int
	LockoutDurationMinutes *int
	SessionTimeoutMinutes  *int
	IPAddress              string
	UserAgent              string
}

// SecuritySettingsUsecase manages per-user security policy overrides.
type SecuritySettingsUsecase interface {
	// Get returns the user's overrides, or defaults when none are stored.
	Get(ctx context.Context, userID uuid.UUID) (*entity.SecuritySettings, error)

	// Update stores the overrides and audits the change.
	Update(ctx context.Context, input UpdateSecuritySettingsInput) (*entity.SecuritySettings, error)
}
