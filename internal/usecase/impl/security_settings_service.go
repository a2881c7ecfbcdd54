package impl

import (
	"context"
	"log/slog"

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

// securitySettingsService implements the SecuritySettingsUsecase interface.
type securitySettingsService struct {
	userRepo repository.UserRepository
	audit    usecase.AuditUsecase
	clock    service.Clock
	logger   *slog.Logger
}

// SecuritySettingsServiceParams holds dependencies for securitySettingsService, injected by Fx.
type SecuritySettingsServiceParams struct {
	fx.In

	UserRepo repository.UserRepository
	Audit    usecase.AuditUsecase
	Clock    service.Clock
	Logger   *slog.Logger
}

// NewSecuritySettingsService is the constructor for securitySettingsService.
func NewSecuritySettingsService(params SecuritySettingsServiceParams) usecase.SecuritySettingsUsecase {
	return &securitySettingsService{
		userRepo: params.UserRepo,
		audit:    params.Audit,
		clock:    params.Clock,
		logger:   params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *securitySettingsService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Get returns the user's overrides. A user without stored overrides gets the
// zero-value settings, meaning process defaults apply everywhere.
func (srv *securitySettingsService) Get(ctx context.Context, userID uuid.UUID) (*entity.SecuritySettings, error) {
	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	if user.SecuritySettings == nil {
		return &entity.SecuritySettings{UserID: userID}, nil
	}

	return user.SecuritySettings, nil
}

// Update stores the overrides and audits the change.
func (srv *securitySettingsService) Update(ctx context.Context, input usecase.UpdateSecuritySettingsInput) (*entity.SecuritySettings, error) {
	if _, err := srv.userRepo.FindByID(ctx, input.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	if err := validateOverride(input.MaxFailedAttempts, "maxFailedAttempts"); err != nil {
		return nil, err
	}
	if err := validateOverride(input.LockoutDurationMinutes, "lockoutDurationMinutes"); err != nil {
		return nil, err
	}
	if err := validateOverride(input.SessionTimeoutMinutes, "sessionTimeoutMinutes"); err != nil {
		return nil, err
	}

	settings := &entity.SecuritySettings{
		UserID:                 input.UserID,
		RequireMFA:             input.RequireMFA,
		MaxFailedAttempts:      input.MaxFailedAttempts,
		LockoutDurationMinutes: input.LockoutDurationMinutes,
		SessionTimeoutMinutes:  input.SessionTimeoutMinutes,
		UpdatedAt:              srv.clock(),
	}
	if err := srv.userRepo.UpsertSecuritySettings(ctx, settings); err != nil {
		return nil, errors.Wrap(err, "failed to store security settings")
	}

	srv.auditChange(ctx, input)

	return settings, nil
}

func validateOverride(value *int, field string) error {
	if value != nil && *value <= 0 {
		return domainerrors.ErrValidationFailed.WrapMessage(field + " must be positive")
	}

	return nil
}

func (srv *securitySettingsService) auditChange(ctx context.Context, input usecase.UpdateSecuritySettingsInput) {
	details := map[string]any{"requireMFA": input.RequireMFA}
	if input.MaxFailedAttempts != nil {
		details["maxFailedAttempts"] = *input.MaxFailedAttempts
	}
	if input.LockoutDurationMinutes != nil {
		details["lockoutDurationMinutes"] = *input.LockoutDurationMinutes
	}
	if input.SessionTimeoutMinutes != nil {
		details["sessionTimeoutMinutes"] = *input.SessionTimeoutMinutes
	}

	err := srv.audit.LogEvent(ctx, usecase.LogEventInput{
		Action:     entity.ActionSecuritySettings,
		EntityType: "user",
		EntityID:   input.UserID.String(),
		ActorID:    &input.UserID,
		Details:    details,
		IPAddress:  input.IPAddress,
		UserAgent:  input.UserAgent,
	})
	if err != nil {
		srv.log(ctx).Error("Failed to audit security settings change", slog.Any("error", err))
	}
}
