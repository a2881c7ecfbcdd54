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

// mfaService implements the MFAUsecase interface on top of TOTP.
type mfaService struct {
	userRepo    repository.UserRepository
	totpService service.TOTPService
	audit       usecase.AuditUsecase
	logger      *slog.Logger
}

// MFAServiceParams holds dependencies for mfaService, injected by Fx.
type MFAServiceParams struct {
	fx.In

	UserRepo    repository.UserRepository
	TOTPService service.TOTPService
	Audit       usecase.AuditUsecase
	Logger      *slog.Logger
}

// NewMFAService is the constructor for mfaService.
func NewMFAService(params MFAServiceParams) usecase.MFAUsecase {
	return &mfaService{
		userRepo:    params.UserRepo,
		totpService: params.TOTPService,
		audit:       params.Audit,
		logger:      params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *mfaService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// StartEnrollment provisions a pending secret. MFA stays off until Enable
// proves the user's authenticator produces valid codes.
func (srv *mfaService) StartEnrollment(ctx context.Context, userID uuid.UUID) (*usecase.MFAEnrollmentOutput, error) {
	user, err := srv.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	enrollment, err := srv.totpService.GenerateSecret(user.Email)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate totp secret")
	}

	user.MFASecret = enrollment.Secret
	user.MFAEnabled = false
	if err := srv.userRepo.Update(ctx, user); err != nil {
		return nil, errors.Wrap(err, "failed to store pending mfa secret")
	}

	srv.log(ctx).Info("MFA enrollment started", slog.Any("userID", userID))

	return &usecase.MFAEnrollmentOutput{
		Secret:        enrollment.Secret,
		EnrollmentURI: enrollment.EnrollmentURI,
	}, nil
}

// Enable turns MFA on after verifying one code against the pending secret.
func (srv *mfaService) Enable(ctx context.Context, userID uuid.UUID, code string, device usecase.DeviceInfo) error {
	user, err := srv.findUser(ctx, userID)
	if err != nil {
		return err
	}

	if user.MFASecret == "" {
		return domainerrors.ErrValidationFailed.WrapMessage("mfa enrollment has not been started")
	}
	if !srv.totpService.Validate(user.MFASecret, code) {
		return domainerrors.ErrInvalidMFACode
	}

	user.MFAEnabled = true
	if err := srv.userRepo.Update(ctx, user); err != nil {
		return errors.Wrap(err, "failed to enable mfa")
	}

	srv.auditEvent(ctx, entity.ActionMFAEnabled, userID, device)

	return nil
}

// Disable turns MFA off and clears the stored secret. A valid current code
// is required so a hijacked session cannot silently drop the factor.
func (srv *mfaService) Disable(ctx context.Context, userID uuid.UUID, code string, device usecase.DeviceInfo) error {
	user, err := srv.findUser(ctx, userID)
	if err != nil {
		return err
	}

	if !user.MFAEnabled {
		return domainerrors.ErrValidationFailed.WrapMessage("mfa is not enabled")
	}
	if !srv.totpService.Validate(user.MFASecret, code) {
		return domainerrors.ErrInvalidMFACode
	}

	user.MFAEnabled = false
	user.MFASecret = ""
	if err := srv.userRepo.Update(ctx, user); err != nil {
		return errors.Wrap(err, "failed to disable mfa")
	}

	srv.auditEvent(ctx, entity.ActionMFADisabled, userID, device)

	return nil
}

// VerifyCode checks a code against the user's enrolled secret.
func (srv *mfaService) VerifyCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	user, err := srv.findUser(ctx, userID)
	if err != nil {
		return false, err
	}

	if user.MFASecret == "" {
		return false, nil
	}

	return srv.totpService.Validate(user.MFASecret, code), nil
}

func (srv *mfaService) findUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	return user, nil
}

func (srv *mfaService) auditEvent(ctx context.Context, action string, userID uuid.UUID, device usecase.DeviceInfo) {
	err := srv.audit.LogEvent(ctx, usecase.LogEventInput{
		Action:     action,
		EntityType: "user",
		EntityID:   userID.String(),
		ActorID:    &userID,
		IPAddress:  device.IPAddress,
		UserAgent:  device.UserAgent,
	})
	if err != nil {
		srv.log(ctx).Error("Failed to audit mfa change", slog.String("action", action), slog.Any("error", err))
	}
}
