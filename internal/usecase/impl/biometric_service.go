package impl

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"

	"propguard/config"
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

const biometricChallengeBytes = 32

// biometricService implements the BiometricUsecase interface. Credentials are
// device-bound public keys; login answers a server-issued single-use
// challenge instead of presenting a shared secret.
type biometricService struct {
	txManager      repository.TransactionManager
	userRepo       repository.UserRepository
	credentialRepo repository.BiometricCredentialRepository
	challengeStore service.ChallengeStore
	authUsecase    usecase.AuthUsecase
	audit          usecase.AuditUsecase
	cfg            *config.Config
	clock          service.Clock
	logger         *slog.Logger
}

// BiometricServiceParams holds dependencies for biometricService, injected by Fx.
type BiometricServiceParams struct {
	fx.In

	TxManager      repository.TransactionManager
	UserRepo       repository.UserRepository
	CredentialRepo repository.BiometricCredentialRepository
	ChallengeStore service.ChallengeStore
	AuthUsecase    usecase.AuthUsecase
	Audit          usecase.AuditUsecase
	Config         *config.Config
	Clock          service.Clock
	Logger         *slog.Logger
}

// NewBiometricService is the constructor for biometricService.
func NewBiometricService(params BiometricServiceParams) usecase.BiometricUsecase {
	return &biometricService{
		txManager:      params.TxManager,
		userRepo:       params.UserRepo,
		credentialRepo: params.CredentialRepo,
		challengeStore: params.ChallengeStore,
		authUsecase:    params.AuthUsecase,
		audit:          params.Audit,
		cfg:            params.Config,
		clock:          params.Clock,
		logger:         params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *biometricService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// GenerateRegistrationOptions issues a single-use registration challenge for
// an authenticated user.
func (srv *biometricService) GenerateRegistrationOptions(ctx context.Context, userID uuid.UUID) (*usecase.ChallengeOutput, error) {
	if _, err := srv.userRepo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	return srv.issueChallenge(ctx, userID, service.ChallengePurposeBiometricRegistration)
}

// GenerateAuthenticationOptions issues a single-use login challenge. The
// response is identical whether or not the email resolves to an account, so
// the endpoint cannot be used to probe registrations.
func (srv *biometricService) GenerateAuthenticationOptions(ctx context.Context, email string) (*usecase.ChallengeOutput, error) {
	boundUserID := uuid.Nil
	user, err := srv.userRepo.FindByEmail(ctx, email)
	if err == nil {
		boundUserID = user.ID
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, errors.Wrap(err, "failed to find user")
	}

	return srv.issueChallenge(ctx, boundUserID, service.ChallengePurposeBiometricAuthentication)
}

// RegisterCredential stores a device credential under a consumed registration
// challenge and marks the user biometric-enabled.
func (srv *biometricService) RegisterCredential(ctx context.Context, input usecase.RegisterCredentialInput) (*entity.BiometricCredential, error) {
	challenge, ok := srv.challengeStore.Consume(ctx, input.Challenge)
	if !ok || challenge.Purpose != service.ChallengePurposeBiometricRegistration || challenge.UserID != input.UserID {
		return nil, domainerrors.ErrInvalidBiometricAssertion.WrapMessage("unknown or expired registration challenge")
	}

	credential := &entity.BiometricCredential{
		UserID:       input.UserID,
		CredentialID: input.CredentialID,
		PublicKey:    input.PublicKey,
		DeviceType:   input.DeviceType,
		IsActive:     true,
	}

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		credentialRepo := repoFactory.NewBiometricCredentialRepository()
		userRepo := repoFactory.NewUserRepository()

		if err := credentialRepo.Create(ctx, credential); err != nil {
			return err
		}

		user, err := userRepo.FindByID(ctx, input.UserID)
		if err != nil {
			return errors.Wrap(err, "failed to find user")
		}
		if !user.BiometricEnabled {
			user.BiometricEnabled = true
			if err := userRepo.Update(ctx, user); err != nil {
				return errors.Wrap(err, "failed to enable biometric login")
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	srv.auditEvent(ctx, usecase.LogEventInput{
		Action:     entity.ActionBiometricRegister,
		EntityType: "biometric_credential",
		EntityID:   credential.TruncatedCredentialID(),
		ActorID:    &input.UserID,
		Details:    map[string]any{"deviceType": input.DeviceType},
		IPAddress:  input.IPAddress,
		UserAgent:  input.UserAgent,
	})

	return credential, nil
}

// Login verifies an assertion against a previously issued challenge and
// completes authentication on success.
func (srv *biometricService) Login(ctx context.Context, input usecase.BiometricLoginInput) (*usecase.LoginOutput, error) {
	device := usecase.DeviceInfo{DeviceName: input.DeviceName, IPAddress: input.IPAddress, UserAgent: input.UserAgent}

	challenge, ok := srv.challengeStore.Consume(ctx, input.Challenge)
	if !ok || challenge.Purpose != service.ChallengePurposeBiometricAuthentication {
		return nil, srv.failLogin(ctx, nil, device, "unknown or expired challenge")
	}

	user, err := srv.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, srv.failLogin(ctx, nil, device, "unknown account")
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	// The challenge must have been issued for this very account.
	if challenge.UserID != user.ID || !user.BiometricEnabled {
		return nil, srv.failLogin(ctx, &user.ID, device, "challenge not bound to account")
	}

	credential, err := srv.credentialRepo.FindByCredentialID(ctx, input.CredentialID)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return nil, srv.failLogin(ctx, &user.ID, device, "unknown credential")
		}

		return nil, errors.Wrap(err, "failed to find credential")
	}
	if credential.UserID != user.ID || !credential.IsActive {
		return nil, srv.failLogin(ctx, &user.ID, device, "credential not usable for account")
	}

	now := srv.clock()
	credential.LastUsed = &now
	if err := srv.credentialRepo.Update(ctx, credential); err != nil {
		return nil, errors.Wrap(err, "failed to record credential use")
	}

	srv.auditEvent(ctx, usecase.LogEventInput{
		Action:     entity.ActionBiometricVerify,
		EntityType: "biometric_credential",
		EntityID:   credential.TruncatedCredentialID(),
		ActorID:    &user.ID,
		Details:    map[string]any{"deviceType": credential.DeviceType},
		IPAddress:  device.IPAddress,
		UserAgent:  device.UserAgent,
	})

	return srv.authUsecase.CompleteLogin(ctx, user, loginMethodBiometric, device)
}

// ListCredentials returns the user's active credentials.
func (srv *biometricService) ListCredentials(ctx context.Context, userID uuid.UUID) ([]*entity.BiometricCredential, error) {
	credentials, err := srv.credentialRepo.FindActiveByUserID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list credentials")
	}

	return credentials, nil
}

// RemoveCredential deactivates one credential. When no active credentials
// remain the user's biometric flag is cleared.
func (srv *biometricService) RemoveCredential(ctx context.Context, userID uuid.UUID, credentialID string, device usecase.DeviceInfo) error {
	var removed *entity.BiometricCredential

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		credentialRepo := repoFactory.NewBiometricCredentialRepository()
		userRepo := repoFactory.NewUserRepository()

		credential, err := credentialRepo.FindByCredentialID(ctx, credentialID)
		if err != nil {
			if errors.Is(err, repository.ErrCredentialNotFound) {
				return domainerrors.ErrNotFound.WrapMessage("credential not found")
			}

			return errors.Wrap(err, "failed to find credential")
		}
		if credential.UserID != userID {
			return domainerrors.ErrForbidden.WrapMessage("credential does not belong to user")
		}

		credential.IsActive = false
		if err := credentialRepo.Update(ctx, credential); err != nil {
			return errors.Wrap(err, "failed to deactivate credential")
		}
		removed = credential

		remaining, err := credentialRepo.CountActiveByUserID(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "failed to count remaining credentials")
		}
		if remaining == 0 {
			user, err := userRepo.FindByID(ctx, userID)
			if err != nil {
				return errors.Wrap(err, "failed to find user")
			}
			user.BiometricEnabled = false
			if err := userRepo.Update(ctx, user); err != nil {
				return errors.Wrap(err, "failed to clear biometric flag")
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	srv.auditEvent(ctx, usecase.LogEventInput{
		Action:     entity.ActionBiometricRemoved,
		EntityType: "biometric_credential",
		EntityID:   removed.TruncatedCredentialID(),
		ActorID:    &userID,
		Details:    map[string]any{"deviceType": removed.DeviceType},
		IPAddress:  device.IPAddress,
		UserAgent:  device.UserAgent,
	})

	return nil
}

// issueChallenge stores and returns a fresh random challenge.
func (srv *biometricService) issueChallenge(ctx context.Context, userID uuid.UUID, purpose string) (*usecase.ChallengeOutput, error) {
	buf := make([]byte, biometricChallengeBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, errors.Wrap(err, "failed to generate challenge")
	}
	challengeValue := hex.EncodeToString(buf)

	expiresAt := srv.clock().Add(srv.cfg.Biometric.ChallengeTTL)
	err := srv.challengeStore.Issue(ctx, challengeValue, service.Challenge{
		UserID:    userID,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to store challenge")
	}

	return &usecase.ChallengeOutput{Challenge: challengeValue, ExpiresAt: expiresAt}, nil
}

// failLogin audits a failed biometric attempt and returns the generic
// credential error.
func (srv *biometricService) failLogin(ctx context.Context, userID *uuid.UUID, device usecase.DeviceInfo, reason string) error {
	input := usecase.LogEventInput{
		Action:     entity.ActionBiometricFailed,
		EntityType: "user",
		ActorID:    userID,
		Details:    map[string]any{"reason": reason},
		IPAddress:  device.IPAddress,
		UserAgent:  device.UserAgent,
		Severity:   entity.SeverityWarning,
	}
	if userID != nil {
		input.EntityID = userID.String()
	}
	srv.auditEvent(ctx, input)

	return domainerrors.ErrInvalidBiometricAssertion
}

func (srv *biometricService) auditEvent(ctx context.Context, input usecase.LogEventInput) {
	if err := srv.audit.LogEvent(ctx, input); err != nil {
		srv.log(ctx).Error("Failed to write audit entry", slog.String("action", input.Action), slog.Any("error", err))
	}
}
