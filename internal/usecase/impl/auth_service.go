package impl

import (
	"context"
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

// Login method names recorded on LOGIN_SUCCESS audit entries.
const (
	loginMethodPassword  = "password"
	loginMethodMFA       = "mfa"
	loginMethodBiometric = "biometric"
	loginMethodSSO       = "sso"
)

// authService implements the AuthUsecase interface. It is the single place
// where authentication succeeds: every login path converges on CompleteLogin.
type authService struct {
	txManager      repository.TransactionManager
	userRepo       repository.UserRepository
	sessionUsecase usecase.SessionUsecase
	hasher         service.PasswordHasher
	tokenService   service.TokenService
	totpService    service.TOTPService
	challengeStore service.ChallengeStore
	audit          usecase.AuditUsecase
	cfg            *config.Config
	clock          service.Clock
	logger         *slog.Logger
}

// AuthServiceParams holds dependencies for authService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager      repository.TransactionManager
	UserRepo       repository.UserRepository
	SessionUsecase usecase.SessionUsecase
	Hasher         service.PasswordHasher
	TokenService   service.TokenService
	TOTPService    service.TOTPService
	ChallengeStore service.ChallengeStore
	Audit          usecase.AuditUsecase
	Config         *config.Config
	Clock          service.Clock
	Logger         *slog.Logger
}

// NewAuthService is the constructor for authService.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	return &authService{
		txManager:      params.TxManager,
		userRepo:       params.UserRepo,
		sessionUsecase: params.SessionUsecase,
		hasher:         params.Hasher,
		tokenService:   params.TokenService,
		totpService:    params.TOTPService,
		challengeStore: params.ChallengeStore,
		audit:          params.Audit,
		cfg:            params.Config,
		clock:          params.Clock,
		logger:         params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Register creates a new account with a strength-validated password.
func (srv *authService) Register(ctx context.Context, input usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	role := input.Role
	if role == "" {
		role = entity.AccountRoleTenant
	}
	if !role.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("unknown account role " + role.String())
	}

	if err := srv.hasher.ValidatePasswordStrength(input.Password); err != nil {
		srv.log(ctx).Warn("Password validation failed during registration", slog.String("email", input.Email), slog.Any("error", err))

		return nil, domainerrors.ErrPasswordStrength.WrapMessage(err.Error())
	}

	hashedPassword, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password during registration")
	}

	now := srv.clock()
	user := &entity.User{
		Email:               input.Email,
		Name:                input.Name,
		PasswordHash:        hashedPassword,
		Role:                role,
		PasswordLastChanged: &now,
	}

	if err := srv.userRepo.Create(ctx, user); err != nil {
		srv.log(ctx).Warn("Registration failed", slog.String("email", input.Email), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Info("Account registered", slog.Any("userID", user.ID), slog.String("role", role.String()))

	return &usecase.RegisterOutput{User: user}, nil
}

// Login authenticates with email and password. When the account requires a
// second factor the output carries only a short-lived MFA token.
func (srv *authService) Login(ctx context.Context, input usecase.LoginInput) (*usecase.LoginOutput, error) {
	device := usecase.DeviceInfo{DeviceName: input.DeviceName, IPAddress: input.IPAddress, UserAgent: input.UserAgent}

	user, err := srv.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			srv.auditLoginFailed(ctx, nil, device, "unknown account")

			return nil, domainerrors.ErrInvalidCredentials.WrapMessage("unknown account")
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	if err := srv.checkLockout(ctx, user, device); err != nil {
		return nil, err
	}

	if user.PasswordHash == "" || !srv.hasher.Check(input.Password, user.PasswordHash) {
		return nil, srv.recordFailedAttempt(ctx, user, device, "wrong password")
	}

	if user.MFARequired() {
		mfaToken, err := srv.issueMFAChallenge(ctx, user.ID)
		if err != nil {
			return nil, err
		}

		srv.log(ctx).Info("Login gated on MFA", slog.Any("userID", user.ID))

		return &usecase.LoginOutput{RequiresMFA: true, MFAToken: mfaToken}, nil
	}

	return srv.CompleteLogin(ctx, user, loginMethodPassword, device)
}

// VerifyMFA completes an MFA-gated login with a TOTP code.
func (srv *authService) VerifyMFA(ctx context.Context, input usecase.VerifyMFAInput) (*usecase.LoginOutput, error) {
	device := usecase.DeviceInfo{DeviceName: input.DeviceName, IPAddress: input.IPAddress, UserAgent: input.UserAgent}

	challenge, ok := srv.challengeStore.Consume(ctx, srv.tokenService.HashToken(input.MFAToken))
	if !ok || challenge.Purpose != service.ChallengePurposeMFALogin {
		return nil, domainerrors.ErrInvalidCredentials.WrapMessage("unknown or expired mfa token")
	}

	user, err := srv.userRepo.FindByID(ctx, challenge.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrInvalidCredentials.WrapMessage("account no longer exists")
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	if err := srv.checkLockout(ctx, user, device); err != nil {
		return nil, err
	}

	if user.MFASecret == "" || !srv.totpService.Validate(user.MFASecret, input.Code) {
		srv.auditEvent(ctx, usecase.LogEventInput{
			Action:     entity.ActionMFAFailed,
			EntityType: "user",
			EntityID:   user.ID.String(),
			ActorID:    &user.ID,
			IPAddress:  device.IPAddress,
			UserAgent:  device.UserAgent,
			Severity:   entity.SeverityWarning,
		})

		return nil, srv.recordFailedAttempt(ctx, user, device, "invalid mfa code")
	}

	return srv.CompleteLogin(ctx, user, loginMethodMFA, device)
}

// CompleteLogin finishes authentication for an already-verified user: the
// lockout state clears, a token pair is minted with the refresh token stored
// single-slot, and a session opens.
func (srv *authService) CompleteLogin(ctx context.Context, user *entity.User, method string, device usecase.DeviceInfo) (*usecase.LoginOutput, error) {
	accessToken, refreshToken, err := srv.tokenService.GenerateTokens(user.ID, []string{user.Role.String()})
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate tokens")
	}

	now := srv.clock()
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()

		if err := userRepo.ResetLockout(ctx, user.ID); err != nil {
			return errors.Wrap(err, "failed to reset lockout")
		}

		if err := userRepo.UpdateRefreshTokenHash(ctx, user.ID, srv.tokenService.HashToken(refreshToken)); err != nil {
			return errors.Wrap(err, "failed to store refresh token hash")
		}

		user.FailedLoginAttempts = 0
		user.IsLocked = false
		user.LockedUntil = nil
		user.LastLogin = &now

		return userRepo.Update(ctx, user)
	})
	if err != nil {
		srv.log(ctx).Error("Failed to finalize login", slog.Any("userID", user.ID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to finalize login")
	}

	session, err := srv.sessionUsecase.Create(ctx, usecase.CreateSessionInput{
		UserID:     user.ID,
		DeviceName: device.DeviceName,
		IPAddress:  device.IPAddress,
		UserAgent:  device.UserAgent,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open session")
	}

	srv.auditEvent(ctx, usecase.LogEventInput{
		Action:     entity.ActionLoginSuccess,
		EntityType: "user",
		EntityID:   user.ID.String(),
		ActorID:    &user.ID,
		Details:    map[string]any{"method": method, "device": device.DeviceName},
		IPAddress:  device.IPAddress,
		UserAgent:  device.UserAgent,
	})
	srv.log(ctx).Info("Login completed", slog.Any("userID", user.ID), slog.String("method", method))

	return &usecase.LoginOutput{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionToken: session.RawToken,
		User:         user,
	}, nil
}

// RefreshToken rotates a refresh token into a new pair. The presented token
// must match the single stored slot; older tokens are already invalid.
func (srv *authService) RefreshToken(ctx context.Context, input usecase.RefreshInput) (*usecase.RefreshOutput, error) {
	claims, err := srv.tokenService.ValidateRefreshToken(input.RefreshToken)
	if err != nil {
		return nil, domainerrors.ErrRefreshTokenInvalid.WrapMessage("refresh token rejected")
	}

	user, err := srv.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrRefreshTokenInvalid.WrapMessage("account no longer exists")
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	if user.RefreshTokenHash == "" || user.RefreshTokenHash != srv.tokenService.HashToken(input.RefreshToken) {
		return nil, domainerrors.ErrRefreshTokenInvalid.WrapMessage("refresh token superseded")
	}

	accessToken, refreshToken, err := srv.tokenService.GenerateTokens(user.ID, []string{user.Role.String()})
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate tokens")
	}

	if err := srv.userRepo.UpdateRefreshTokenHash(ctx, user.ID, srv.tokenService.HashToken(refreshToken)); err != nil {
		return nil, errors.Wrap(err, "failed to rotate refresh token")
	}

	return &usecase.RefreshOutput{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Logout closes the presented session and clears the refresh token slot.
func (srv *authService) Logout(ctx context.Context, input usecase.LogoutInput) error {
	if err := srv.sessionUsecase.Invalidate(ctx, input.SessionToken); err != nil {
		return errors.Wrap(err, "failed to invalidate session")
	}

	if err := srv.userRepo.UpdateRefreshTokenHash(ctx, input.UserID, ""); err != nil {
		return errors.Wrap(err, "failed to clear refresh token")
	}

	srv.log(ctx).Info("Logout completed", slog.Any("userID", input.UserID))

	return nil
}

// UpdatePassword changes an authenticated user's password and terminates all
// existing sessions.
func (srv *authService) UpdatePassword(ctx context.Context, input usecase.UpdatePasswordInput) error {
	user, err := srv.userRepo.FindByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return domainerrors.ErrUserNotFound
		}

		return errors.Wrap(err, "failed to find user")
	}

	if user.PasswordHash == "" || !srv.hasher.Check(input.CurrentPassword, user.PasswordHash) {
		return domainerrors.ErrInvalidCredentials.WrapMessage("current password rejected")
	}

	keepTokenHash := ""
	if input.SessionToken != "" {
		keepTokenHash = srv.tokenService.HashToken(input.SessionToken)
	}
	if err := srv.applyNewPassword(ctx, user, input.NewPassword, keepTokenHash); err != nil {
		return err
	}

	srv.auditEvent(ctx, usecase.LogEventInput{
		Action:     entity.ActionPasswordChanged,
		EntityType: "user",
		EntityID:   user.ID.String(),
		ActorID:    &user.ID,
		IPAddress:  input.IPAddress,
		UserAgent:  input.UserAgent,
	})

	return nil
}

// ForgotPassword starts the reset flow. The result is indistinguishable
// whether or not the account exists.
func (srv *authService) ForgotPassword(ctx context.Context, input usecase.ForgotPasswordInput) (*usecase.ForgotPasswordOutput, error) {
	user, err := srv.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			srv.log(ctx).Info("Password reset requested for unknown email")

			return &usecase.ForgotPasswordOutput{}, nil
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	resetToken := uuid.NewString()
	err = srv.challengeStore.Issue(ctx, srv.tokenService.HashToken(resetToken), service.Challenge{
		UserID:    user.ID,
		Purpose:   service.ChallengePurposePasswordReset,
		ExpiresAt: srv.clock().Add(srv.cfg.Auth.PasswordResetTokenTTL),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue reset token")
	}

	srv.auditEvent(ctx, usecase.LogEventInput{
		Action:     entity.ActionPasswordReset,
		EntityType: "user",
		EntityID:   user.ID.String(),
		Details:    map[string]any{"stage": "requested"},
		IPAddress:  input.IPAddress,
	})

	return &usecase.ForgotPasswordOutput{ResetToken: resetToken}, nil
}

// ResetPassword completes the reset flow with a single-use token.
func (srv *authService) ResetPassword(ctx context.Context, input usecase.ResetPasswordInput) error {
	challenge, ok := srv.challengeStore.Consume(ctx, srv.tokenService.HashToken(input.Token))
	if !ok || challenge.Purpose != service.ChallengePurposePasswordReset {
		return domainerrors.ErrInvalidCredentials.WrapMessage("unknown or expired reset token")
	}

	user, err := srv.userRepo.FindByID(ctx, challenge.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return domainerrors.ErrInvalidCredentials.WrapMessage("account no longer exists")
		}

		return errors.Wrap(err, "failed to find user")
	}

	if err := srv.applyNewPassword(ctx, user, input.NewPassword, ""); err != nil {
		return err
	}

	srv.auditEvent(ctx, usecase.LogEventInput{
		Action:     entity.ActionPasswordReset,
		EntityType: "user",
		EntityID:   user.ID.String(),
		ActorID:    &user.ID,
		Details:    map[string]any{"stage": "completed"},
		IPAddress:  input.IPAddress,
		UserAgent:  input.UserAgent,
	})

	return nil
}

// applyNewPassword validates strength and reuse, stores the new hash and
// revokes sessions and the refresh slot in one transaction. A non-empty
// keepTokenHash preserves that one session; the reset flow passes "" to
// revoke everything.
func (srv *authService) applyNewPassword(ctx context.Context, user *entity.User, newPassword, keepTokenHash string) error {
	if err := srv.hasher.ValidatePasswordStrength(newPassword); err != nil {
		return domainerrors.ErrPasswordStrength.WrapMessage(err.Error())
	}

	if srv.cfg.Auth.PasswordHistoryEnabled {
		recentHashes := append([]string{user.PasswordHash}, user.PasswordHistory...)
		for _, hash := range recentHashes {
			if hash != "" && srv.hasher.Check(newPassword, hash) {
				return domainerrors.ErrPasswordReused
			}
		}
	}

	newHash, err := srv.hasher.Hash(newPassword)
	if err != nil {
		return errors.Wrap(err, "failed to hash new password")
	}

	now := srv.clock()
	if user.PasswordHash != "" {
		user.PushPasswordHistory(user.PasswordHash)
	}
	user.PasswordHash = newHash
	user.PasswordLastChanged = &now

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()
		sessionRepo := repoFactory.NewSessionRepository()

		if err := userRepo.Update(ctx, user); err != nil {
			return errors.Wrap(err, "failed to store new password")
		}
		if err := userRepo.ResetLockout(ctx, user.ID); err != nil {
			return errors.Wrap(err, "failed to reset lockout")
		}
		if err := userRepo.UpdateRefreshTokenHash(ctx, user.ID, ""); err != nil {
			return errors.Wrap(err, "failed to clear refresh token")
		}

		if keepTokenHash != "" {
			return sessionRepo.InvalidateAllByUserIDExcept(ctx, user.ID, keepTokenHash)
		}

		return sessionRepo.InvalidateAllByUserID(ctx, user.ID)
	})
	if err != nil {
		return errors.Wrap(err, "failed to apply new password")
	}

	return nil
}

// checkLockout rejects the attempt while the lockout window is in effect,
// and clears expired lock state so counting restarts from zero.
func (srv *authService) checkLockout(ctx context.Context, user *entity.User, device usecase.DeviceInfo) error {
	now := srv.clock()
	if user.IsCurrentlyLocked(now) {
		srv.auditLoginFailed(ctx, user, device, "account locked")

		return domainerrors.ErrAccountLocked
	}

	if user.IsLocked {
		if err := srv.userRepo.ResetLockout(ctx, user.ID); err != nil {
			return errors.Wrap(err, "failed to clear expired lockout")
		}
		user.IsLocked = false
		user.LockedUntil = nil
		user.FailedLoginAttempts = 0
	}

	return nil
}

// recordFailedAttempt counts a failed credential check and locks the account
// when the effective threshold is reached. The increment is a single atomic
// UPDATE so concurrent failures cannot under-count.
func (srv *authService) recordFailedAttempt(ctx context.Context, user *entity.User, device usecase.DeviceInfo, reason string) error {
	attempts, err := srv.userRepo.IncrementFailedLogins(ctx, user.ID)
	if err != nil {
		return errors.Wrap(err, "failed to record failed login")
	}

	srv.auditLoginFailed(ctx, user, device, reason)

	policy := resolveLockoutPolicy(srv.cfg.Auth, user.SecuritySettings)
	if !policy.shouldLock(attempts) {
		return domainerrors.ErrInvalidCredentials
	}

	until := policy.lockedUntil(srv.clock())
	if err := srv.userRepo.Lock(ctx, user.ID, until); err != nil {
		return errors.Wrap(err, "failed to lock account")
	}

	srv.auditEvent(ctx, usecase.LogEventInput{
		Action:     entity.ActionAccountLocked,
		EntityType: "user",
		EntityID:   user.ID.String(),
		Details:    map[string]any{"failedAttempts": attempts, "lockedUntil": until},
		IPAddress:  device.IPAddress,
		UserAgent:  device.UserAgent,
		Severity:   entity.SeverityWarning,
	})
	srv.log(ctx).Warn("Account locked after repeated failures", slog.Any("userID", user.ID), slog.Int("attempts", attempts))

	return domainerrors.ErrAccountLocked
}

// issueMFAChallenge stores a short-lived token bridging the password step and
// the TOTP step.
func (srv *authService) issueMFAChallenge(ctx context.Context, userID uuid.UUID) (string, error) {
	mfaToken := uuid.NewString()
	err := srv.challengeStore.Issue(ctx, srv.tokenService.HashToken(mfaToken), service.Challenge{
		UserID:    userID,
		Purpose:   service.ChallengePurposeMFALogin,
		ExpiresAt: srv.clock().Add(srv.cfg.MFA.LoginChallengeTTL),
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to issue mfa challenge")
	}

	return mfaToken, nil
}

// auditLoginFailed records a LOGIN_FAILED entry. The user may be nil for
// attempts against unknown accounts.
func (srv *authService) auditLoginFailed(ctx context.Context, user *entity.User, device usecase.DeviceInfo, reason string) {
	input := usecase.LogEventInput{
		Action:     entity.ActionLoginFailed,
		EntityType: "user",
		Details:    map[string]any{"reason": reason},
		IPAddress:  device.IPAddress,
		UserAgent:  device.UserAgent,
		Severity:   entity.SeverityWarning,
	}
	if user != nil {
		input.EntityID = user.ID.String()
	}

	srv.auditEvent(ctx, input)
}

// auditEvent records an audit entry; audit failures are logged, never
// propagated into the authentication outcome.
func (srv *authService) auditEvent(ctx context.Context, input usecase.LogEventInput) {
	if err := srv.audit.LogEvent(ctx, input); err != nil {
		srv.log(ctx).Error("Failed to write audit entry", slog.String("action", input.Action), slog.Any("error", err))
	}
}
