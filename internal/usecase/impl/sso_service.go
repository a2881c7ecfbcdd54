package impl

import (
	"context"
	"log/slog"
	"strings"
	"time"

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

// ssoStateTTL bounds the round trip to the provider and back.
const ssoStateTTL = 10 * time.Minute

// ssoService implements the SSOUsecase interface over the authorization-code
// flow. SSO logins skip the local MFA step; the provider owns step-up
// authentication.
type ssoService struct {
	txManager      repository.TransactionManager
	userRepo       repository.UserRepository
	connectionRepo repository.OAuthConnectionRepository
	registry       service.ProviderRegistry
	tokenService   service.TokenService
	challengeStore service.ChallengeStore
	authUsecase    usecase.AuthUsecase
	audit          usecase.AuditUsecase
	clock          service.Clock
	logger         *slog.Logger
}

// SSOServiceParams holds dependencies for ssoService, injected by Fx.
type SSOServiceParams struct {
	fx.In

	TxManager      repository.TransactionManager
	UserRepo       repository.UserRepository
	ConnectionRepo repository.OAuthConnectionRepository
	Registry       service.ProviderRegistry
	TokenService   service.TokenService
	ChallengeStore service.ChallengeStore
	AuthUsecase    usecase.AuthUsecase
	Audit          usecase.AuditUsecase
	Clock          service.Clock
	Logger         *slog.Logger
}

// NewSSOService is the constructor for ssoService.
func NewSSOService(params SSOServiceParams) usecase.SSOUsecase {
	return &ssoService{
		txManager:      params.TxManager,
		userRepo:       params.UserRepo,
		connectionRepo: params.ConnectionRepo,
		registry:       params.Registry,
		tokenService:   params.TokenService,
		challengeStore: params.ChallengeStore,
		authUsecase:    params.AuthUsecase,
		audit:          params.Audit,
		clock:          params.Clock,
		logger:         params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *ssoService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// GetAuthorizationURL builds the provider redirect target with a single-use
// state value bound to this instance.
func (srv *ssoService) GetAuthorizationURL(ctx context.Context, provider string) (*usecase.SSOAuthorizationOutput, error) {
	identityProvider, err := srv.registry.Provider(provider)
	if err != nil {
		return nil, err
	}

	state := uuid.New().String()
	err = srv.challengeStore.Issue(ctx, srv.tokenService.HashToken(state), service.Challenge{
		Purpose:   service.ChallengePurposeSSOState,
		ExpiresAt: srv.clock().Add(ssoStateTTL),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to store sso state")
	}

	return &usecase.SSOAuthorizationOutput{
		AuthorizationURL: identityProvider.AuthorizationURL(state),
		State:            state,
	}, nil
}

// HandleCallback validates state, exchanges the authorization code, resolves
// the external identity to a local account and completes authentication.
func (srv *ssoService) HandleCallback(ctx context.Context, input usecase.SSOCallbackInput) (*usecase.LoginOutput, error) {
	challenge, ok := srv.challengeStore.Consume(ctx, srv.tokenService.HashToken(input.State))
	if !ok || challenge.Purpose != service.ChallengePurposeSSOState {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("unknown or expired state")
	}

	identityProvider, err := srv.registry.Provider(input.Provider)
	if err != nil {
		return nil, err
	}

	token, err := identityProvider.ExchangeCode(ctx, input.Code)
	if err != nil {
		srv.log(ctx).Warn("OAuth code exchange failed",
			slog.String("provider", input.Provider), slog.Any("error", err))

		return nil, domainerrors.ErrOAuthExchangeFailed.WrapMessage("code exchange rejected by provider")
	}

	identity, err := identityProvider.FetchIdentity(ctx, token.AccessToken)
	if err != nil {
		srv.log(ctx).Warn("OAuth userinfo fetch failed",
			slog.String("provider", input.Provider), slog.Any("error", err))

		return nil, domainerrors.ErrOAuthExchangeFailed.WrapMessage("failed to load provider identity")
	}
	if identity.ID == "" || identity.Email == "" {
		return nil, domainerrors.ErrOAuthExchangeFailed.WrapMessage("provider identity is incomplete")
	}

	user, isNewUser, err := srv.resolveUser(ctx, identity, token)
	if err != nil {
		return nil, err
	}

	srv.auditLogin(ctx, user, identity, isNewUser, input)

	output, err := srv.authUsecase.CompleteLogin(ctx, user, loginMethodSSO, usecase.DeviceInfo{
		DeviceName: input.DeviceName,
		IPAddress:  input.IPAddress,
		UserAgent:  input.UserAgent,
	})
	if err != nil {
		return nil, err
	}
	output.IsNewUser = isNewUser

	return output, nil
}

// resolveUser maps an external identity to a local account: a returning
// federated user by (provider, subject), then an existing account by email,
// then a fresh SSO-only tenant account.
func (srv *ssoService) resolveUser(ctx context.Context, identity *service.ExternalIdentity, token *service.ProviderToken) (*entity.User, bool, error) {
	connection, err := srv.connectionRepo.FindByProviderIdentity(ctx, identity.Provider, identity.ID)
	if err == nil {
		user, err := srv.userRepo.FindByID(ctx, connection.UserID)
		if err != nil {
			return nil, false, errors.Wrap(err, "failed to find linked user")
		}

		connection.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			connection.RefreshToken = token.RefreshToken
		}
		connection.TokenExpiresAt = token.ExpiresAt
		if err := srv.connectionRepo.Update(ctx, connection); err != nil {
			return nil, false, errors.Wrap(err, "failed to refresh connection tokens")
		}

		return user, false, nil
	}
	if !errors.Is(err, repository.ErrConnectionNotFound) {
		return nil, false, errors.Wrap(err, "failed to find oauth connection")
	}

	user, err := srv.userRepo.FindByEmail(ctx, identity.Email)
	if err == nil {
		// Same email, first federated login: link the provider identity to
		// the existing account.
		if err := srv.linkUser(ctx, user, identity, token); err != nil {
			return nil, false, err
		}

		return user, false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, false, errors.Wrap(err, "failed to find user by email")
	}

	user, err = srv.provisionUser(ctx, identity, token)
	if err != nil {
		return nil, false, err
	}

	return user, true, nil
}

// linkUser attaches the provider identity to an existing account.
func (srv *ssoService) linkUser(ctx context.Context, user *entity.User, identity *service.ExternalIdentity, token *service.ProviderToken) error {
	return srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		connectionRepo := repoFactory.NewOAuthConnectionRepository()
		userRepo := repoFactory.NewUserRepository()

		err := connectionRepo.Create(ctx, &entity.OAuthConnection{
			UserID:         user.ID,
			Provider:       identity.Provider,
			ProviderUserID: identity.ID,
			AccessToken:    token.AccessToken,
			RefreshToken:   token.RefreshToken,
			TokenExpiresAt: token.ExpiresAt,
		})
		if err != nil {
			return errors.Wrap(err, "failed to link provider identity")
		}

		user.SSOEnabled = true
		user.SSOProvider = identity.Provider
		user.SSOProviderID = identity.ID
		if err := userRepo.Update(ctx, user); err != nil {
			return errors.Wrap(err, "failed to mark user sso-enabled")
		}

		return nil
	})
}

// provisionUser creates a password-less tenant account from the provider
// identity.
func (srv *ssoService) provisionUser(ctx context.Context, identity *service.ExternalIdentity, token *service.ProviderToken) (*entity.User, error) {
	user := &entity.User{
		Email:         identity.Email,
		Name:          displayName(identity),
		Role:          entity.AccountRoleTenant,
		SSOEnabled:    true,
		SSOProvider:   identity.Provider,
		SSOProviderID: identity.ID,
	}

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()
		connectionRepo := repoFactory.NewOAuthConnectionRepository()

		if err := userRepo.Create(ctx, user); err != nil {
			return errors.Wrap(err, "failed to create sso user")
		}

		err := connectionRepo.Create(ctx, &entity.OAuthConnection{
			UserID:         user.ID,
			Provider:       identity.Provider,
			ProviderUserID: identity.ID,
			AccessToken:    token.AccessToken,
			RefreshToken:   token.RefreshToken,
			TokenExpiresAt: token.ExpiresAt,
		})
		if err != nil {
			return errors.Wrap(err, "failed to store oauth connection")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Info("Provisioned account from federated identity",
		slog.Any("userID", user.ID), slog.String("provider", identity.Provider.String()))

	return user, nil
}

func (srv *ssoService) auditLogin(ctx context.Context, user *entity.User, identity *service.ExternalIdentity, isNewUser bool, input usecase.SSOCallbackInput) {
	err := srv.audit.LogEvent(ctx, usecase.LogEventInput{
		Action:     entity.ActionSSOLogin,
		EntityType: "user",
		EntityID:   user.ID.String(),
		ActorID:    &user.ID,
		Details: map[string]any{
			"provider": identity.Provider.String(),
			"newUser":  isNewUser,
		},
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	})
	if err != nil {
		srv.log(ctx).Error("Failed to audit sso login", slog.Any("error", err))
	}
}

func displayName(identity *service.ExternalIdentity) string {
	name := strings.TrimSpace(strings.TrimSpace(identity.FirstName) + " " + strings.TrimSpace(identity.LastName))
	if name == "" {
		return identity.Email
	}

	return name
}
