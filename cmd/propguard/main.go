package main

import (
	"context"
	"log/slog"
	"os"

	"propguard/config"
	"propguard/internal/delivery"
	"propguard/internal/delivery/http"
	"propguard/internal/delivery/http/middleware"
	"propguard/internal/delivery/http/router/handler"
	"propguard/internal/domain/service"
	"propguard/internal/infra/auth"
	logs "propguard/internal/infra/log"
	"propguard/internal/infra/oauth"
	"propguard/internal/infra/persistence/postgres"
	"propguard/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		postgres.New,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewUserRepository,
			postgres.NewSessionRepository,
			postgres.NewBiometricCredentialRepository,
			postgres.NewOAuthConnectionRepository,
			postgres.NewRBACRepository,
			postgres.NewAuditRepository,
			postgres.NewComplianceRepository,
			postgres.NewOwnershipReader,
			postgres.NewTransactionManager,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			newClock,
			auth.NewBcryptHasher,
			auth.NewJWTService,
			auth.NewTOTPService,
			auth.NewMemoryChallengeStore,
			oauth.NewProviderRegistry,
		),
	)
}

// newClock provides the production time source; tests inject frozen clocks.
func newClock() service.Clock {
	return service.SystemClock
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewAuthService,
			impl.NewSessionService,
			impl.NewMFAService,
			impl.NewBiometricService,
			impl.NewSSOService,
			impl.NewRBACService,
			impl.NewAuditService,
			impl.NewComplianceService,
			impl.NewSecuritySettingsService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewAuthMiddleware,
			middleware.NewErrorMiddleware,
			middleware.NewRequestIDMiddleware,
			middleware.NewLoggerMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAuthHandler,
			handler.NewBiometricHandler,
			handler.NewSSOHandler,
			handler.NewSessionHandler,
			handler.NewRBACHandler,
			handler.NewSecurityHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				http.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
