package usecase

import (
	"context"
)

// SSOAuthorizationOutput returns the provider redirect target and the state
// value bound to it.
type SSOAuthorizationOutput struct {
	AuthorizationURL string
	State            string
}

// SSOCallbackInput carries the provider callback parameters.
type SSOCallbackInput struct {
	Provider   string
	Code       string
	State      string
	DeviceName string
	IPAddress  string
	UserAgent  string
}

// SSOUsecase defines federated login through external identity providers.
type SSOUsecase interface {
	// GetAuthorizationURL builds the provider's authorize URL with a
	// single-use state value.
	GetAuthorizationURL(ctx context.Context, provider string) (*SSOAuthorizationOutput, error)

	// HandleCallback validates state, exchanges the code, resolves or creates
	// the local account and completes authentication. SSO logins bypass MFA;
	// the provider owns step-up authentication.
	HandleCallback(ctx context.Context, input SSOCallbackInput) (*LoginOutput, error)
}
