// Package oauth contains HTTP clients for external identity providers,
// driving the OAuth2 authorization-code flow.
package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"

	"propguard/config"
	domainerrors "propguard/internal/domain/errors"
	"propguard/internal/domain/entity"
	"propguard/internal/domain/service"
)

// providerEndpoints holds the three URLs an authorization-code flow touches.
type providerEndpoints struct {
	authorizeURL string
	tokenURL     string
	userInfoURL  string
}

// registry resolves configured identity providers by name.
type registry struct {
	providers map[string]service.IdentityProvider
}

// NewProviderRegistry builds clients for every active provider in configuration.
func NewProviderRegistry(cfg *config.Config, clock service.Clock) service.ProviderRegistry {
	providers := make(map[string]service.IdentityProvider)

	for name, providerCfg := range cfg.SSO {
		if providerCfg == nil || !providerCfg.IsActive || providerCfg.ClientID == "" {
			continue
		}

		switch entity.ProviderType(name) {
		case entity.ProviderTypeGoogle:
			providers[name] = newGoogleProvider(providerCfg, clock)
		case entity.ProviderTypeMicrosoft:
			providers[name] = newMicrosoftProvider(providerCfg, clock)
		}
	}

	return &registry{providers: providers}
}

// Provider returns the client for the named provider.
func (r *registry) Provider(name string) (service.IdentityProvider, error) {
	if !entity.ProviderType(name).IsValid() {
		return nil, domainerrors.ErrUnsupportedProvider.WrapMessage("unknown provider " + name)
	}

	provider, ok := r.providers[name]
	if !ok {
		return nil, domainerrors.ErrProviderNotConfigured.WrapMessage("provider " + name + " is not configured")
	}

	return provider, nil
}

// httpProvider implements the shared mechanics of the code flow; the
// normalize function adapts each provider's userinfo payload.
type httpProvider struct {
	name      entity.ProviderType
	cfg       *config.SSOProviderConfig
	endpoints providerEndpoints
	// extraAuthParams are appended to every authorize URL, e.g. Google's
	// access_type=offline. Consent is always forced so refresh tokens are
	// re-issued on re-authorization.
	extraAuthParams url.Values
	// extraScopes are always requested in addition to the configured scope
	// list, e.g. Microsoft's offline_access.
	extraScopes []string
	normalize   func(body []byte) (*service.ExternalIdentity, error)
	client      *http.Client
	clock       service.Clock
}

// Name returns the provider identity.
func (p *httpProvider) Name() entity.ProviderType {
	return p.name
}

// AuthorizationURL builds the provider's authorize endpoint URL.
func (p *httpProvider) AuthorizationURL(state string) string {
	params := url.Values{}
	params.Set("client_id", p.cfg.ClientID)
	params.Set("redirect_uri", p.cfg.RedirectURI)
	scopes := make([]string, 0, len(p.cfg.Scopes)+len(p.extraScopes))
	scopes = append(scopes, p.cfg.Scopes...)
	for _, scope := range p.extraScopes {
		if !slices.Contains(scopes, scope) {
			scopes = append(scopes, scope)
		}
	}
	params.Set("scope", strings.Join(scopes, " "))
	params.Set("response_type", "code")
	params.Set("prompt", "consent")
	if state != "" {
		params.Set("state", state)
	}
	for key, values := range p.extraAuthParams {
		for _, value := range values {
			params.Set(key, value)
		}
	}

	return p.endpoints.authorizeURL + "?" + params.Encode()
}

// ExchangeCode trades an authorization code for provider tokens.
func (p *httpProvider) ExchangeCode(ctx context.Context, code string) (*service.ProviderToken, error) {
	form := url.Values{}
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", p.cfg.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoints.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to exchange code for token")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return nil, domainerrors.ErrOAuthExchangeFailed.WrapMessage(
			"token exchange failed with status " + resp.Status + ": " + string(body))
	}

	var tokenResponse struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return nil, errors.Wrap(err, "failed to decode token response")
	}

	token := &service.ProviderToken{
		AccessToken:  tokenResponse.AccessToken,
		RefreshToken: tokenResponse.RefreshToken,
	}
	if tokenResponse.ExpiresIn > 0 {
		expiresAt := p.clock().Add(time.Duration(tokenResponse.ExpiresIn) * time.Second)
		token.ExpiresAt = &expiresAt
	}

	return token, nil
}

// FetchIdentity loads and normalizes the provider's userinfo payload.
func (p *httpProvider) FetchIdentity(ctx context.Context, accessToken string) (*service.ExternalIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoints.userInfoURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user info request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user info")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read user info response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("user info request failed with status %d: %s", resp.StatusCode, string(body))
	}

	identity, err := p.normalize(body)
	if err != nil {
		return nil, err
	}
	identity.Provider = p.name

	return identity, nil
}
