package oauth

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"propguard/config"
	"propguard/internal/domain/entity"
	"propguard/internal/domain/service"
)

const (
	microsoftAuthorizeURL = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"
	microsoftTokenURL     = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	microsoftUserInfoURL  = "https://graph.microsoft.com/v1.0/me"
)

// newMicrosoftProvider builds the Microsoft identity platform client.
// Refresh tokens require the offline_access scope, so it is requested on
// every authorization regardless of the configured scope list.
func newMicrosoftProvider(cfg *config.SSOProviderConfig, clock service.Clock) service.IdentityProvider {
	return &httpProvider{
		name: entity.ProviderTypeMicrosoft,
		cfg:  cfg,
		endpoints: providerEndpoints{
			authorizeURL: microsoftAuthorizeURL,
			tokenURL:     microsoftTokenURL,
			userInfoURL:  microsoftUserInfoURL,
		},
		extraAuthParams: url.Values{},
		extraScopes:     []string{"offline_access"},
		normalize:       normalizeMicrosoftIdentity,
		client:          &http.Client{},
		clock:           clock,
	}
}

func normalizeMicrosoftIdentity(body []byte) (*service.ExternalIdentity, error) {
	var payload struct {
		ID                string `json:"id"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
		GivenName         string `json:"givenName"`
		Surname           string `json:"surname"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode Microsoft user info")
	}

	email := payload.Mail
	if email == "" {
		// Personal accounts often carry the address only in userPrincipalName.
		email = payload.UserPrincipalName
	}

	return &service.ExternalIdentity{
		ID:        payload.ID,
		Email:     email,
		FirstName: payload.GivenName,
		LastName:  payload.Surname,
	}, nil
}
