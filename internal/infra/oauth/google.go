package oauth

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"propguard/config"
	"propguard/internal/domain/entity"
	"propguard/internal/domain/service"
)

const (
	googleAuthorizeURL = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL     = "https://oauth2.googleapis.com/token"
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// newGoogleProvider builds the Google identity client. Google grants refresh
// tokens only when access_type=offline is requested.
func newGoogleProvider(cfg *config.SSOProviderConfig, clock service.Clock) service.IdentityProvider {
	return &httpProvider{
		name: entity.ProviderTypeGoogle,
		cfg:  cfg,
		endpoints: providerEndpoints{
			authorizeURL: googleAuthorizeURL,
			tokenURL:     googleTokenURL,
			userInfoURL:  googleUserInfoURL,
		},
		extraAuthParams: url.Values{"access_type": []string{"offline"}},
		normalize:       normalizeGoogleIdentity,
		client:          &http.Client{},
		clock:           clock,
	}
}

func normalizeGoogleIdentity(body []byte) (*service.ExternalIdentity, error) {
	var payload struct {
		ID         string `json:"id"`
		Email      string `json:"email"`
		Name       string `json:"name"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode Google user info")
	}

	firstName, lastName := payload.GivenName, payload.FamilyName
	if firstName == "" && payload.Name != "" {
		firstName, lastName = splitDisplayName(payload.Name)
	}

	return &service.ExternalIdentity{
		ID:        payload.ID,
		Email:     payload.Email,
		FirstName: firstName,
		LastName:  lastName,
	}, nil
}

// splitDisplayName approximates given/family name from a single display name.
func splitDisplayName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}

	return parts[0], strings.Join(parts[1:], " ")
}
