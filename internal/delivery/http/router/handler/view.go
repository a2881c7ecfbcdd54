// Package handler contains the HTTP handlers for the application.
package handler

import (
	"time"

	deliverycontext "propguard/internal/delivery/context"
	"propguard/internal/domain/entity"
	"propguard/internal/usecase"

	"github.com/labstack/echo/v4"
)

// userView is the public projection of a user. Credential material and
// lockout internals never leave the service.
type userView struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Role             string     `json:"role"`
	MFAEnabled       bool       `json:"mfaEnabled"`
	BiometricEnabled bool       `json:"biometricEnabled"`
	SSOEnabled       bool       `json:"ssoEnabled"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func toUserView(user *entity.User) *userView {
	if user == nil {
		return nil
	}

	return &userView{
		ID:               user.ID.String(),
		Email:            user.Email,
		Name:             user.Name,
		Role:             user.Role.String(),
		MFAEnabled:       user.MFAEnabled,
		BiometricEnabled: user.BiometricEnabled,
		SSOEnabled:       user.SSOEnabled,
		LastLogin:        user.LastLogin,
		CreatedAt:        user.CreatedAt,
	}
}

// loginView is the response of every authentication path. The MFA-gated shape
// carries only the continuation token. IsNewUser is set when an SSO login
// provisioned the account.
type loginView struct {
	RequiresMFA  bool      `json:"requiresMFA"`
	MFAToken     string    `json:"mfaToken,omitempty"`
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	SessionToken string    `json:"sessionToken,omitempty"`
	IsNewUser    bool      `json:"isNewUser"`
	User         *userView `json:"user,omitempty"`
}

func toLoginView(output *usecase.LoginOutput) *loginView {
	return &loginView{
		RequiresMFA:  output.RequiresMFA,
		MFAToken:     output.MFAToken,
		AccessToken:  output.AccessToken,
		RefreshToken: output.RefreshToken,
		SessionToken: output.SessionToken,
		IsNewUser:    output.IsNewUser,
		User:         toUserView(output.User),
	}
}

// sessionView is the public projection of a session; the token hash stays
// server-side.
type sessionView struct {
	ID           string    `json:"id"`
	DeviceName   string    `json:"deviceName"`
	IPAddress    string    `json:"ipAddress"`
	UserAgent    string    `json:"userAgent"`
	LastActivity time.Time `json:"lastActivity"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toSessionViews(sessions []*entity.Session) []*sessionView {
	views := make([]*sessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, &sessionView{
			ID:           session.ID.String(),
			DeviceName:   session.DeviceName,
			IPAddress:    session.IPAddress,
			UserAgent:    session.UserAgent,
			LastActivity: session.LastActivity,
			ExpiresAt:    session.ExpiresAt,
			CreatedAt:    session.CreatedAt,
		})
	}

	return views
}

// credentialView is the public projection of a biometric credential. Public
// key material is write-only.
type credentialView struct {
	CredentialID string     `json:"credentialId"`
	DeviceType   string     `json:"deviceType"`
	LastUsed     *time.Time `json:"lastUsed,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func toCredentialViews(credentials []*entity.BiometricCredential) []*credentialView {
	views := make([]*credentialView, 0, len(credentials))
	for _, credential := range credentials {
		views = append(views, &credentialView{
			CredentialID: credential.CredentialID,
			DeviceType:   credential.DeviceType,
			LastUsed:     credential.LastUsed,
			CreatedAt:    credential.CreatedAt,
		})
	}

	return views
}

// deviceInfo assembles the client context attached to sessions and audit
// entries. The device name comes from the client, the rest from the request.
func deviceInfo(c echo.Context, deviceName string) usecase.DeviceInfo {
	return usecase.DeviceInfo{
		DeviceName: deviceName,
		IPAddress:  c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
	}
}

// authClaims pulls the authenticated caller's claims set by the session
// middleware.
func authClaims(c echo.Context) (*deliverycontext.AuthClaims, bool) {
	return deliverycontext.GetAuthClaims(c)
}
