package handler

import (
	"log/slog"
	"net/http"

	"propguard/internal/delivery/http/response"
	"propguard/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// SessionHandler holds dependencies for session management handlers.
type SessionHandler struct {
	sessions usecase.SessionUsecase
	settings usecase.SecuritySettingsUsecase
	logger   *slog.Logger
}

// NewSessionHandler is the constructor for SessionHandler, injected by Fx.
func NewSessionHandler(sessions usecase.SessionUsecase, settings usecase.SecuritySettingsUsecase, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, settings: settings, logger: logger}
}

// ListSessions returns the caller's active sessions, oldest activity first.
func (h *SessionHandler) ListSessions(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	sessions, err := h.sessions.GetActiveSessions(c.Request().Context(), claims.UserID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toSessionViews(sessions), "Sessions retrieved")
}

// RevokeSession deactivates one of the caller's sessions.
func (h *SessionHandler) RevokeSession(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid session id")
	}

	if err := h.sessions.InvalidateByID(c.Request().Context(), claims.UserID, sessionID); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Session revoked"}, "Session revoked")
}

// RevokeAllSessions deactivates every session of the caller.
func (h *SessionHandler) RevokeAllSessions(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	if err := h.sessions.InvalidateAll(c.Request().Context(), claims.UserID); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "All sessions revoked"}, "Sessions revoked")
}

// ExtendSession pushes one of the caller's sessions forward by the configured TTL.
func (h *SessionHandler) ExtendSession(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid session id")
	}

	expiresAt, err := h.sessions.Extend(c.Request().Context(), claims.UserID, sessionID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]any{"expiresAt": expiresAt}, "Session extended")
}

// GetSecuritySettings returns the caller's security policy overrides.
func (h *SessionHandler) GetSecuritySettings(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	settings, err := h.settings.Get(c.Request().Context(), claims.UserID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, settings, "Security settings retrieved")
}

type updateSecuritySettingsRequest struct {
	RequireMFA             bool `json:"requireMFA"`
	MaxFailedAttempts      *int `json:"maxFailedAttempts"`
	LockoutDurationMinutes *int `json:"lockoutDurationMinutes"`
	SessionTimeoutMinutes  *int `json:"sessionTimeoutMinutes"`
}

// UpdateSecuritySettings stores the caller's security policy overrides.
func (h *SessionHandler) UpdateSecuritySettings(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	var req updateSecuritySettingsRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid settings input")
	}

	settings, err := h.settings.Update(c.Request().Context(), usecase.UpdateSecuritySettingsInput{
		UserID:                 claims.UserID,
		RequireMFA:             req.RequireMFA,
		MaxFailedAttempts:      req.MaxFailedAttempts,
		LockoutDurationMinutes: req.LockoutDurationMinutes,
		SessionTimeoutMinutes:  req.SessionTimeoutMinutes,
		IPAddress:              c.RealIP(),
		UserAgent:              c.Request().UserAgent(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, settings, "Security settings updated")
}
