package handler

import (
	"log/slog"
	"net/http"

	"propguard/internal/delivery/http/response"
	"propguard/internal/domain/entity"
	"propguard/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// AuthHandler holds dependencies for authentication handlers.
type AuthHandler struct {
	auth   usecase.AuthUsecase
	mfa    usecase.MFAUsecase
	logger *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler, injected by Fx.
func NewAuthHandler(auth usecase.AuthUsecase, mfa usecase.MFAUsecase, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, mfa: mfa, logger: logger}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"`
}

// Register handles the account registration request.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid registration input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	output, err := h.auth.Register(c.Request().Context(), usecase.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     entity.AccountRole(req.Role),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, toUserView(output.User), "Account registered successfully")
}

type loginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	DeviceName string `json:"deviceName"`
}

// Login handles the password login request.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid login input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	output, err := h.auth.Login(c.Request().Context(), usecase.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		DeviceName: req.DeviceName,
		IPAddress:  c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toLoginView(output), "Login successful")
}

type verifyMFARequest struct {
	MFAToken   string `json:"mfaToken" validate:"required"`
	Code       string `json:"code" validate:"required"`
	DeviceName string `json:"deviceName"`
}

// VerifyMFA completes an MFA-gated login with a TOTP code.
func (h *AuthHandler) VerifyMFA(c echo.Context) error {
	var req verifyMFARequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid MFA verification input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	output, err := h.auth.VerifyMFA(c.Request().Context(), usecase.VerifyMFAInput{
		MFAToken:   req.MFAToken,
		Code:       req.Code,
		DeviceName: req.DeviceName,
		IPAddress:  c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toLoginView(output), "MFA verification successful")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Refresh rotates a refresh token into a new token pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid refresh input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	output, err := h.auth.RefreshToken(c.Request().Context(), usecase.RefreshInput{
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, output, "Token refreshed successfully")
}

// Logout terminates the calling session and clears the refresh slot.
func (h *AuthHandler) Logout(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	err := h.auth.Logout(c.Request().Context(), usecase.LogoutInput{
		UserID:       claims.UserID,
		SessionToken: claims.SessionToken,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Successfully logged out"}, "Logout successful")
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// ChangePassword updates the password of the authenticated user.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid password change input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := h.auth.UpdatePassword(c.Request().Context(), usecase.UpdatePasswordInput{
		UserID:          claims.UserID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		SessionToken:    claims.SessionToken,
		IPAddress:       c.RealIP(),
		UserAgent:       c.Request().UserAgent(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Password changed"}, "Password changed successfully")
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword starts the password reset flow. The response is identical
// whether or not the email resolves to an account.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if _, err := h.auth.ForgotPassword(c.Request().Context(), usecase.ForgotPasswordInput{
		Email:     req.Email,
		IPAddress: c.RealIP(),
	}); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK,
		map[string]string{"message": "If the account exists, a reset link has been sent"},
		"Password reset requested")
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// ResetPassword completes the password reset flow.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid reset input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := h.auth.ResetPassword(c.Request().Context(), usecase.ResetPasswordInput{
		Token:       req.Token,
		NewPassword: req.NewPassword,
		IPAddress:   c.RealIP(),
		UserAgent:   c.Request().UserAgent(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Password reset"}, "Password reset successfully")
}

// StartMFAEnrollment provisions a pending TOTP secret for the caller.
func (h *AuthHandler) StartMFAEnrollment(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	output, err := h.mfa.StartEnrollment(c.Request().Context(), claims.UserID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, output, "MFA enrollment started")
}

type mfaCodeRequest struct {
	Code string `json:"code" validate:"required"`
}

// EnableMFA turns MFA on after verifying one code against the pending secret.
func (h *AuthHandler) EnableMFA(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	var req mfaCodeRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.mfa.Enable(c.Request().Context(), claims.UserID, req.Code, deviceInfo(c, "")); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "MFA enabled"}, "MFA enabled successfully")
}

// DisableMFA turns MFA off after verifying a current code.
func (h *AuthHandler) DisableMFA(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	var req mfaCodeRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.mfa.Disable(c.Request().Context(), claims.UserID, req.Code, deviceInfo(c, "")); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "MFA disabled"}, "MFA disabled successfully")
}

// HealthCheck is a simple handler to check if the service is up.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"}, "Service is healthy")
}
