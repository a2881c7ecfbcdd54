package handler

import (
	"log/slog"
	"net/http"

	"propguard/internal/delivery/http/response"
	"propguard/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// BiometricHandler holds dependencies for biometric credential handlers.
type BiometricHandler struct {
	biometric usecase.BiometricUsecase
	logger    *slog.Logger
}

// NewBiometricHandler is the constructor for BiometricHandler, injected by Fx.
func NewBiometricHandler(biometric usecase.BiometricUsecase, logger *slog.Logger) *BiometricHandler {
	return &BiometricHandler{biometric: biometric, logger: logger}
}

// RegistrationOptions issues a single-use registration challenge for the caller.
func (h *BiometricHandler) RegistrationOptions(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	output, err := h.biometric.GenerateRegistrationOptions(c.Request().Context(), claims.UserID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, output, "Registration challenge issued")
}

type registerCredentialRequest struct {
	Challenge    string `json:"challenge" validate:"required"`
	CredentialID string `json:"credentialId" validate:"required"`
	PublicKey    string `json:"publicKey" validate:"required"`
	DeviceType   string `json:"deviceType"`
}

// RegisterCredential stores a device credential under a consumed challenge.
func (h *BiometricHandler) RegisterCredential(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	var req registerCredentialRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid credential input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	credential, err := h.biometric.RegisterCredential(c.Request().Context(), usecase.RegisterCredentialInput{
		UserID:       claims.UserID,
		Challenge:    req.Challenge,
		CredentialID: req.CredentialID,
		PublicKey:    req.PublicKey,
		DeviceType:   req.DeviceType,
		IPAddress:    c.RealIP(),
		UserAgent:    c.Request().UserAgent(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, &credentialView{
		CredentialID: credential.CredentialID,
		DeviceType:   credential.DeviceType,
		CreatedAt:    credential.CreatedAt,
	}, "Biometric credential registered")
}

type authenticationOptionsRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// AuthenticationOptions issues a single-use login challenge. The response is
// identical whether or not the email resolves to an account.
func (h *BiometricHandler) AuthenticationOptions(c echo.Context) error {
	var req authenticationOptionsRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	output, err := h.biometric.GenerateAuthenticationOptions(c.Request().Context(), req.Email)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, output, "Authentication challenge issued")
}

type biometricLoginRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Challenge    string `json:"challenge" validate:"required"`
	CredentialID string `json:"credentialId" validate:"required"`
	DeviceName   string `json:"deviceName"`
}

// Login answers an authentication challenge with a credential assertion.
func (h *BiometricHandler) Login(c echo.Context) error {
	var req biometricLoginRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid login input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	output, err := h.biometric.Login(c.Request().Context(), usecase.BiometricLoginInput{
		Email:        req.Email,
		Challenge:    req.Challenge,
		CredentialID: req.CredentialID,
		DeviceName:   req.DeviceName,
		IPAddress:    c.RealIP(),
		UserAgent:    c.Request().UserAgent(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toLoginView(output), "Biometric login successful")
}

// ListCredentials returns the caller's active credentials.
func (h *BiometricHandler) ListCredentials(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	credentials, err := h.biometric.ListCredentials(c.Request().Context(), claims.UserID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toCredentialViews(credentials), "Credentials retrieved")
}

// RemoveCredential deactivates one of the caller's credentials.
func (h *BiometricHandler) RemoveCredential(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	credentialID := c.Param("credentialId")
	if credentialID == "" {
		return response.BadRequest(c, "INVALID_INPUT", "Credential id is required")
	}

	if err := h.biometric.RemoveCredential(c.Request().Context(), claims.UserID, credentialID, deviceInfo(c, "")); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Credential removed"}, "Credential removed")
}
