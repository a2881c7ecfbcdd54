package handler

import (
	"log/slog"
	"net/http"

	"propguard/internal/delivery/http/response"
	"propguard/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// SSOHandler holds dependencies for federated login handlers.
type SSOHandler struct {
	sso    usecase.SSOUsecase
	logger *slog.Logger
}

// NewSSOHandler is the constructor for SSOHandler, injected by Fx.
func NewSSOHandler(sso usecase.SSOUsecase, logger *slog.Logger) *SSOHandler {
	return &SSOHandler{sso: sso, logger: logger}
}

// Authorize builds the provider's authorize URL. With ?redirect=true the
// client is sent straight to the provider.
func (h *SSOHandler) Authorize(c echo.Context) error {
	output, err := h.sso.GetAuthorizationURL(c.Request().Context(), c.Param("provider"))
	if err != nil {
		return errors.WithStack(err)
	}

	if c.QueryParam("redirect") == "true" {
		return c.Redirect(http.StatusTemporaryRedirect, output.AuthorizationURL)
	}

	return response.Success(c, http.StatusOK, output, "Authorization URL generated")
}

type ssoCallbackRequest struct {
	Code       string `json:"code"`
	State      string `json:"state"`
	DeviceName string `json:"deviceName"`
}

// Callback completes the authorization-code flow. Providers call it with
// query parameters; single-page clients may POST the same values as JSON.
func (h *SSOHandler) Callback(c echo.Context) error {
	req := ssoCallbackRequest{
		Code:  c.QueryParam("code"),
		State: c.QueryParam("state"),
	}
	if req.Code == "" {
		if err := c.Bind(&req); err != nil {
			return response.BindingError(c, "INVALID_INPUT", "Invalid callback input")
		}
	}
	if req.Code == "" || req.State == "" {
		return response.BadRequest(c, "INVALID_INPUT", "Code and state are required")
	}

	output, err := h.sso.HandleCallback(c.Request().Context(), usecase.SSOCallbackInput{
		Provider:   c.Param("provider"),
		Code:       req.Code,
		State:      req.State,
		DeviceName: req.DeviceName,
		IPAddress:  c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toLoginView(output), "SSO authentication successful")
}
