package middleware

import (
	"net/http"
	"strings"

	deliverycontext "propguard/internal/delivery/context"
	"propguard/internal/usecase"

	"github.com/labstack/echo/v4"
)

// AuthMiddleware authenticates requests against the server-side session
// store. The bearer credential is the opaque session token issued at login;
// every request revalidates it, so revocation takes effect immediately.
type AuthMiddleware struct {
	sessions usecase.SessionUsecase
	rbac     usecase.RBACUsecase
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(sessions usecase.SessionUsecase, rbac usecase.RBACUsecase) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, rbac: rbac}
}

// Authenticate validates the bearer session token and attaches typed claims.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authorization header is missing"})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token format, must be Bearer token"})
		}

		session, err := m.sessions.Validate(c.Request().Context(), token)
		if err != nil {
			return err
		}
		if session == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired session"})
		}

		deliverycontext.SetAuthClaims(c, &deliverycontext.AuthClaims{
			UserID:       session.UserID,
			SessionID:    session.ID,
			SessionToken: token,
		})

		return next(c)
	}
}

// RequirePermission is a middleware factory gating a route on one permission.
// It must be used AFTER the Authenticate middleware.
func (m *AuthMiddleware) RequirePermission(resource, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := deliverycontext.GetAuthClaims(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
			}

			granted, err := m.rbac.CheckPermission(c.Request().Context(), usecase.PermissionCheckInput{
				UserID:   claims.UserID,
				Resource: resource,
				Action:   action,
			})
			if err != nil {
				return err
			}
			if !granted {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Permission denied: require '" + resource + ":" + action + "'"})
			}

			return next(c)
		}
	}
}
