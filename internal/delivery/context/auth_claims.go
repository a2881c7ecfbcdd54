package context

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// KeyAuthClaims is the key for storing authenticated-caller claims in context.
const KeyAuthClaims ContextKey = "auth_claims"

// AuthClaims identifies the authenticated caller of a request. It is attached
// by the session middleware and read by handlers; the raw session token is
// kept so logout can revoke the very session that authenticated the call.
type AuthClaims struct {
	UserID       uuid.UUID
	SessionID    uuid.UUID
	SessionToken string
}

// SetAuthClaims stores the caller's claims in echo.Context.
func SetAuthClaims(c echo.Context, claims *AuthClaims) {
	c.Set(string(KeyAuthClaims), claims)
}

// GetAuthClaims extracts the caller's claims from echo.Context.
// The boolean is false when the request did not pass authentication.
func GetAuthClaims(c echo.Context) (*AuthClaims, bool) {
	claims, ok := c.Get(string(KeyAuthClaims)).(*AuthClaims)

	return claims, ok && claims != nil
}
