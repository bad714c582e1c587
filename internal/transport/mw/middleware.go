package mw

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vidmesh/realtime/internal/auth"
)

const identityKey = "identity"

// JWTAuth validates the Bearer token on every request and stores the caller's
// identity in the echo context. WebSocket handshakes from browsers cannot set
// headers, so a "token" query parameter is accepted as a fallback.
func JWTAuth(verifier *auth.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := bearerToken(c)
			if tokenStr == "" {
				tokenStr = c.QueryParam("token")
			}
			if tokenStr == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			identity, err := verifier.Verify(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(identityKey, identity)
			return next(c)
		}
	}
}

// IdentityFrom returns the authenticated identity stored by JWTAuth.
func IdentityFrom(c echo.Context) (*auth.Identity, bool) {
	identity, ok := c.Get(identityKey).(*auth.Identity)
	return identity, ok
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
