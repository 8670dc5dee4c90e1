package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// TokenVerifier turns a bearer token into the principal it was issued for.
type TokenVerifier interface {
	Verify(token string) (Principal, error)
}

// SessionMiddleware authenticates every request that the skipper does not
// exempt. A missing, malformed, badly signed or expired token ends the
// request with 401; otherwise the principal is attached to the request
// context and stored under "principal" on the echo context.
func SessionMiddleware(verifier TokenVerifier, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "access denied: token not provided")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			principal, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token, please log in again")
			}

			c.Set("principal", principal)
			c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), principal)))

			return next(c)
		}
	}
}
