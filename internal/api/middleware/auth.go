package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-system/internal/api/handler"
	"github.com/99minutos/identity-system/internal/core/domain"
	"github.com/99minutos/identity-system/internal/core/token"
)

// Auth verifies the bearer access token (signature, expiry and type) and
// injects the caller's identity and role into the context. No store or cache
// is consulted.
func Auth(codec *token.Codec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return domain.Unauthorized("missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return domain.Unauthorized("invalid authorization header")
			}

			claims, err := codec.VerifyAccess(strings.TrimSpace(parts[1]))
			if err != nil {
				return domain.ErrInvalidAccessToken
			}

			c.Set(handler.ContextActor, claims.Actor())
			c.Set(handler.ContextRole, claims.Role)

			return next(c)
		}
	}
}
