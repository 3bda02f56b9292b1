package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-system/internal/api/handler"
	"github.com/99minutos/identity-system/internal/core/domain"
)

// RBAC enforces role-based access control on the role claim of the verified
// token. The identity service re-checks authorization against the store.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(handler.ContextRole).(string)
			if _, ok := allowed[role]; !ok {
				return c.JSON(http.StatusForbidden, domain.ErrForbidden.Envelope())
			}
			return next(c)
		}
	}
}
