package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-system/internal/core/domain"
)

// Context keys set by the Auth middleware.
const (
	ContextActor = "actor"
	ContextRole  = "role"
)

// ctxActor extracts the identity injected by the Auth middleware. Its absence
// means the route was mounted without the middleware; answer 401 rather than
// forwarding an anonymous command.
func ctxActor(c echo.Context) (domain.Actor, error) {
	actor, ok := c.Get(ContextActor).(domain.Actor)
	if !ok || actor.UserID <= 0 {
		return domain.Actor{}, domain.Unauthorized("missing authentication claims")
	}
	return actor, nil
}
