package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-system/internal/core/domain"
	"github.com/99minutos/identity-system/internal/rpc"
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Passes errors raised by the identity service through with their status and message.
//   - Maps transport failures to gateway statuses (502, 503, 504).
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"statusCode": <code>, "message": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, domain.ErrorEnvelope{StatusCode: code, Message: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	var de *domain.Error
	if errors.As(err, &de) {
		if de.Code >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Msg("upstream command failed")
		}
		return de.Code, de.Message
	}

	switch {
	case errors.Is(err, rpc.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Str("path", c.Path()).Msg("identity service did not reply in time")
		return http.StatusGatewayTimeout, "upstream timeout"
	case errors.Is(err, rpc.ErrTransport):
		log.Error().Err(err).Str("path", c.Path()).Msg("broker unavailable")
		return http.StatusBadGateway, "upstream unavailable"
	case errors.Is(err, rpc.ErrClientClosed):
		return http.StatusServiceUnavailable, "service shutting down"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "Internal server error"
}
