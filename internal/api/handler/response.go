package handler

import "github.com/labstack/echo/v4"

// response is the success envelope of every gateway endpoint. Errors use
// domain.ErrorEnvelope, rendered by the HTTP error handler.
type response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
}

type accessTokenData struct {
	AccessToken string `json:"access_token"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, response{StatusCode: status, Message: message, Data: data})
}
