package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-system/internal/core/domain"
	"github.com/99minutos/identity-system/internal/core/ports"
)

// RefreshCookie configures the cookie that carries the refresh token.
type RefreshCookie struct {
	Name   string
	Path   string
	Domain string
	MaxAge time.Duration
	Secure bool
}

// DefaultRefreshCookie is HttpOnly, Secure, SameSite=Strict, scoped to /auth
// and lives one day.
func DefaultRefreshCookie() RefreshCookie {
	return RefreshCookie{Name: "refresh_token", Path: "/auth", MaxAge: 24 * time.Hour, Secure: true}
}

type AuthHandler struct {
	identity ports.IdentityService
	cookie   RefreshCookie
}

func NewAuthHandler(identity ports.IdentityService, cookie RefreshCookie) *AuthHandler {
	if cookie.Name == "" {
		cookie = DefaultRefreshCookie()
	}
	return &AuthHandler{identity: identity, cookie: cookie}
}

type registerRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register creates a new user account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  response
// @Failure      400   {object}  domain.ErrorEnvelope
// @Failure      409   {object}  domain.ErrorEnvelope
// @Failure      504   {object}  domain.ErrorEnvelope
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return domain.BadRequest("invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return domain.BadRequest(err.Error())
	}

	user, err := h.identity.Register(c.Request().Context(), domain.RegisterPayload{
		Email:    req.Email,
		Password: req.Password,
		Profile: domain.Profile{
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Avatar:     req.Avatar,
			Phone:      req.Phone,
			Address:    req.Address,
			City:       req.City,
			Country:    req.Country,
			PostalCode: req.PostalCode,
		},
	})
	if err != nil {
		return err
	}

	return respond(c, http.StatusCreated, "User registered successfully", user)
}

// Login authenticates a user. The access token is returned in the body; the
// refresh token only travels in an HttpOnly cookie.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  response
// @Failure      400   {object}  domain.ErrorEnvelope
// @Failure      401   {object}  domain.ErrorEnvelope
// @Failure      504   {object}  domain.ErrorEnvelope
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return domain.BadRequest("invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return domain.BadRequest(err.Error())
	}

	pair, err := h.identity.Login(c.Request().Context(), domain.LoginPayload{Email: req.Email, Password: req.Password})
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     h.cookie.Name,
		Value:    pair.RefreshToken,
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})

	return respond(c, http.StatusOK, "Login successful", accessTokenData{AccessToken: pair.AccessToken})
}

// Refresh mints a new access token from the refresh token presented in the
// Authorization header or, failing that, the refresh cookie.
//
// @Summary      Refresh the access token
// @Tags         auth
// @Produce      json
// @Param        Authorization  header    string  false  "Bearer <refresh token>"
// @Success      200            {object}  response
// @Failure      401            {object}  domain.ErrorEnvelope
// @Failure      504            {object}  domain.ErrorEnvelope
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := h.refreshToken(c)
	if raw == "" {
		return domain.Unauthorized("Refresh token is required")
	}

	renewed, err := h.identity.Refresh(c.Request().Context(), domain.RefreshPayload{RefreshToken: raw})
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Token refreshed", accessTokenData{AccessToken: renewed.AccessToken})
}

// refreshToken prefers the Authorization header over the cookie.
func (h *AuthHandler) refreshToken(c echo.Context) string {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if tok := strings.TrimSpace(parts[1]); tok != "" {
				return tok
			}
		}
	}
	if cookie, err := c.Cookie(h.cookie.Name); err == nil {
		return cookie.Value
	}
	return ""
}
