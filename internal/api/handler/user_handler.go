package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-system/internal/core/domain"
	"github.com/99minutos/identity-system/internal/core/ports"
)

// UserHandler serves the authenticated /user routes. Every request is turned
// into one command carrying the caller's identity.
type UserHandler struct {
	identity ports.IdentityService
}

func NewUserHandler(identity ports.IdentityService) *UserHandler {
	return &UserHandler{identity: identity}
}

type updateUserRequest struct {
	Email      *string `json:"email,omitempty"`
	Password   *string `json:"password,omitempty"`
	Role       *string `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
	FirstName  *string `json:"firstName,omitempty"`
	LastName   *string `json:"lastName,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Address    *string `json:"address,omitempty"`
	City       *string `json:"city,omitempty"`
	Country    *string `json:"country,omitempty"`
	PostalCode *string `json:"postalCode,omitempty"`
}

// Profile returns the caller's own identity.
//
// @Summary      Get the caller's profile
// @Tags         user
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response
// @Failure      401  {object}  domain.ErrorEnvelope
// @Failure      404  {object}  domain.ErrorEnvelope
// @Router       /user/profile [get]
func (h *UserHandler) Profile(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	user, err := h.identity.GetProfile(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Profile retrieved", user)
}

// All lists every user. Admin only.
//
// @Summary      List users
// @Tags         user
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response
// @Failure      401  {object}  domain.ErrorEnvelope
// @Failure      403  {object}  domain.ErrorEnvelope
// @Router       /user/all [get]
func (h *UserHandler) All(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	users, err := h.identity.ListUsers(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	if users == nil {
		users = []*domain.User{}
	}
	return respond(c, http.StatusOK, "Users retrieved", users)
}

// Update applies a partial update to the caller's identity.
//
// @Summary      Update the caller's profile
// @Tags         user
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateUserRequest  true  "Fields to change"
// @Success      200   {object}  response
// @Failure      400   {object}  domain.ErrorEnvelope
// @Failure      403   {object}  domain.ErrorEnvelope
// @Failure      404   {object}  domain.ErrorEnvelope
// @Router       /user/update [post]
func (h *UserHandler) Update(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return domain.BadRequest("invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return domain.BadRequest(err.Error())
	}

	user, err := h.identity.UpdateUser(c.Request().Context(), actor, domain.UserUpdate{
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Avatar:     req.Avatar,
		Phone:      req.Phone,
		Address:    req.Address,
		City:       req.City,
		Country:    req.Country,
		PostalCode: req.PostalCode,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User updated", user)
}

// Delete removes the caller's identity and revokes its refresh token.
//
// @Summary      Delete the caller's account
// @Tags         user
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response
// @Failure      401  {object}  domain.ErrorEnvelope
// @Failure      404  {object}  domain.ErrorEnvelope
// @Router       /user/delete [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	user, err := h.identity.DeleteUser(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User deleted", user)
}
