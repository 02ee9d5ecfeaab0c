package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"cdm/internal/errors"
	"cdm/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	UserID uint   `json:"userId"`
	Email  string `json:"email"`
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration data"
// @Success 201 {object} service.AuthResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return errorResponse(err)
	}

	result, err := h.authService.Register(c.Request().Context(), req)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, result)
}

// Login godoc
// @Summary Login user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Login credentials"
// @Success 200 {object} service.AuthResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return errorResponse(err)
	}

	result, err := h.authService.Login(c.Request().Context(), req)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, result)
}

// Logout godoc
// @Summary Revoke the current token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	token, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if !ok {
		return errorResponse(errors.ErrInvalidToken)
	}
	if err := h.authService.Logout(c.Request().Context(), token); err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// Me godoc
// @Summary Current user identity
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MeResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return errorResponse(err)
	}
	id, err := claims.UserID()
	if err != nil {
		return errorResponse(errors.ErrInvalidToken)
	}
	return c.JSON(http.StatusOK, MeResponse{UserID: id, Email: claims.Email})
}
