package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"cdm/internal/auth"
	"cdm/internal/errors"
)

// ClaimsContextKey is where the bearer middleware stores *auth.Claims.
const ClaimsContextKey = "user"

// MessageResponse is a plain confirmation body.
type MessageResponse struct {
	Message string `json:"message"`
}

func currentClaims(c echo.Context) (*auth.Claims, error) {
	claims, ok := c.Get(ClaimsContextKey).(*auth.Claims)
	if !ok || claims == nil {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}

func currentUserID(c echo.Context) (uint, error) {
	claims, err := currentClaims(c)
	if err != nil {
		return 0, err
	}
	id, err := claims.UserID()
	if err != nil {
		return 0, errors.ErrInvalidToken
	}
	return id, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func errorResponse(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}

func badRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{Error: message, Code: "INVALID_REQUEST"})
}
