package router

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "cdm/internal/errors"
)

// HTTPErrorHandler renders every error as the JSON error envelope. Server errors
// are logged with the request id and never leak their internal message.
func HTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := resolve(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.Error(err),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("path", c.Path()),
			)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			log.Warn("failed to write error response", zap.Error(writeErr))
		}
	}
}

func resolve(err error) (int, apperrors.ErrorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch msg := he.Message.(type) {
		case apperrors.ErrorResponse:
			return he.Code, msg
		case string:
			if he.Code >= http.StatusInternalServerError {
				return he.Code, apperrors.ErrorResponse{Error: http.StatusText(he.Code)}
			}
			return he.Code, apperrors.ErrorResponse{Error: msg}
		default:
			return he.Code, apperrors.ErrorResponse{Error: http.StatusText(he.Code)}
		}
	}

	mapped := apperrors.MapErrorToHTTP(err)
	return mapped.StatusCode, mapped.ToErrorResponse()
}
