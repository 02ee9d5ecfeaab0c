package router

import (
	"net/http"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"cdm/internal/config"
	apperrors "cdm/internal/errors"
	"cdm/internal/handler"
	"cdm/internal/service"
)

// avatarBodyLimit caps multipart bodies above the avatar size limit so
// oversized files still reach validation with a precise message.
const avatarBodyLimit = "8M"

// Deps bundles what Register needs.
type Deps struct {
	Config         *config.Config
	Logger         *zap.Logger
	Validator      *service.Validator
	AuthService    service.AuthService
	AuthHandler    *handler.AuthHandler
	ProfileHandler *handler.ProfileHandler
	// AvatarDir is served under Config.Avatar.PublicPath when non-empty.
	AvatarDir string
}

// Register wires routes and middleware.
func Register(e *echo.Echo, deps Deps) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cfg := deps.Config

	e.HTTPErrorHandler = HTTPErrorHandler(log)
	e.Validator = &CustomValidator{validator: deps.Validator}

	e.Use(middleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(middleware.Recover())
	e.Use(echo.WrapMiddleware(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{echo.HeaderAuthorization, echo.HeaderContentType},
		AllowCredentials: true,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}).Handler))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	if deps.AvatarDir != "" {
		e.Static(cfg.Avatar.PublicPath, deps.AvatarDir)
	}

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/register", deps.AuthHandler.Register)
	api.POST("/auth/login", deps.AuthHandler.Login)

	// Secured routes (require a valid, unrevoked bearer token)
	secured := api.Group("", echojwt.WithConfig(echojwt.Config{
		ContextKey:  handler.ClaimsContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return deps.AuthService.Authenticate(c.Request().Context(), token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
				Error: "Unauthorized",
				Code:  "UNAUTHORIZED",
			}).SetInternal(err)
		},
	}))

	secured.POST("/auth/logout", deps.AuthHandler.Logout)
	secured.GET("/auth/me", deps.AuthHandler.Me)

	secured.GET("/users/profile", deps.ProfileHandler.GetProfile)
	secured.PUT("/users/profile", deps.ProfileHandler.UpdateProfile)
	secured.POST("/users/avatar", deps.ProfileHandler.UploadAvatar, middleware.BodyLimit(avatarBodyLimit))
	secured.GET("/users/username-available", deps.ProfileHandler.UsernameAvailable)
}

// CustomValidator adapts service.Validator to echo.Validator.
type CustomValidator struct {
	validator *service.Validator
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	if cv.validator == nil {
		return nil
	}
	return cv.validator.Validate(i)
}

func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Status >= http.StatusInternalServerError {
				log.Error("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	})
}
