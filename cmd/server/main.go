package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"cdm/docs"
	"cdm/internal/auth"
	"cdm/internal/cache"
	"cdm/internal/config"
	"cdm/internal/db"
	"cdm/internal/handler"
	"cdm/internal/logger"
	"cdm/internal/repository"
	"cdm/internal/router"
	"cdm/internal/service"
	"cdm/internal/storage"
)

// @title Chronique des Mondes API
// @version 1.0
// @description Accounts, authentication and profiles for the Chronique des Mondes campaign platform.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Config{
		Environment: cfg.Environment,
		LogLevel:    cfg.LogLevel,
		ServiceName: "cdm-api",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}

	if cfg.RunMigrations || cfg.ResetDB {
		migrator, err := db.NewMigrator(gormDB, cfg.DBDriver, log)
		if err != nil {
			return err
		}
		if cfg.ResetDB {
			log.Warn("RESET_DB=true detected, rolling back all migrations")
			if err := migrator.Reset(ctx); err != nil {
				return err
			}
		} else if err := migrator.Up(ctx); err != nil {
			return err
		}
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, log)
	defer cacheClient.Close()
	if err := cacheClient.Ping(ctx); err != nil {
		log.Warn("redis unavailable, cache and token revocation disabled until it recovers", zap.Error(err))
	}

	avatarStore, avatarDir, err := newAvatarStore(cfg)
	if err != nil {
		return err
	}

	// Repositories
	userRepo := repository.NewUserRepository(gormDB)

	// Auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpirationDays, log)
	tokenStore := auth.NewTokenStore(cacheClient)
	hasher := auth.NewPasswordHasher()

	// Services
	validator := service.NewValidator()
	authService := service.NewAuthService(userRepo, hasher, jwtService, tokenStore, validator, log)
	profileService := service.NewProfileService(userRepo, cacheClient, validator, log)
	avatarService := service.NewAvatarService(userRepo, avatarStore, profileService, cfg.Avatar.MaxDimension, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	router.Register(e, router.Deps{
		Config:         cfg,
		Logger:         log,
		Validator:      validator,
		AuthService:    authService,
		AuthHandler:    handler.NewAuthHandler(authService),
		ProfileHandler: handler.NewProfileHandler(profileService, avatarService),
		AvatarDir:      avatarDir,
	})

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	}
	log.Info("swagger documentation available", zap.String("url", swaggerURL(cfg)))

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.ServerPort
		log.Info("server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newAvatarStore(cfg *config.Config) (storage.Store, string, error) {
	switch cfg.Avatar.Storage {
	case "s3":
		store, err := storage.NewS3Store(storage.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PublicBaseURL:   cfg.S3.PublicBaseURL,
			Prefix:          "avatars",
		})
		if err != nil {
			return nil, "", fmt.Errorf("avatar storage: %w", err)
		}
		return store, "", nil
	case "local", "":
		store, err := storage.NewFileSystemStore(cfg.Avatar.Dir, cfg.Avatar.PublicPath)
		if err != nil {
			return nil, "", fmt.Errorf("avatar storage: %w", err)
		}
		return store, store.Dir(), nil
	default:
		return nil, "", fmt.Errorf("unknown avatar storage %q", cfg.Avatar.Storage)
	}
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		return "http://localhost:" + cfg.ServerPort + "/swagger/index.html"
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host + "/swagger/index.html"
	}
	return "http://" + host + "/swagger/index.html"
}
