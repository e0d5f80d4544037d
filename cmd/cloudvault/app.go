package main

import (
	"context"
	"fmt"
	"time"

	"cloudvault-backend/internal/api"
	"cloudvault-backend/internal/auth"
	"cloudvault-backend/internal/blob"
	"cloudvault-backend/internal/common"
	"cloudvault-backend/internal/config"
	"cloudvault-backend/internal/logging"
	"cloudvault-backend/internal/mailer"
	"cloudvault-backend/internal/repository"
	"cloudvault-backend/internal/service"
)

// app holds the wired dependencies of the server. The caller must defer Close.
type app struct {
	store   repository.Store
	handler *api.Handler
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app, error) {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	store, err := openStore(initCtx, cfg, logger)
	if err != nil {
		return nil, err
	}

	blobs, err := blob.NewFromConfig(initCtx, cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	sender, err := newSender(cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	clock := common.RealClock{}
	tokens, err := auth.NewTokenService(cfg.JWTSecret, clock)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	userSvc := service.NewUserService(store, tokens, sender, logger.With("component", "users"), clock, service.UserServiceConfig{
		SessionTTL:  cfg.SessionTTL,
		ResetTTL:    cfg.ResetTTL,
		FrontendURL: cfg.FrontendURL,
	})
	fileSvc := service.NewFileService(store, blobs, tokens, logger.With("component", "files"), clock, service.FileServiceConfig{
		MaxUploadBytes:   cfg.MaxUploadBytes,
		AllowedMIMETypes: cfg.AllowedMIMETypes,
		ShareTTL:         cfg.ShareTTL,
	})

	handler := api.NewHandler(userSvc, fileSvc, store, logger.With("component", "http"), api.Options{
		CORSOrigin:        cfg.CORSOrigin,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	return &app{store: store, handler: handler}, nil
}

func (a *app) Close() {
	a.store.Close()
}

// openStore connects to PostgreSQL and migrates it, or falls back to the
// in-memory store when no database is configured.
func openStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (repository.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn(ctx, "DATABASE_URL not set, using in-memory store; data is lost on restart")
		return repository.NewInMemoryStore(), nil
	}

	store, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info(ctx, "connected to PostgreSQL")

	if err := store.RunMigrations(ctx); err != nil {
		store.Close()
		return nil, err
	}
	logger.Info(ctx, "database migrations applied")

	return store, nil
}

func newSender(cfg *config.Config, logger logging.Logger) (mailer.Sender, error) {
	if !cfg.SMTPEnabled() {
		logger.Warn(context.Background(), "SMTP_HOST not set, reset emails are only logged")
		return mailer.NewLogSender(logger.With("component", "mailer")), nil
	}

	sender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.Sender(),
	})
	if err != nil {
		return nil, err
	}
	return sender, nil
}
