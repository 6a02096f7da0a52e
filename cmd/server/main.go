package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/realitycheck/backend/config"
	httpDelivery "github.com/realitycheck/backend/internal/delivery/http"
	"github.com/realitycheck/backend/internal/domain"
	"github.com/realitycheck/backend/internal/infrastructure/backend"
	"github.com/realitycheck/backend/internal/infrastructure/cache"
	"github.com/realitycheck/backend/internal/infrastructure/gemini"
	"github.com/realitycheck/backend/internal/infrastructure/userstore"
	"github.com/realitycheck/backend/internal/logging"
	"github.com/realitycheck/backend/internal/usecase"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"cache":       cfg.Cache.Type,
		"user_store":  cfg.Auth.Store,
		"backend":     cfg.Backend.BaseURL,
	}).Info("starting Reality Check backend v1.0.0")

	cacheRepo, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	users, closeUsers, err := newUserStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeUsers()

	generator, closeGenerator, err := newGenerator(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeGenerator()

	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, cfg.RateLimit.Backend, log)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		// config validation only lets this through in development and test
		secret = uuid.NewString()
		log.Warn("no JWT secret configured, using a random one; sessions will not survive a restart")
	}

	analysis := usecase.NewAnalysisService(generator, log)
	products := usecase.NewProductService(backendClient, cacheRepo, analysis, usecase.ProductServiceConfig{
		CacheTTL:            cfg.Cache.TTL,
		EnableFuzzyMatching: cfg.Search.FuzzyMatching,
	}, log)
	sessions := usecase.NewSessionService(users, cacheRepo, backendClient, usecase.SessionConfig{
		Secret: secret,
		TTL:    cfg.Auth.TokenTTL,
	}, log)

	handler := httpDelivery.NewHandler(httpDelivery.Dependencies{
		Analysis:       analysis,
		Products:       products,
		Sessions:       sessions,
		Accounts:       backendClient,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, log)
	router := httpDelivery.SetupRouter(cfg, handler, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newCache(ctx context.Context, cfg *config.Config) (domain.CacheRepository, func(), error) {
	if cfg.Cache.Type == "redis" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return redisCache, func() { _ = redisCache.Close() }, nil
	}

	memoryCache := cache.NewMemoryCache()
	return memoryCache, func() { _ = memoryCache.Close() }, nil
}

func newUserStore(ctx context.Context, cfg *config.Config) (domain.UserRepository, func(), error) {
	if cfg.Auth.Store == "mongo" {
		store, err := userstore.NewMongoStore(ctx, cfg.Auth.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = store.Close(closeCtx)
		}, nil
	}
	return userstore.NewMemoryStore(), func() {}, nil
}

// newGenerator returns a nil generator when no credential is configured; the
// analyze route then answers that the provider is not configured.
func newGenerator(ctx context.Context, cfg *config.Config, log *logrus.Logger) (domain.TextGenerator, func(), error) {
	switch {
	case !cfg.GeminiConfigured():
		log.Warn("AI provider key not configured, /api/analyze will fail")
		return nil, func() {}, nil
	case cfg.Gemini.UseMock:
		log.Warn("using the mock AI provider")
		return gemini.NewMockGenerator(500 * time.Millisecond), func() {}, nil
	}

	client, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:            cfg.Gemini.APIKey,
		Model:             cfg.Gemini.Model,
		Timeout:           cfg.Gemini.Timeout,
		MaxRetries:        cfg.Gemini.MaxRetries,
		RequestsPerMinute: cfg.RateLimit.Gemini,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}
