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

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"tokobuning/backend/internal/barcode"
	"tokobuning/backend/internal/cache"
	"tokobuning/backend/internal/config"
	"tokobuning/backend/internal/httpapi"
	"tokobuning/backend/internal/logging"
	"tokobuning/backend/internal/metrics"
	"tokobuning/backend/internal/service"
	"tokobuning/backend/internal/store"
	"tokobuning/backend/internal/store/memory"
	pgstore "tokobuning/backend/internal/store/postgres"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load configuration: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatalf("invalid security configuration: %v", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatalf("unknown STORE_TIMEZONE %q: %v", cfg.Timezone, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, closers, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open repository: %v", err)
	}

	reg := metrics.New()
	lookupCache, cacheClosers := openLookupCache(ctx, cfg, logger)
	closers = append(closers, cacheClosers...)

	var lookup service.BarcodeLookup
	if cfg.BarcodeBaseURL != "" {
		lookup = barcode.NewClient(barcode.Options{
			BaseURL:  cfg.BarcodeBaseURL,
			Timeout:  time.Duration(cfg.BarcodeTimeoutSeconds) * time.Second,
			CacheTTL: time.Duration(cfg.BarcodeCacheTTLMinutes) * time.Minute,
			Cache:    lookupCache,
			Metrics:  reg,
			Logger:   logger,
		})
	} else {
		logger.Info("barcode lookup: disabled")
	}

	svc := service.New(service.Deps{
		Repo:     repo,
		Barcode:  lookup,
		Metrics:  reg,
		Logger:   logger,
		Location: loc,
	})
	info, err := svc.LoadStoreInfo(ctx)
	if err != nil {
		logger.Fatalf("load store info: %v", err)
	}
	logger.WithField("store", info.Name).Info("store info loaded")

	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api, err := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Metrics:       reg,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatalf("build api: %v", err)
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Infof("POS backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.WithError(err).Warn("close error")
		}
	}

	logger.Info("server stopped")
}

// openRepository picks Postgres when DATABASE_URL is set and never falls back
// to memory in that case.
func openRepository(ctx context.Context, cfg config.Config, logger *logrus.Logger) (store.Repository, []func() error, error) {
	if cfg.DatabaseURL == "" {
		passwords := memory.SeedPasswords{
			Admin:   cfg.SeedAdminPassword,
			Cashier: cfg.SeedCashierPassword,
			Guest:   cfg.SeedGuestPassword,
		}
		if defaulted := passwords.Defaulted(); len(defaulted) > 0 {
			logger.WithField("accounts", defaulted).Warn("memory store uses default dev credentials, set SEED_*_PASSWORD to override")
		}
		mem, err := memory.NewSeeded(passwords)
		if err != nil {
			return nil, nil, fmt.Errorf("seed memory store: %w", err)
		}
		logger.Info("repository: in-memory")
		return mem, nil, nil
	}

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
	}
	if cfg.AutoMigrate {
		goose.SetLogger(logger)
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
	}
	logger.Info("repository: postgres")
	return pg, []func() error{pg.Close}, nil
}

// openLookupCache uses Redis when reachable and degrades to the no-op cache.
func openLookupCache(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (cache.LookupCache, []func() error) {
	if cfg.RedisAddr == "" {
		logger.Info("cache: noop")
		return cache.NoopLookupCache{}, nil
	}
	redisCache := cache.NewRedisLookupCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		logger.WithError(err).Warn("redis unavailable, using noop cache")
		_ = redisCache.Close()
		return cache.NoopLookupCache{}, nil
	}
	logger.Info("cache: redis")
	return redisCache, []func() error{redisCache.Close}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AccessTokenTTLMinutes > 24*60 {
		return fmt.Errorf("ACCESS_TOKEN_TTL_MINUTES must not exceed one day")
	}
	return nil
}
