package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/propdesk/propdesk/internal/api"
	"github.com/propdesk/propdesk/internal/catalog"
	"github.com/propdesk/propdesk/internal/config"
	"github.com/propdesk/propdesk/internal/events"
	"github.com/propdesk/propdesk/internal/health"
	"github.com/propdesk/propdesk/internal/metrics"
	"github.com/propdesk/propdesk/internal/models"
	"github.com/propdesk/propdesk/internal/moderation"
	"github.com/propdesk/propdesk/internal/objectstore"
	"github.com/propdesk/propdesk/internal/offers"
	"github.com/propdesk/propdesk/internal/stats"
	"github.com/propdesk/propdesk/internal/storage"
	"github.com/propdesk/propdesk/internal/submission"
	"github.com/propdesk/propdesk/migrations"
)

func main() {
	// .env is optional; real environment variables win
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	slog.Info("starting propdesk",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Backend,
		"catalog", cfg.Catalog.Source,
	)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	m := metrics.New()
	checks := health.NewRegistry(5 * time.Second)

	// Repository
	var repo storage.Repository
	if cfg.Database.DSN != "" {
		slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
		if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, migrationFS(cfg.Database.MigrationsDir)); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		pg, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
			DSN:          cfg.Database.DSN,
			MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		})
		if err != nil {
			slog.Error("failed to create database repository", "error", err)
			os.Exit(1)
		}
		m.WatchPool("primary", func() (int32, int32, int32) {
			st := pg.Pool().Stat()
			return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
		})
		repo = pg
		slog.Info("database connected successfully")
	}

	// Catalog
	var source offers.Source
	switch cfg.Catalog.Source {
	case config.CatalogYAML:
		loader := catalog.NewLoader()
		if err := loader.LoadFromDir(cfg.Catalog.Dir); err != nil {
			slog.Error("failed to load catalog", "dir", cfg.Catalog.Dir, "error", err)
			os.Exit(1)
		}
		source = loader
		if repo == nil {
			mem := storage.NewMemoryRepository(loader)
			if cfg.Auth.DevModeratorKey != "" {
				mem.AddClient(&models.ApiClient{
					ID:          1,
					Name:        "dev-moderator",
					ApiKey:      cfg.Auth.DevModeratorKey,
					IsActive:    true,
					CreatedAt:   time.Now().UTC(),
					Permissions: []string{"reviews:*"},
				})
			}
			repo = mem
			slog.Warn("no database configured, reviews are kept in memory")
		}
	default:
		source = repo
	}
	checks.Register("database", repo)

	// Offer cache
	var cache offers.Cache
	if cfg.Redis.Enabled {
		rc, err := offers.NewRedisCache(initCtx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
		if err != nil {
			slog.Warn("offer cache disabled", "address", cfg.Redis.Address, "error", err)
		} else {
			defer rc.Close()
			cache = rc
			checks.Register("cache", rc)
		}
	}

	offerService := offers.NewService(source, cache)
	offerService.SetObserver(m)

	// Attachment storage
	store, err := newObjectStore(cfg.Storage)
	if err != nil {
		slog.Error("failed to create object store", "error", err)
		os.Exit(1)
	}
	checks.Register("storage", store)

	// Statistics
	var statsService api.StatsService
	if cfg.Stats.DSN != "" {
		svc, err := stats.Open(cfg.Stats.DSN, cfg.Stats.MaxOpenConns)
		if err != nil {
			slog.Warn("statistics disabled", "error", err)
		} else {
			defer svc.Close()
			statsService = svc
			checks.Register("stats", svc)
		}
	}

	hub := events.NewHub(events.DefaultBuffer)
	defer hub.Close()

	pipeline := submission.NewPipeline(repo, store,
		submission.WithPublisher(hub),
		submission.WithObserver(m),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Keep the offer cache warm
	offers.NewRefresher(offerService, cfg.Offers.RefreshInterval).Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, cfg.Reviews, api.Dependencies{
		Offers:     offerService,
		Submission: pipeline,
		Moderation: moderation.NewService(repo, hub),
		Stats:      statsService,
		Hub:        hub,
		Health:     checks,
		Metrics:    m,
		Clients:    repo,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.RequestTimeout,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Stop background workers
	cancel()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			slog.Error("object store close error", "error", err)
		}
	}

	if err := repo.Close(); err != nil {
		slog.Error("repository close error", "error", err)
	}

	slog.Info("propdesk stopped")
}

func newObjectStore(cfg config.StorageConfig) (objectstore.Store, error) {
	switch cfg.Backend {
	case config.StorageSupabase:
		return objectstore.NewSupabaseStore(cfg.SupabaseURL, cfg.Bucket, objectstore.StaticToken(cfg.ServiceKey)), nil
	case config.StorageFTP:
		return objectstore.NewFTPStore(cfg.FTPAddress, cfg.FTPUser, cfg.FTPPassword, cfg.FTPRoot), nil
	case config.StorageMemory:
		slog.Warn("attachments are kept in memory")
		return objectstore.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
}

func migrationFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
