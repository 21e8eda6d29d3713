package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/litelens/litelens/internal/api"
	"github.com/litelens/litelens/internal/api/uistatic"
	"github.com/litelens/litelens/internal/auth"
	"github.com/litelens/litelens/internal/config"
	"github.com/litelens/litelens/internal/engine"
	duckdbruntime "github.com/litelens/litelens/internal/engine/duckdb"
	sqliteruntime "github.com/litelens/litelens/internal/engine/sqlite"
	"github.com/litelens/litelens/internal/observability"
	"github.com/litelens/litelens/internal/query"
	"github.com/litelens/litelens/internal/source"
	"github.com/litelens/litelens/internal/storage"
	localstore "github.com/litelens/litelens/internal/storage/local"
	s3store "github.com/litelens/litelens/internal/storage/s3"
	"github.com/litelens/litelens/internal/workspace"
)

func main() {
	cfg, err := config.LoadFromEnv("litelens")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	registry := engine.NewRegistry(
		sqliteruntime.NewRuntime(cfg.Engine.WorkDir),
		duckdbruntime.NewRuntime(cfg.Engine.WorkDir),
	)

	engines := make([]string, 0, len(registry.Runtimes()))
	for _, runtime := range registry.Runtimes() {
		engines = append(engines, runtime.Name())
	}
	logger.Info("engine runtimes registered", slog.Any("engines", engines))

	readiness := []api.ReadinessCheck{api.CheckEngines(registry)}
	var objectStore storage.ObjectStore
	if cfg.ObjectStoreConfigured() {
		s3, err := s3store.New(s3store.Config{
			Endpoint:        cfg.ObjectStore.Endpoint,
			Region:          cfg.ObjectStore.Region,
			Bucket:          cfg.ObjectStore.Bucket,
			AccessKeyID:     cfg.ObjectStore.AccessKeyID,
			SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
			UseSSL:          cfg.ObjectStore.UseSSL,
			Prefix:          cfg.ObjectStore.Prefix,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		objectStore = s3
		readiness = append(readiness, api.CheckObjectStore(s3))
	} else if strings.TrimSpace(cfg.Example.ObjectKey) != "" {
		local, err := localstore.New(".")
		if err != nil {
			logger.Error("failed to initialize local object store", slog.Any("error", err))
			os.Exit(1)
		}
		objectStore = local
	}

	ws := workspace.New(workspace.Config{
		Registry:      registry,
		Executor:      query.Executor{Logger: logger, Timeout: cfg.Engine.QueryTimeout},
		Logger:        logger,
		LoadTimeout:   cfg.Engine.LoadTimeout,
		MaxImageBytes: cfg.Engine.MaxImageBytes,
		PageLimit:     cfg.Engine.PageLimit,
		SearchColumns: cfg.Search.Columns,
	})
	defer func() {
		if err := ws.Close(); err != nil {
			logger.Error("failed to release sources", slog.Any("error", err))
		}
	}()

	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
		Workspace:         ws,
		Example:           exampleFunc(cfg.Example, objectStore),
		MaxUploadBytes:    cfg.Engine.MaxImageBytes,
		UI:                uistatic.Handler(),
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting litelens server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("litelens server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down litelens server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
	}
}

// exampleFunc picks the example location: an object key, then a local path,
// then a URL. It returns nil when none is configured.
func exampleFunc(cfg config.ExampleConfig, store storage.ObjectStore) api.ExampleFunc {
	build := func() *source.Source {
		switch {
		case strings.TrimSpace(cfg.ObjectKey) != "" && store != nil:
			return source.FromObjectStore(store, cfg.ObjectKey)
		case strings.TrimSpace(cfg.Path) != "":
			return source.FromFile(cfg.Path)
		case strings.TrimSpace(cfg.URL) != "":
			return source.FromURL(&http.Client{Timeout: time.Minute}, cfg.URL)
		default:
			return nil
		}
	}
	if build() == nil {
		return nil
	}
	return func() (*source.Source, error) {
		src := build()
		if name := strings.TrimSpace(cfg.Name); name != "" {
			src.Name = name
		}
		return src, nil
	}
}
