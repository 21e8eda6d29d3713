package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/litelens/litelens/internal/config"
	"github.com/litelens/litelens/internal/engine"
	"github.com/litelens/litelens/internal/observability"
	"github.com/litelens/litelens/internal/source"
	"github.com/litelens/litelens/internal/workspace"
)

type ReadinessCheck func(ctx context.Context) error

// ExampleFunc builds a fresh source for the bundled example database.
type ExampleFunc func() (*source.Source, error)

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Workspace         *workspace.Workspace
	Example           ExampleFunc
	// MaxUploadBytes caps a multipart upload request body.
	MaxUploadBytes int64
	UI             http.Handler
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	routes := map[string]http.HandlerFunc{
		"POST /v1/sources":                              func(w http.ResponseWriter, r *http.Request) { handleUpload(deps, w, r) },
		"POST /v1/sources/example":                      func(w http.ResponseWriter, r *http.Request) { handleLoadExample(deps, w, r) },
		"GET /v1/sources":                               func(w http.ResponseWriter, r *http.Request) { handleListSources(deps, w, r) },
		"GET /v1/sources/{source}":                      func(w http.ResponseWriter, r *http.Request) { handleGetSource(deps, w, r) },
		"DELETE /v1/sources/{source}":                   func(w http.ResponseWriter, r *http.Request) { handleDeleteSource(deps, w, r) },
		"GET /v1/sources/{source}/tables":               func(w http.ResponseWriter, r *http.Request) { handleListTables(deps, w, r) },
		"GET /v1/sources/{source}/tables/{table}":       func(w http.ResponseWriter, r *http.Request) { handleTablePage(deps, w, r) },
		"POST /v1/sources/{source}/tables/{table}/next": func(w http.ResponseWriter, r *http.Request) { handleTableStep(deps, w, r, true) },
		"POST /v1/sources/{source}/tables/{table}/prev": func(w http.ResponseWriter, r *http.Request) { handleTableStep(deps, w, r, false) },
		"POST /v1/sources/{source}/query":               func(w http.ResponseWriter, r *http.Request) { handleQuery(deps, w, r) },
	}
	for pattern, handler := range routes {
		protected.HandleFunc(pattern, handler)
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for pattern := range routes {
		mux.Handle(pattern, protectedHandler)
	}
	if deps.UI != nil {
		mux.Handle("GET /{path...}", deps.UI)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckEngines reports whether every engine runtime initialises.
func CheckEngines(registry *engine.Registry) ReadinessCheck {
	return func(ctx context.Context) error {
		if registry == nil || len(registry.Runtimes()) == 0 {
			return errors.New("no engine runtimes are configured")
		}
		return registry.Init(ctx)
	}
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckObjectStore reports whether the example bucket is reachable.
func CheckObjectStore(store healthChecker) ReadinessCheck {
	return func(ctx context.Context) error {
		if store == nil {
			return errors.New("object store is not configured")
		}
		return store.HealthCheck(ctx)
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
