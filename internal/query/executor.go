// Package query runs SQL against loaded handles. Failures never cross the
// package boundary: they are logged, counted, and reported as a nil result.
package query

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/litelens/litelens/internal/engine"
	"github.com/litelens/litelens/internal/observability"
)

type Executor struct {
	Logger *slog.Logger
	// Timeout bounds one execution. Zero means no bound beyond ctx.
	Timeout time.Duration
}

// Select returns the first result set of sqlText, or nil when sqlText is
// blank, handle is nil, or execution fails.
func (e Executor) Select(ctx context.Context, handle engine.Handle, sqlText string, args ...any) *engine.ResultSet {
	return engine.First(e.Execute(ctx, handle, sqlText, args...))
}

// Execute returns every result set of sqlText under the same rules as
// Select.
func (e Executor) Execute(ctx context.Context, handle engine.Handle, sqlText string, args ...any) []engine.ResultSet {
	if handle == nil || strings.TrimSpace(sqlText) == "" {
		return nil
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	dialect := handle.Dialect().Name
	start := time.Now()
	sets, err := handle.Query(ctx, sqlText, args...)
	observability.ObserveQuery(dialect, err, time.Since(start))
	if err != nil {
		e.logger().WarnContext(ctx, "query execution failed",
			observability.TraceAttr(ctx),
			slog.String("engine", dialect),
			slog.String("sql", sqlText),
			slog.Any("error", err),
		)
		return nil
	}
	return sets
}

func (e Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return observability.DiscardLogger()
	}
	return e.Logger
}

// StripTrailingSemicolons trims whitespace and any run of trailing
// semicolons so the statement can be extended with more clauses.
func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
