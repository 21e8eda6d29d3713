package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// SQLHandle adapts a database/sql pool opened on an image file to Handle.
type SQLHandle struct {
	db      *sql.DB
	dialect Dialect
	cleanup func() error

	closeOnce sync.Once
	closeErr  error
}

// NewSQLHandle wraps db. cleanup runs after db is closed and may be nil.
func NewSQLHandle(db *sql.DB, dialect Dialect, cleanup func() error) *SQLHandle {
	return &SQLHandle{db: db, dialect: dialect, cleanup: cleanup}
}

func (h *SQLHandle) Dialect() Dialect {
	return h.dialect
}

func (h *SQLHandle) Query(ctx context.Context, sqlText string, args ...any) ([]ResultSet, error) {
	rows, err := h.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sets := make([]ResultSet, 0, 1)
	for {
		set, err := scanResultSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
		if !rows.NextResultSet() {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return sets, nil
}

func (h *SQLHandle) Close() error {
	h.closeOnce.Do(func() {
		var errs []error
		if err := h.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s database: %w", h.dialect.Name, err))
		}
		if h.cleanup != nil {
			if err := h.cleanup(); err != nil {
				errs = append(errs, err)
			}
		}
		h.closeErr = errors.Join(errs...)
	})
	return h.closeErr
}

func scanResultSet(rows *sql.Rows) (ResultSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return ResultSet{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return ResultSet{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	return ResultSet{Columns: columns, Rows: resultRows}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
