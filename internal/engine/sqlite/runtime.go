// Package sqlite opens SQLite database images with the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/litelens/litelens/internal/engine"
)

const driverName = "sqlite"

var header = []byte("SQLite format 3\x00")

var Dialect = engine.Dialect{
	Name:           "sqlite",
	TablesSQL:      "SELECT name FROM sqlite_schema WHERE type = 'table' ORDER BY name",
	ReservedPrefix: "sqlite_",
}

type Runtime struct {
	WorkDir string

	mu    sync.Mutex
	ready bool
}

func NewRuntime(workDir string) *Runtime {
	return &Runtime{WorkDir: workDir}
}

func (r *Runtime) Name() string {
	return Dialect.Name
}

// Init opens an in-memory database once to prove the driver works.
func (r *Runtime) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		return nil
	}
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	r.ready = true
	return nil
}

func (r *Runtime) Sniff(image []byte) bool {
	return bytes.HasPrefix(image, header)
}

func (r *Runtime) Load(ctx context.Context, image []byte) (engine.Handle, error) {
	if !r.Sniff(image) {
		return nil, engine.ErrUnrecognizedImage
	}
	path, cleanup, err := engine.WriteImage(r.WorkDir, "litelens-*.sqlite", image)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn(path))
	if err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("open sqlite image: %w", err)
	}
	// sqlite_schema is read on first access, so a corrupt image surfaces here
	// rather than on the first user query.
	var objects int64
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_schema").Scan(&objects); err != nil {
		_ = db.Close()
		_ = cleanup()
		return nil, fmt.Errorf("validate sqlite image: %w", err)
	}
	return engine.NewSQLHandle(db, Dialect, cleanup), nil
}

func dsn(path string) string {
	query := url.Values{}
	query.Set("mode", "ro")
	query.Add("_pragma", "query_only(1)")
	return "file:" + path + "?" + query.Encode()
}
