// Package duckdb opens DuckDB database files with go-duckdb.
package duckdb

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/litelens/litelens/internal/engine"
)

const driverName = "duckdb"

// DuckDB files carry their magic number after an 8 byte checksum.
var magic = []byte("DUCK")

const magicOffset = 8

var Dialect = engine.Dialect{
	Name: "duckdb",
	TablesSQL: `SELECT table_name FROM information_schema.tables
WHERE table_schema = 'main' AND table_type = 'BASE TABLE'
ORDER BY table_name`,
	ReservedPrefix: "duckdb_",
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

func (r *Runtime) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		return nil
	}
	db, err := sql.Open(driverName, "")
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping duckdb: %w", err)
	}
	r.ready = true
	return nil
}

func (r *Runtime) Sniff(image []byte) bool {
	if len(image) < magicOffset+len(magic) {
		return false
	}
	return bytes.Equal(image[magicOffset:magicOffset+len(magic)], magic)
}

func (r *Runtime) Load(ctx context.Context, image []byte) (engine.Handle, error) {
	if !r.Sniff(image) {
		return nil, engine.ErrUnrecognizedImage
	}
	path, cleanup, err := engine.WriteImage(r.WorkDir, "litelens-*.duckdb", image)
	if err != nil {
		return nil, err
	}
	removeWAL := func() error {
		if err := cleanup(); err != nil {
			return err
		}
		return engine.RemoveIfExists(path + ".wal")
	}

	db, err := sql.Open(driverName, path+"?access_mode=READ_ONLY")
	if err != nil {
		_ = removeWAL()
		return nil, fmt.Errorf("open duckdb image: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = removeWAL()
		return nil, fmt.Errorf("validate duckdb image: %w", err)
	}
	return engine.NewSQLHandle(db, Dialect, removeWAL), nil
}
