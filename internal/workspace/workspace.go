// Package workspace holds the sources a user has opened. Each source gets a
// Database that loads in the background and then serves table pages and
// free-form queries.
package workspace

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/litelens/litelens/internal/engine"
	"github.com/litelens/litelens/internal/observability"
	"github.com/litelens/litelens/internal/pagination"
	"github.com/litelens/litelens/internal/query"
	"github.com/litelens/litelens/internal/source"
)

var (
	ErrNotFound      = errors.New("source not found")
	ErrTableNotFound = errors.New("table not found")
	ErrNotReady      = errors.New("source is still loading")
	ErrClosed        = errors.New("workspace closed")
)

type Config struct {
	Registry *engine.Registry
	Executor query.Executor
	Logger   *slog.Logger
	// LoadTimeout bounds one background load. Zero means unbounded.
	LoadTimeout time.Duration
	// MaxImageBytes applies to sources added without their own cap.
	MaxImageBytes int64
	PageLimit     int
	// SearchColumns are matched against each table's columns. Tables that
	// have none of them are searched on every column.
	SearchColumns []string
}

type Workspace struct {
	cfg Config

	mu        sync.Mutex
	order     []string
	databases map[string]*Database
	closed    bool
}

func New(cfg Config) *Workspace {
	if cfg.Logger == nil {
		cfg.Logger = observability.DiscardLogger()
	}
	if cfg.Executor.Logger == nil {
		cfg.Executor.Logger = cfg.Logger
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = pagination.DefaultLimit
	}
	return &Workspace{cfg: cfg, databases: map[string]*Database{}}
}

// Add registers src and starts loading it. The returned Database reports
// StateLoading until the load settles.
func (w *Workspace) Add(src *source.Source) (*Database, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	if src.MaxBytes == 0 {
		src.MaxBytes = w.cfg.MaxImageBytes
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if w.cfg.LoadTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), w.cfg.LoadTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	db := newDatabase(src, w.cfg, cancel)
	w.databases[src.ID] = db
	w.order = append(w.order, src.ID)

	go db.load(ctx)
	return db, nil
}

// List returns databases in the order they were added.
func (w *Workspace) List() []*Database {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Database, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.databases[id])
	}
	return out
}

func (w *Workspace) Get(id string) (*Database, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	db, ok := w.databases[id]
	if !ok {
		return nil, ErrNotFound
	}
	return db, nil
}

// Remove drops a source, cancelling its load if one is running.
func (w *Workspace) Remove(id string) error {
	w.mu.Lock()
	db, ok := w.databases[id]
	if ok {
		delete(w.databases, id)
		for i, existing := range w.order {
			if existing == id {
				w.order = append(w.order[:i], w.order[i+1:]...)
				break
			}
		}
	}
	w.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	return db.release()
}

// Close removes every source and waits for their loads to stop.
func (w *Workspace) Close() error {
	w.mu.Lock()
	w.closed = true
	databases := make([]*Database, 0, len(w.order))
	for _, id := range w.order {
		databases = append(databases, w.databases[id])
	}
	w.order = nil
	w.databases = map[string]*Database{}
	w.mu.Unlock()

	var errs []error
	for _, db := range databases {
		if err := db.release(); err != nil {
			errs = append(errs, err)
		}
		<-db.done
	}
	return errors.Join(errs...)
}
