package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/litelens/litelens/internal/engine"
	"github.com/litelens/litelens/internal/observability"
	"github.com/litelens/litelens/internal/pagination"
	"github.com/litelens/litelens/internal/query"
	"github.com/litelens/litelens/internal/source"
)

type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

type Status struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
}

// Summary is the listing view of a Database.
type Summary struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Origin    source.Origin `json:"origin"`
	SizeBytes int64         `json:"size_bytes"`
	CreatedAt time.Time     `json:"created_at"`
	Status    Status        `json:"status"`
	Engine    string        `json:"engine,omitempty"`
	Tables    []string      `json:"tables"`
}

// QueryResult is the outcome of the free-form query box. Result is nil when
// the statement was blank or failed.
type QueryResult struct {
	Result      *engine.ResultSet `json:"result"`
	ResultCount int               `json:"result_count"`
}

// Database is one loaded source.
type Database struct {
	Source *source.Source

	cfg     Config
	logger  *slog.Logger
	binding *engine.Binding
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	status   Status
	loadErr  error
	handle   engine.Handle
	tables   []string
	views    map[string]*TableView
	released bool

	sqlSlot query.Slot
	sqlPage *pagination.Coordinator
}

func newDatabase(src *source.Source, cfg Config, cancel context.CancelFunc) *Database {
	return &Database{
		Source:  src,
		cfg:     cfg,
		logger:  cfg.Logger.With(slog.String("source_id", src.ID), slog.String("source_name", src.Name)),
		binding: engine.NewBinding(cfg.Registry, src.Resolve),
		cancel:  cancel,
		done:    make(chan struct{}),
		status:  Status{State: StateLoading},
		tables:  []string{},
		views:   map[string]*TableView{},
		sqlSlot: query.Slot{Executor: cfg.Executor},
		sqlPage: pagination.New(cfg.Executor, pagination.Params{Limit: cfg.PageLimit}),
	}
}

func (d *Database) ID() string {
	return d.Source.ID
}

func (d *Database) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *Database) Summary() Summary {
	d.mu.Lock()
	defer d.mu.Unlock()
	summary := Summary{
		ID:        d.Source.ID,
		Name:      d.Source.Name,
		Origin:    d.Source.Origin,
		SizeBytes: d.Source.Size(),
		CreatedAt: d.Source.CreatedAt,
		Status:    d.status,
		Tables:    append([]string{}, d.tables...),
	}
	if d.handle != nil {
		summary.Engine = d.handle.Dialect().Name
	}
	return summary
}

// Wait blocks until the load settles and returns its error.
func (d *Database) Wait(ctx context.Context) error {
	select {
	case <-d.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadErr
}

// Tables lists the user tables found when the source loaded.
func (d *Database) Tables() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.readyLocked(); err != nil {
		return nil, err
	}
	return append([]string{}, d.tables...), nil
}

// Query runs sqlText in the database's query box. Statement failures give
// an empty result, not an error.
func (d *Database) Query(ctx context.Context, sqlText string) (QueryResult, error) {
	handle, err := d.readyHandle()
	if err != nil {
		return QueryResult{}, err
	}
	sets := d.sqlSlot.RunAll(ctx, handle, sqlText)
	return QueryResult{Result: engine.First(sets), ResultCount: len(sets)}, nil
}

// QueryPage runs sqlText as a paginated statement. Without a table to
// count, the total is the size of the page fetched.
func (d *Database) QueryPage(ctx context.Context, sqlText string, offset, limit int) (pagination.View, error) {
	handle, err := d.readyHandle()
	if err != nil {
		return pagination.View{}, err
	}
	if limit <= 0 {
		limit = d.cfg.PageLimit
	}
	return d.sqlPage.Window(ctx, pagination.Params{Handle: handle, BaseQuery: sqlText, Limit: limit}, offset), nil
}

// Table returns the view of one discovered table, creating it on first use.
func (d *Database) Table(name string) (*TableView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.readyLocked(); err != nil {
		return nil, err
	}
	if view, ok := d.views[name]; ok {
		return view, nil
	}
	found := false
	for _, table := range d.tables {
		if table == name {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	view := newTableView(name, d.handle, d.cfg)
	d.views[name] = view
	return view, nil
}

func (d *Database) load(ctx context.Context) {
	defer close(d.done)
	defer d.cancel()

	start := time.Now()
	d.logger.InfoContext(ctx, "source load started", slog.String("origin", string(d.Source.Origin)))

	handle, err := d.binding.Attach(ctx)
	tables := []string{}
	if err == nil {
		var discoverErr error
		if tables, discoverErr = engine.DiscoverTables(ctx, handle); discoverErr != nil {
			// The source stays queryable from the SQL box without table tabs.
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			} else {
				d.logger.Warn("table discovery failed", slog.Any("error", discoverErr))
			}
		}
	}
	if err != nil {
		_ = d.binding.Release()
	}
	elapsed := time.Since(start)
	observability.ObserveSourceLoad(string(d.Source.Origin), err, elapsed)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil && d.released {
		err = engine.ErrReleased
	}
	if err != nil {
		d.loadErr = err
		d.status = Status{State: StateError, Message: loadMessage(err)}
		d.logger.Warn("source load failed", slog.Any("error", err), slog.Duration("elapsed", elapsed))
		return
	}
	d.handle = handle
	d.tables = tables
	d.status = Status{State: StateReady}
	d.logger.Info("source loaded",
		slog.String("engine", handle.Dialect().Name),
		slog.Int("tables", len(tables)),
		slog.Int64("size_bytes", d.Source.Size()),
		slog.Duration("elapsed", elapsed),
	)
}

func (d *Database) release() error {
	d.cancel()
	err := d.binding.Release()
	d.mu.Lock()
	d.released = true
	d.handle = nil
	d.views = map[string]*TableView{}
	d.mu.Unlock()
	return err
}

func (d *Database) readyHandle() (engine.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.readyLocked(); err != nil {
		return nil, err
	}
	return d.handle, nil
}

func (d *Database) readyLocked() error {
	switch d.status.State {
	case StateLoading:
		return ErrNotReady
	case StateError:
		return d.loadErr
	}
	if d.handle == nil {
		return engine.ErrReleased
	}
	return nil
}

func loadMessage(err error) string {
	switch {
	case errors.Is(err, engine.ErrUnrecognizedImage):
		return "not a SQLite or DuckDB database file"
	case errors.Is(err, engine.ErrEmptyImage):
		return "the file is empty"
	case errors.Is(err, source.ErrImageTooLarge):
		return "the file is larger than the configured limit"
	case errors.Is(err, context.DeadlineExceeded):
		return "loading timed out"
	case errors.Is(err, engine.ErrReleased), errors.Is(err, context.Canceled):
		return "loading was cancelled"
	default:
		return err.Error()
	}
}
