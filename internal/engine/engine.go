// Package engine binds embedded SQL engines to database images loaded in
// memory. A Runtime recognises and opens one image format; a Handle is a
// read-only, queryable binding to one loaded image.
package engine

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptyImage        = errors.New("database image is empty")
	ErrUnrecognizedImage = errors.New("unrecognized database image")
	ErrReleased          = errors.New("binding released")
)

// ResultSet is the output of one statement.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"values"`
}

type Dialect struct {
	Name string
	// TablesSQL lists table names in its first column.
	TablesSQL string
	// ReservedPrefix marks the engine's own bookkeeping tables.
	ReservedPrefix string
}

type Handle interface {
	Dialect() Dialect
	Query(ctx context.Context, sqlText string, args ...any) ([]ResultSet, error)
	Close() error
}

type Runtime interface {
	Name() string
	// Init prepares the runtime. It is safe to call repeatedly.
	Init(ctx context.Context) error
	// Sniff reports whether image starts with this runtime's file header.
	Sniff(image []byte) bool
	Load(ctx context.Context, image []byte) (Handle, error)
}

// Registry is an ordered set of runtimes.
type Registry struct {
	runtimes []Runtime
}

func NewRegistry(runtimes ...Runtime) *Registry {
	filtered := make([]Runtime, 0, len(runtimes))
	for _, runtime := range runtimes {
		if runtime != nil {
			filtered = append(filtered, runtime)
		}
	}
	return &Registry{runtimes: filtered}
}

func (r *Registry) Runtimes() []Runtime {
	return append([]Runtime(nil), r.runtimes...)
}

func (r *Registry) Init(ctx context.Context) error {
	if len(r.runtimes) == 0 {
		return fmt.Errorf("no engine runtimes registered")
	}
	for _, runtime := range r.runtimes {
		if err := runtime.Init(ctx); err != nil {
			return fmt.Errorf("init %s runtime: %w", runtime.Name(), err)
		}
	}
	return nil
}

// Detect returns the first runtime that recognises image.
func (r *Registry) Detect(image []byte) (Runtime, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	for _, runtime := range r.runtimes {
		if runtime.Sniff(image) {
			return runtime, nil
		}
	}
	return nil, ErrUnrecognizedImage
}

// First returns the first result set, or nil when there is none.
func First(sets []ResultSet) *ResultSet {
	if len(sets) == 0 {
		return nil
	}
	first := sets[0]
	return &first
}
