package query

import (
	"context"
	"reflect"
	"sync"

	"github.com/litelens/litelens/internal/engine"
)

// Slot holds the latest result of one SQL statement. Run executes again only
// when the handle, text or arguments differ from the previous run, and the
// new result replaces the old one.
type Slot struct {
	Executor Executor

	mu      sync.Mutex
	ran     bool
	handle  engine.Handle
	sqlText string
	args    []any
	sets    []engine.ResultSet
}

func (s *Slot) Run(ctx context.Context, handle engine.Handle, sqlText string, args ...any) *engine.ResultSet {
	return engine.First(s.RunAll(ctx, handle, sqlText, args...))
}

// RunAll is Run returning every result set of the run. The slice belongs to
// the caller; a later run never changes it.
func (s *Slot) RunAll(ctx context.Context, handle engine.Handle, sqlText string, args ...any) []engine.ResultSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ran || s.handle != handle || s.sqlText != sqlText || !reflect.DeepEqual(s.args, args) {
		s.sets = s.Executor.Execute(ctx, handle, sqlText, args...)
		s.handle = handle
		s.sqlText = sqlText
		s.args = append([]any(nil), args...)
		s.ran = true
	}
	return append([]engine.ResultSet(nil), s.sets...)
}

// Reset forgets the last run so the next Run executes unconditionally.
func (s *Slot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ran = false
	s.handle = nil
	s.sqlText = ""
	s.args = nil
	s.sets = nil
}
