package workspace

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/litelens/litelens/internal/engine"
)

const fakeMagic = "FAKEDB"

// fakeRuntime opens any image starting with fakeMagic as a fakeHandle.
type fakeRuntime struct {
	handle *fakeHandle
}

func (r *fakeRuntime) Name() string               { return "fake" }
func (r *fakeRuntime) Init(context.Context) error { return nil }
func (r *fakeRuntime) Sniff(image []byte) bool    { return bytes.HasPrefix(image, []byte(fakeMagic)) }
func (r *fakeRuntime) Load(context.Context, []byte) (engine.Handle, error) {
	return r.handle, nil
}

// fakeHandle answers every statement with one "name" column and one row,
// failing statements that contain any of the fail substrings.
type fakeHandle struct {
	mu      sync.Mutex
	fail    []string
	queries []string
	closed  atomic.Int32
}

func (h *fakeHandle) Dialect() engine.Dialect {
	return engine.Dialect{Name: "fake", TablesSQL: "LIST TABLES"}
}

func (h *fakeHandle) Query(_ context.Context, sqlText string, _ ...any) ([]engine.ResultSet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queries = append(h.queries, sqlText)
	for _, fragment := range h.fail {
		if strings.Contains(sqlText, fragment) {
			return nil, errors.New("fake failure")
		}
	}
	if sqlText == "LIST TABLES" {
		return []engine.ResultSet{{Columns: []string{"name"}, Rows: [][]any{{"things"}}}}, nil
	}
	return []engine.ResultSet{{Columns: []string{"name"}, Rows: [][]any{{"a"}}}}, nil
}

func (h *fakeHandle) Close() error {
	h.closed.Add(1)
	return nil
}

func (h *fakeHandle) setFail(fragments ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fail = fragments
}

func (h *fakeHandle) sawQueryContaining(fragment string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, q := range h.queries {
		if strings.Contains(q, fragment) {
			return true
		}
	}
	return false
}

func newFakeWorkspace(t *testing.T, handle *fakeHandle) *Workspace {
	t.Helper()
	ws := New(Config{Registry: engine.NewRegistry(&fakeRuntime{handle: handle}), PageLimit: 10})
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}
