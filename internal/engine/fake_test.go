package engine

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
)

type fakeHandle struct {
	dialect Dialect
	sets    []ResultSet
	err     error

	mu     sync.Mutex
	closed int
	query  string
	args   []any
}

func (h *fakeHandle) Dialect() Dialect { return h.dialect }

func (h *fakeHandle) Query(_ context.Context, sqlText string, args ...any) ([]ResultSet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.query = sqlText
	h.args = args
	return h.sets, h.err
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
	return nil
}

func (h *fakeHandle) closeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

type fakeRuntime struct {
	name    string
	magic   []byte
	initErr error
	loadErr error
	handle  *fakeHandle
	// block, when set, holds Load until it is closed or ctx ends.
	block chan struct{}

	inits atomic.Int32
	loads atomic.Int32
}

func (r *fakeRuntime) Name() string { return r.name }

func (r *fakeRuntime) Init(context.Context) error {
	r.inits.Add(1)
	return r.initErr
}

func (r *fakeRuntime) Sniff(image []byte) bool {
	return bytes.HasPrefix(image, r.magic)
}

func (r *fakeRuntime) Load(ctx context.Context, _ []byte) (Handle, error) {
	r.loads.Add(1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.handle, nil
}
