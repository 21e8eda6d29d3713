package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/litelens/litelens/internal/observability"
)

// ImageFunc resolves the bytes of a database image.
type ImageFunc func(ctx context.Context) ([]byte, error)

// Binding owns the single handle created for one source.
type Binding struct {
	registry *Registry
	image    ImageFunc

	attachMu sync.Mutex

	mu       sync.Mutex
	handle   Handle
	cancel   context.CancelFunc
	released bool
}

func NewBinding(registry *Registry, image ImageFunc) *Binding {
	return &Binding{registry: registry, image: image}
}

// Attach initialises the runtimes and resolves the image concurrently, then
// opens a handle once both are done. Later calls return the same handle
// without loading again.
func (b *Binding) Attach(ctx context.Context) (Handle, error) {
	b.attachMu.Lock()
	defer b.attachMu.Unlock()

	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return nil, ErrReleased
	}
	if b.handle != nil {
		handle := b.handle
		b.mu.Unlock()
		return handle, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.mu.Unlock()
	defer cancel()

	handle, err := b.load(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancel = nil
	if b.released {
		if handle != nil {
			_ = handle.Close()
		}
		return nil, ErrReleased
	}
	if err != nil {
		return nil, err
	}
	b.handle = handle
	observability.HandleOpened()
	return handle, nil
}

// Handle returns the attached handle, or nil before Attach succeeded.
func (b *Binding) Handle() Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handle
}

// Release cancels an in-flight Attach and closes the handle. Released
// bindings cannot be attached again.
func (b *Binding) Release() error {
	b.mu.Lock()
	b.released = true
	if b.cancel != nil {
		b.cancel()
	}
	handle := b.handle
	b.handle = nil
	b.mu.Unlock()

	if handle == nil {
		return nil
	}
	observability.HandleClosed()
	return handle.Close()
}

func (b *Binding) load(ctx context.Context) (Handle, error) {
	if b.registry == nil || b.image == nil {
		return nil, fmt.Errorf("binding is not configured")
	}

	var image []byte
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return b.registry.Init(groupCtx)
	})
	group.Go(func() error {
		data, err := b.image(groupCtx)
		if err != nil {
			return fmt.Errorf("resolve image: %w", err)
		}
		image = data
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runtime, err := b.registry.Detect(image)
	if err != nil {
		return nil, err
	}
	handle, err := runtime.Load(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("load %s image: %w", runtime.Name(), err)
	}
	return handle, nil
}
