// Package source describes database files offered to the viewer. A Source
// only knows how to produce its bytes; loading them is the engine's job.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/litelens/litelens/internal/storage"
)

type Origin string

const (
	OriginUpload  Origin = "upload"
	OriginExample Origin = "example"
	OriginFile    Origin = "file"
	OriginURL     Origin = "url"
)

var ErrImageTooLarge = errors.New("database image exceeds size limit")

// Opener returns a fresh reader over the payload.
type Opener func(ctx context.Context) (io.ReadCloser, error)

type Source struct {
	ID        string
	Name      string
	Origin    Origin
	Owner     string
	CreatedAt time.Time
	// MaxBytes caps the payload. Zero disables the cap.
	MaxBytes int64

	open Opener

	mu       sync.Mutex
	resolved bool
	data     []byte
	err      error
	size     atomic.Int64
}

func New(name string, origin Origin, open Opener) *Source {
	return &Source{
		ID:        uuid.NewString(),
		Name:      name,
		Origin:    origin,
		CreatedAt: time.Now().UTC(),
		open:      open,
	}
}

// FromBytes wraps a payload that is already in memory, such as an upload.
func FromBytes(name string, origin Origin, data []byte) *Source {
	return New(name, origin, func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// FromObjectStore reads key from store, e.g. a bundled example in a bucket.
func FromObjectStore(store storage.ObjectStore, key string) *Source {
	return New(path.Base(key), OriginExample, func(ctx context.Context) (io.ReadCloser, error) {
		if store == nil {
			return nil, fmt.Errorf("object store is not configured")
		}
		reader, err := store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get object %q: %w", key, err)
		}
		return reader, nil
	})
}

func FromFile(filePath string) *Source {
	return New(filepath.Base(filePath), OriginFile, func(ctx context.Context) (io.ReadCloser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, err := os.Open(filePath) //nolint:gosec // path comes from operator configuration
		if err != nil {
			return nil, fmt.Errorf("open %q: %w", filePath, err)
		}
		return file, nil
	})
}

// FromURL fetches rawURL with client, or http.DefaultClient when nil.
func FromURL(client *http.Client, rawURL string) *Source {
	if client == nil {
		client = http.DefaultClient
	}
	name := path.Base(strings.SplitN(rawURL, "?", 2)[0])
	return New(name, OriginURL, func(ctx context.Context) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %q: %w", rawURL, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("fetch %q: unexpected status %d", rawURL, resp.StatusCode)
		}
		return resp.Body, nil
	})
}

// Resolve returns the payload, reading it on first use. Outcomes are cached
// except for context cancellation, which leaves the source resolvable.
func (s *Source) Resolve(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return s.data, s.err
	}

	data, err := s.read(ctx)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil, err
	}
	s.data, s.err, s.resolved = data, err, true
	s.size.Store(int64(len(data)))
	return data, err
}

// Size is the payload length once resolved, zero before. It does not wait
// for a resolution in progress.
func (s *Source) Size() int64 {
	return s.size.Load()
}

func (s *Source) read(ctx context.Context) ([]byte, error) {
	if s.open == nil {
		return nil, fmt.Errorf("source %q has no payload", s.Name)
	}
	reader, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	var limited io.Reader = reader
	if s.MaxBytes > 0 {
		limited = io.LimitReader(reader, s.MaxBytes+1)
	}
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", s.Name, err)
	}
	if s.MaxBytes > 0 && int64(len(data)) > s.MaxBytes {
		return nil, fmt.Errorf("%w: %q is larger than %d bytes", ErrImageTooLarge, s.Name, s.MaxBytes)
	}
	return data, nil
}
