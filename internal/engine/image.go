package engine

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// WriteImage copies image into a new file under dir (the OS temp dir when
// dir is empty). The returned cleanup removes the file.
func WriteImage(dir, pattern string, image []byte) (string, func() error, error) {
	if len(image) == 0 {
		return "", nil, ErrEmptyImage
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", nil, fmt.Errorf("create work dir %q: %w", dir, err)
		}
	}
	file, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("create image file: %w", err)
	}
	path := file.Name()
	cleanup := func() error {
		return RemoveIfExists(path)
	}

	if _, err := io.Copy(file, bytes.NewReader(image)); err != nil {
		_ = file.Close()
		_ = cleanup()
		return "", nil, fmt.Errorf("write image file %q: %w", path, err)
	}
	if err := file.Close(); err != nil {
		_ = cleanup()
		return "", nil, fmt.Errorf("close image file %q: %w", path, err)
	}
	return path, cleanup, nil
}

// RemoveIfExists removes path, ignoring a missing file.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %q: %w", path, err)
	}
	return nil
}
