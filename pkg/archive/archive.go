// Package archive opens manifest and index inputs that may be stored
// compressed (gzip, zstd, xz, bzip2, ...). Format detection is delegated to
// mholt/archives; uncompressed input passes through unchanged.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mholt/archives"
)

// ErrMultiFileArchive is returned for container formats (tar, zip, ...).
// Inputs must be a single stream.
var ErrMultiFileArchive = errors.New("multi-file archives are not supported")

// Manager opens possibly-compressed single-stream inputs.
type Manager struct{}

// NewManager creates a new Manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// Open opens path and transparently decompresses it when its name or header
// identifies a compression format.
func (am *Manager) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	rc, err := am.Decompress(ctx, path, file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &stackedCloser{Reader: rc, closers: []io.Closer{rc, file}}, nil
}

// Decompress wraps stream with the decompressor matching name or the
// stream header. The caller keeps ownership of stream.
func (am *Manager) Decompress(ctx context.Context, name string, stream io.Reader) (io.ReadCloser, error) {
	format, buffered, err := archives.Identify(ctx, name, stream)
	if err != nil {
		if errors.Is(err, archives.NoMatch) {
			return io.NopCloser(buffered), nil
		}
		return nil, fmt.Errorf("failed to identify format of %s: %w", name, err)
	}

	switch f := format.(type) {
	case archives.CompressedArchive, archives.Archival, archives.Extraction:
		return nil, fmt.Errorf("%s (%s): %w", name, format.Extension(), ErrMultiFileArchive)
	case archives.Decompressor:
		rc, err := f.OpenReader(buffered)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s stream for %s: %w", format.Extension(), name, err)
		}
		return rc, nil
	default:
		return io.NopCloser(buffered), nil
	}
}

type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
