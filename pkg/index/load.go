package index

import (
	"context"
	"io"
	"os"

	"github.com/glorpus-work/fetchmirror/internal/logger"
	"github.com/glorpus-work/fetchmirror/pkg/archive"
	"github.com/glorpus-work/fetchmirror/pkg/errors"
)

// Load reads the index at path. It never fails: an empty path yields an
// empty index silently, and any other problem yields an empty index plus a
// warning. Skipped records are returned for diagnostics.
func Load(ctx context.Context, path string, opts Options) (*Index, []error) {
	if path == "" {
		return Empty(), nil
	}

	idx, skipped, err := load(ctx, path, opts)
	if err != nil {
		logger.Warn("Staleness index unavailable, continuing without it", logger.Fields{
			"path":  path,
			"error": err.Error(),
		})
		return Empty(), []error{err}
	}

	for _, s := range skipped {
		logger.Debug("Skipping staleness index record", logger.Fields{"path": path, "reason": s.Error()})
	}
	logger.Debug("Loaded staleness index", logger.Fields{
		"path":    path,
		"entries": idx.Len(),
		"skipped": len(skipped),
	})
	return idx, skipped
}

func load(ctx context.Context, path string, opts Options) (*Index, []error, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, errors.Wrapf(errors.ErrIndexUnavailable, "%s: %v", path, err)
	}

	rc, err := archive.NewManager().Open(ctx, path)
	if err != nil {
		return nil, nil, errors.Wrapf(errors.ErrIndexUnavailable, "%s: %v", path, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, errors.Wrapf(errors.ErrIndexUnavailable, "%s: %v", path, err)
	}

	return Parse(data, opts)
}
