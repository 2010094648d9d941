package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glorpus-work/fetchmirror/internal/logger"
	"github.com/glorpus-work/fetchmirror/pkg/fsutil"
	"github.com/glorpus-work/fetchmirror/pkg/model"
)

// Info summarizes the mirror state for a set of tasks.
type Info struct {
	Artifacts int
	Valid     int
	Invalid   int
	Missing   int
	TotalSize int64
	TempFiles int
}

// CleanResult reports what Clean removed.
type CleanResult struct {
	TempFiles int
	Invalid   int
	Freed     int64
}

// SweepTemp removes temp siblings of destination left by interrupted writes
// and returns how many were removed. Failures are logged, never returned.
func SweepTemp(destination string) int {
	n, err := fsutil.RemoveTempSiblings(destination)
	if err != nil {
		logger.Debug("Failed to sweep temp files", logger.Fields{"destination": destination, "error": err.Error()})
	}
	if n > 0 {
		logger.Debug("Removed leftover temp files", logger.Fields{"destination": destination, "count": n})
	}
	return n
}

// GetInfo inspects every task destination without modifying anything.
func (v *Validator) GetInfo(tasks []model.ResourceTask) *Info {
	info := &Info{}
	seen := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		if _, dup := seen[task.Destination]; dup {
			continue
		}
		seen[task.Destination] = struct{}{}

		art := v.Inspect(task.Destination, task.Kind)
		switch {
		case !art.Exists:
			info.Missing++
		case art.Valid:
			info.Artifacts++
			info.Valid++
			info.TotalSize += art.Size
		default:
			info.Artifacts++
			info.Invalid++
			info.TotalSize += art.Size
		}
		info.TempFiles += countTemp(task.Destination)
	}
	return info
}

// Clean removes leftover temp files for every task destination and, when
// removeInvalid is set, destinations whose content fails validation.
func (v *Validator) Clean(tasks []model.ResourceTask, removeInvalid bool) (*CleanResult, error) {
	result := &CleanResult{}
	for _, task := range tasks {
		freed := tempSize(task.Destination)
		if n := SweepTemp(task.Destination); n > 0 {
			result.TempFiles += n
			result.Freed += freed
		}

		if !removeInvalid {
			continue
		}
		art := v.Inspect(task.Destination, task.Kind)
		if !art.Exists || art.Valid {
			continue
		}
		if err := os.Remove(task.Destination); err != nil && !os.IsNotExist(err) {
			return result, fmt.Errorf("failed to remove invalid artifact %s: %w", task.Destination, err)
		}
		result.Invalid++
		result.Freed += art.Size
	}
	return result, nil
}

func tempSiblings(destination string) []string {
	entries, err := os.ReadDir(filepath.Dir(destination))
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && fsutil.IsTempFor(destination, e.Name()) {
			out = append(out, filepath.Join(filepath.Dir(destination), e.Name()))
		}
	}
	return out
}

func countTemp(destination string) int {
	return len(tempSiblings(destination))
}

func tempSize(destination string) int64 {
	var size int64
	for _, p := range tempSiblings(destination) {
		if info, err := os.Stat(p); err == nil {
			size += info.Size()
		}
	}
	return size
}

// FormatBytes converts bytes to a human-readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"K", "M", "G", "T", "P", "E"}
	if exp < len(units) {
		return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
	}
	return fmt.Sprintf("%d B", bytes)
}
