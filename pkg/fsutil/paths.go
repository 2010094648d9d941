package fsutil

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// AppName is the name of the application used in paths
	AppName = "fetchmirror"
)

// GetConfigDir returns the platform-specific configuration directory for the application.
// On Linux: $XDG_CONFIG_HOME/fetchmirror or ~/.config/fetchmirror
// On macOS: ~/Library/Application Support/fetchmirror
// On Windows: %AppData%\fetchmirror
func GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, AppName), nil
}

// TempPattern returns the os.CreateTemp pattern used for a destination's
// in-flight write. The temp file is a sibling of dst so the final rename
// never crosses a filesystem boundary.
func TempPattern(dst string) string {
	return filepath.Base(dst) + ".*" + TempSuffix
}

// IsTempFor reports whether name looks like a temp sibling created for dst.
func IsTempFor(dst, name string) bool {
	base := filepath.Base(dst) + "."
	return strings.HasPrefix(name, base) && strings.HasSuffix(name, TempSuffix) && len(name) > len(base)+len(TempSuffix)
}

// RemoveTempSiblings deletes leftover temp files created for dst by an
// interrupted write. It returns the number of files removed. A missing
// parent directory is not an error.
func RemoveTempSiblings(dst string) (int, error) {
	dir := filepath.Dir(dst)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !IsTempFor(dst, entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
