// Package fsutil provides file system helpers used when committing fetched
// artifacts: permission constants, atomic moves and temp-file housekeeping.
package fsutil

// File and directory permission constants.
const (
	// Default file modes.
	FileModeDefault = 0o644 // -rw-r--r--: Default for regular files and committed artifacts
	FileModeSecure  = 0o640 // -rw-r-----: For the config file, which may carry credentials

	// Directory modes.
	DirModeDefault = 0o755 // drwxr-xr-x: Default for destination directories

	// TempSuffix marks in-flight artifact writes. Files carrying it are never
	// destinations and may be removed at any time no writer is running.
	TempSuffix = ".tmp"
)
