// Package errors defines the sentinel errors shared by fetchmirror components
// together with small helpers for wrapping them with context.
package errors

import "fmt"

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath      = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath    = fmt.Errorf("invalid config file path")
	ErrConfigParse          = fmt.Errorf("failed to parse config")
	ErrConfigValidation     = fmt.Errorf("invalid configuration")
	ErrConfigEncode         = fmt.Errorf("failed to encode config")
	ErrConfigDirectory      = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate     = fmt.Errorf("failed to create config file")
	ErrConfigFileRename     = fmt.Errorf("failed to rename temporary config file")
	ErrConfigFileChmod      = fmt.Errorf("failed to set config file permissions")
	ErrConfigMarshal        = fmt.Errorf("failed to marshal config to YAML")
	ErrConfigFileExists     = fmt.Errorf("configuration file already exists (use --force to overwrite)")
	ErrBatchBoundsInvalid   = fmt.Errorf("batch size bounds are invalid")
	ErrDelayBoundsInvalid   = fmt.Errorf("delay bounds are invalid")
	ErrMaxConcurrentInvalid = fmt.Errorf("max_concurrent must be at least 1")
	ErrHTTPTimeoutNegative  = fmt.Errorf("timeout cannot be negative")
	ErrRateLimitNegative    = fmt.Errorf("rate_limit cannot be negative")
	ErrInvalidContentKind   = fmt.Errorf("invalid content kind")
	ErrInvalidHTTPMethod    = fmt.Errorf("invalid http method")
	ErrInvalidOutputFormat  = fmt.Errorf("invalid output format")
	ErrInvalidLogLevel      = fmt.Errorf("invalid log level")
	ErrAuthConfig           = fmt.Errorf("invalid auth configuration")
	ErrUnknownConfigKey     = fmt.Errorf("unknown configuration key")

	// Manifest errors.
	ErrManifestUnreadable = fmt.Errorf("manifest cannot be read")
	ErrManifestLine       = fmt.Errorf("malformed manifest line")

	// Staleness index errors. None of these is fatal to a run.
	ErrIndexUnavailable = fmt.Errorf("staleness index unavailable")
	ErrIndexParse       = fmt.Errorf("failed to parse staleness index")
	ErrIndexVersion     = fmt.Errorf("unsupported staleness index format version")

	// Cache errors.
	ErrCacheCorrupt    = fmt.Errorf("cached artifact is corrupt")
	ErrNoTimestamp     = fmt.Errorf("no embedded update timestamp")
	ErrTimestampFormat = fmt.Errorf("unrecognized timestamp format")

	// Fetch errors. Each one is terminal for its task within a run.
	ErrNetwork        = fmt.Errorf("network failure")
	ErrHTTPStatus     = fmt.Errorf("unexpected http status")
	ErrContentInvalid = fmt.Errorf("response content failed validation")
	ErrWrite          = fmt.Errorf("failed to commit artifact")
	ErrNotDispatched  = fmt.Errorf("task was not dispatched")

	// Hook errors.
	ErrHookTypeEmpty = fmt.Errorf("hook type cannot be empty")
	ErrHookExecution = fmt.Errorf("error executing hook")
	ErrHookScript    = fmt.Errorf("hook script error")
	ErrHookLoad      = fmt.Errorf("failed to load hook")

	// Filesystem errors.
	ErrInvalidPath = fmt.Errorf("invalid path")
	ErrEmptyPaths  = fmt.Errorf("source and destination paths cannot be empty")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ErrInvalidContentKindWithValue returns ErrInvalidContentKind naming the rejected value.
func ErrInvalidContentKindWithValue(kind string) error {
	return fmt.Errorf("%w: %q (must be structured or geometry)", ErrInvalidContentKind, kind)
}

// ErrInvalidHTTPMethodWithValue returns ErrInvalidHTTPMethod naming the rejected value.
func ErrInvalidHTTPMethodWithValue(method string) error {
	return fmt.Errorf("%w: %q (must be GET or POST)", ErrInvalidHTTPMethod, method)
}

// ErrInvalidOutputFormatWithDetails returns ErrInvalidOutputFormat naming the rejected value.
func ErrInvalidOutputFormatWithDetails(format string) error {
	return fmt.Errorf("%w: %s (must be one of: text, json)", ErrInvalidOutputFormat, format)
}

// ErrInvalidLogLevelWithDetails returns ErrInvalidLogLevel naming the rejected value.
func ErrInvalidLogLevelWithDetails(level string) error {
	return fmt.Errorf("%w: %s (must be one of: debug, info, warn, error)", ErrInvalidLogLevel, level)
}

// ErrHTTPStatusWithCode returns ErrHTTPStatus carrying the received status code.
func ErrHTTPStatusWithCode(code int) error {
	return fmt.Errorf("%w: %d", ErrHTTPStatus, code)
}
