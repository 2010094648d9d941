package hook

import (
	"context"
)

// HookType represents the type of hook.
type HookType string

// Supported hook types.
const (
	PostFetch HookType = "post-fetch"
	PostRun   HookType = "post-run"
)

// Hook represents a hook script with its type and content.
type Hook struct {
	Type    HookType
	Content string
}

// HookContext carries the variables exposed to a script. Every hook of a
// given type receives the same variable names; scripts read them as globals.
type HookContext struct {
	Vars map[string]interface{}
}

// FetchContext builds the post-fetch variables for one committed artifact.
func FetchContext(locator, destination, kind, resourceID string, forced bool) HookContext {
	return HookContext{Vars: map[string]interface{}{
		"locator":     locator,
		"destination": destination,
		"kind":        kind,
		"resourceID":  resourceID,
		"forced":      forced,
	}}
}

// RunContext builds the post-run variables from the final counters.
func RunContext(runID string, fetched, skipped, forceRefreshed, failed int64) HookContext {
	return HookContext{Vars: map[string]interface{}{
		"runID":          runID,
		"fetched":        fetched,
		"skipped":        skipped,
		"forceRefreshed": forceRefreshed,
		"failed":         failed,
		"total":          fetched + skipped + forceRefreshed + failed,
	}}
}

// variableNames lists the globals each hook type declares at compile time.
var variableNames = map[HookType][]string{
	PostFetch: {"locator", "destination", "kind", "resourceID", "forced"},
	PostRun:   {"runID", "fetched", "skipped", "forceRefreshed", "failed", "total"},
}

// HookManager defines the interface for managing hooks.
type HookManager interface {
	// Execute runs the specified hook type with the given context.
	Execute(ctx context.Context, hookType HookType, hctx HookContext) error

	// AddHook compiles and registers a hook, replacing any previous one.
	AddHook(hook Hook) error

	// RemoveHook removes a hook of the specified type.
	RemoveHook(hookType HookType) error

	// HasHook checks if a hook of the specified type exists.
	HasHook(hookType HookType) bool
}
