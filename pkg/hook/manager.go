// Package hook runs operator-supplied Tengo scripts at fixed points of a
// run: after each committed artifact and once when the run ends.
package hook

import (
	"context"
	"fmt"

	"github.com/glorpus-work/fetchmirror/pkg/errors"
)

// ErrUnsupportedHookType is returned when an unknown hook type is used.
func ErrUnsupportedHookType(hookType string) error {
	return fmt.Errorf("unsupported hook type: %s", hookType)
}

// DefaultHookManager is the default implementation of HookManager.
type DefaultHookManager struct {
	executor *TengoExecutor
}

// NewHookManager creates a new hook manager.
func NewHookManager() *DefaultHookManager {
	return &DefaultHookManager{
		executor: NewTengoExecutor(),
	}
}

// Execute runs the specified hook type with the given context.
func (m *DefaultHookManager) Execute(ctx context.Context, hookType HookType, hctx HookContext) error {
	if !m.HasHook(hookType) {
		return nil
	}

	// Copy the vars so a caller mutating its map cannot race a running hook.
	vars := make(map[string]interface{}, len(hctx.Vars))
	for k, v := range hctx.Vars {
		vars[k] = v
	}
	return m.executor.Execute(ctx, hookType, HookContext{Vars: vars})
}

// AddHook adds a new hook.
func (m *DefaultHookManager) AddHook(hook Hook) error {
	if hook.Type == "" {
		return errors.ErrHookTypeEmpty
	}
	return m.executor.Compile(hook.Type, hook.Content)
}

// RemoveHook removes a hook of the specified type.
func (m *DefaultHookManager) RemoveHook(hookType HookType) error {
	if hookType == "" {
		return errors.ErrHookTypeEmpty
	}
	m.executor.RemoveScript(hookType)
	return nil
}

// HasHook checks if a hook of the specified type exists.
func (m *DefaultHookManager) HasHook(hookType HookType) bool {
	return m.executor.HasScript(hookType)
}
