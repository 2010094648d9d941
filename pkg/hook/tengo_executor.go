package hook

import (
	"context"
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/glorpus-work/fetchmirror/pkg/errors"
)

// maxAllocs bounds the objects a single hook run may allocate.
const maxAllocs = 1 << 20

// TengoExecutor compiles Tengo scripts once and runs a fresh clone of the
// compiled program for every execution, so concurrent executions do not
// share globals.
type TengoExecutor struct {
	compiled map[HookType]*tengo.Compiled
	mutex    sync.RWMutex
}

// NewTengoExecutor creates a new Tengo script executor.
func NewTengoExecutor() *TengoExecutor {
	return &TengoExecutor{
		compiled: make(map[HookType]*tengo.Compiled),
	}
}

// Compile compiles script for hookType and stores it.
func (e *TengoExecutor) Compile(hookType HookType, script string) error {
	names, ok := variableNames[hookType]
	if !ok {
		return ErrUnsupportedHookType(string(hookType))
	}

	s := tengo.NewScript([]byte(script))
	s.SetImports(stdlib.GetModuleMap("fmt", "json", "text", "times", "os"))
	s.SetMaxAllocs(maxAllocs)
	for _, name := range names {
		if err := s.Add(name, nil); err != nil {
			return errors.Wrapf(errors.ErrHookLoad, "%s: %v", hookType, err)
		}
	}

	compiled, err := s.Compile()
	if err != nil {
		return errors.Wrapf(errors.ErrHookLoad, "%s: %v", hookType, err)
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.compiled[hookType] = compiled
	return nil
}

// Execute runs the specified hook type with the given context. A missing
// script is not an error.
func (e *TengoExecutor) Execute(ctx context.Context, hookType HookType, hctx HookContext) error {
	e.mutex.RLock()
	base, exists := e.compiled[hookType]
	e.mutex.RUnlock()
	if !exists {
		return nil
	}

	run := base.Clone()
	for _, name := range variableNames[hookType] {
		if err := run.Set(name, hctx.Vars[name]); err != nil {
			return errors.Wrapf(errors.ErrHookExecution, "%s: setting %s: %v", hookType, name, err)
		}
	}

	if err := run.RunContext(ctx); err != nil {
		return errors.Wrapf(errors.ErrHookExecution, "%s: %v", hookType, err)
	}

	// A script reports failure by assigning a non-empty string or an error
	// value to a global named err.
	if !run.IsDefined("err") {
		return nil
	}
	errVar := run.Get("err")
	if scriptErr := errVar.Error(); scriptErr != nil {
		return errors.Wrap(errors.ErrHookScript, scriptErr.Error())
	}
	if msg, ok := errVar.Value().(string); ok && msg != "" {
		return errors.Wrap(errors.ErrHookScript, msg)
	}
	return nil
}

// RemoveScript removes the script for the specified hook type.
func (e *TengoExecutor) RemoveScript(hookType HookType) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.compiled, hookType)
}

// HasScript checks if a script exists for the specified hook type.
func (e *TengoExecutor) HasScript(hookType HookType) bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	_, exists := e.compiled[hookType]
	return exists
}
