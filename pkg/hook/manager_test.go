package hook_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	pkgerrors "github.com/glorpus-work/fetchmirror/pkg/errors"
	"github.com/glorpus-work/fetchmirror/pkg/hook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHookManager(t *testing.T) {
	manager := hook.NewHookManager()
	assert.NotNil(t, manager, "NewHookManager should return a non-nil manager")
	assert.False(t, manager.HasHook(hook.PostFetch))
}

func TestAddAndExecuteHook(t *testing.T) {
	manager := hook.NewHookManager()

	err := manager.AddHook(hook.Hook{
		Type:    hook.PostFetch,
		Content: `x := destination + ":" + kind`,
	})
	require.NoError(t, err)

	err = manager.Execute(context.Background(), hook.PostFetch,
		hook.FetchContext("https://p.example/1", "raw/1.json", "structured", "1", false))
	require.NoError(t, err)

	// Running an unregistered type is a no-op.
	require.NoError(t, manager.Execute(context.Background(), hook.PostRun, hook.RunContext("r", 1, 2, 3, 4)))
}

func TestExecute_ScriptReportsError(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantErr error
	}{
		{"string err", `err := forced ? "forced " + resourceID : ""`, pkgerrors.ErrHookScript},
		{"error value", `err := error("bad " + resourceID)`, pkgerrors.ErrHookScript},
		{"runtime error", `x := 1 / (len(kind) - len(kind))`, pkgerrors.ErrHookExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := hook.NewHookManager()
			require.NoError(t, manager.AddHook(hook.Hook{Type: hook.PostFetch, Content: tt.script}))

			err := manager.Execute(context.Background(), hook.PostFetch,
				hook.FetchContext("u", "d/7.json", "structured", "7", true))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestExecute_EmptyErrIsSuccess(t *testing.T) {
	manager := hook.NewHookManager()
	require.NoError(t, manager.AddHook(hook.Hook{Type: hook.PostFetch, Content: `err := forced ? "forced" : ""`}))
	assert.NoError(t, manager.Execute(context.Background(), hook.PostFetch,
		hook.FetchContext("u", "d/7.json", "structured", "7", false)))
}

func TestPostRunSeesCounters(t *testing.T) {
	manager := hook.NewHookManager()
	require.NoError(t, manager.AddHook(hook.Hook{
		Type:    hook.PostRun,
		Content: `err := total != 10 || failed != 4 ? "bad counters" : ""`,
	}))
	assert.NoError(t, manager.Execute(context.Background(), hook.PostRun, hook.RunContext("run-1", 1, 2, 3, 4)))
}

func TestExecute_ConcurrentClonesDoNotShareState(t *testing.T) {
	manager := hook.NewHookManager()
	require.NoError(t, manager.AddHook(hook.Hook{
		Type:    hook.PostFetch,
		Content: `err := resourceID != destination ? "mismatch" : ""`,
	}))

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			errs <- manager.Execute(context.Background(), hook.PostFetch, hook.FetchContext("u", id, "structured", id, false))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestAddHook_Errors(t *testing.T) {
	manager := hook.NewHookManager()

	err := manager.AddHook(hook.Hook{Content: `x := 1`})
	assert.ErrorIs(t, err, pkgerrors.ErrHookTypeEmpty)

	err = manager.AddHook(hook.Hook{Type: "pre-install", Content: `x := 1`})
	assert.Error(t, err)

	err = manager.AddHook(hook.Hook{Type: hook.PostFetch, Content: `x := (`})
	assert.ErrorIs(t, err, pkgerrors.ErrHookLoad)
	assert.False(t, manager.HasHook(hook.PostFetch))
}

func TestRemoveHook(t *testing.T) {
	manager := hook.NewHookManager()
	require.NoError(t, manager.AddHook(hook.Hook{Type: hook.PostRun, Content: `// noop`}))
	assert.True(t, manager.HasHook(hook.PostRun))

	require.NoError(t, manager.RemoveHook(hook.PostRun))
	assert.False(t, manager.HasHook(hook.PostRun))
	assert.ErrorIs(t, manager.RemoveHook(""), pkgerrors.ErrHookTypeEmpty)
}

func TestLoadHooks(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "post_run.tengo")
	require.NoError(t, os.WriteFile(scriptPath, []byte(`err := failed > 0 ? "failures" : ""`), 0644))

	manager := hook.NewHookManager()
	err := hook.LoadHooks(manager, map[hook.HookType]string{
		hook.PostFetch: `x := 1`,
		hook.PostRun:   scriptPath,
	})
	require.NoError(t, err)
	assert.True(t, manager.HasHook(hook.PostFetch))
	assert.True(t, manager.HasHook(hook.PostRun))

	err = manager.Execute(context.Background(), hook.PostRun, hook.RunContext("r", 0, 0, 0, 1))
	assert.ErrorIs(t, err, pkgerrors.ErrHookScript)

	empty := hook.NewHookManager()
	require.NoError(t, hook.LoadHooks(empty, map[hook.HookType]string{hook.PostFetch: "  "}))
	assert.False(t, empty.HasHook(hook.PostFetch))

	err = hook.LoadHooks(hook.NewHookManager(), map[hook.HookType]string{hook.PostRun: filepath.Join(dir, "missing.tengo")})
	assert.ErrorIs(t, err, pkgerrors.ErrHookLoad)
}

func TestHookTemplate(t *testing.T) {
	assert.Contains(t, hook.HookTemplate(hook.PostFetch), "resourceID")
	assert.Contains(t, hook.HookTemplate(hook.PostRun), "forceRefreshed")
	assert.Contains(t, hook.HookTemplate("other"), "Unknown hook type")

	// Templates are valid scripts.
	for _, ht := range []hook.HookType{hook.PostFetch, hook.PostRun} {
		m := hook.NewHookManager()
		require.NoError(t, m.AddHook(hook.Hook{Type: ht, Content: hook.HookTemplate(ht)}))
	}
}
