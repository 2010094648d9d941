package hook

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/fetchmirror/pkg/errors"
)

// HookFileExtension marks a configured hook value as a script path rather
// than inline source.
const HookFileExtension = ".tengo"

// LoadHooks registers the configured hooks. Each value is either inline
// Tengo source or the path of a .tengo file. Empty values are ignored.
func LoadHooks(manager HookManager, scripts map[HookType]string) error {
	for hookType, value := range scripts {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		content, err := resolveScript(value)
		if err != nil {
			return errors.Wrapf(errors.ErrHookLoad, "%s: %v", hookType, err)
		}
		if err := manager.AddHook(Hook{Type: hookType, Content: content}); err != nil {
			return err
		}
	}
	return nil
}

func resolveScript(value string) (string, error) {
	if !strings.HasSuffix(value, HookFileExtension) || strings.ContainsAny(value, "\n;") {
		return value, nil
	}
	data, err := os.ReadFile(filepath.Clean(value))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// HookTemplate generates a template for a hook script.
func HookTemplate(hookType HookType) string {
	switch hookType {
	case PostFetch:
		return `// Post-fetch hook
// Runs after each artifact is committed to its destination.
// Available variables:
// - locator: string - URL the artifact was fetched from
// - destination: string - path of the committed artifact
// - kind: string - "structured" or "geometry"
// - resourceID: string - destination base name without extension
// - forced: bool - true when the staleness index forced the refresh
//
// Set err to a non-empty string to report a problem. The fetch itself
// is never undone.

// Example: record refreshed records for a downstream parse step
/*
fmt := import("fmt")
if forced {
    fmt.println("refreshed ", resourceID)
}
*/`

	case PostRun:
		return `// Post-run hook
// Runs once after the run summary is computed.
// Available variables:
// - runID: string
// - fetched, skipped, forceRefreshed, failed, total: int

// Example: fail loudly when nothing could be fetched
/*
if failed > 0 && fetched == 0 && forceRefreshed == 0 {
    err := "every fetch failed"
}
*/`

	default:
		return "// Unknown hook type: " + string(hookType)
	}
}
