package cli

import (
	"fmt"

	"github.com/glorpus-work/fetchmirror/pkg/hook"
	"github.com/spf13/cobra"
)

// NewHooksCmd creates the hooks command with subcommands.
func NewHooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Work with hook scripts",
	}

	cmd.AddCommand(newHooksTemplateCmd())

	return cmd
}

func newHooksTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "template TYPE",
		Short:     "Print a starter script for a hook type",
		Long:      "Print a commented tengo script for post-fetch or post-run",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(hook.PostFetch), string(hook.PostRun)},
		RunE: func(cmd *cobra.Command, args []string) error {
			hookType := hook.HookType(args[0])
			if hookType != hook.PostFetch && hookType != hook.PostRun {
				return hook.ErrUnsupportedHookType(args[0])
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), hook.HookTemplate(hookType))
			return err
		},
	}

	return cmd
}
