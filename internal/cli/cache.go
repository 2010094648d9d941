package cli

import (
	"fmt"

	"github.com/glorpus-work/fetchmirror/internal/logger"
	"github.com/glorpus-work/fetchmirror/pkg/cache"
	"github.com/glorpus-work/fetchmirror/pkg/manifest"
	"github.com/spf13/cobra"
)

// NewCacheCmd creates the cache command with subcommands
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clean the local mirror",
		Long:  "Show information about, and clean up, the artifacts a manifest points at",
	}

	cmd.AddCommand(
		newCacheInfoCmd(),
		newCacheCleanCmd(),
	)

	return cmd
}

func newCacheInfoCmd() *cobra.Command {
	var contentKind string

	cmd := &cobra.Command{
		Use:   "info MANIFEST",
		Short: "Show mirror information",
		Long:  "Count valid, invalid and missing artifacts without fetching anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheInfo(cmd, args[0], contentKind)
		},
	}

	cmd.Flags().StringVar(&contentKind, "content-kind", "", "Expected content kind (structured, geometry)")

	return cmd
}

func newCacheCleanCmd() *cobra.Command {
	var (
		contentKind string
		invalid     bool
	)

	cmd := &cobra.Command{
		Use:   "clean MANIFEST",
		Short: "Clean the mirror",
		Long:  "Remove temp files left by interrupted writes and, optionally, artifacts that fail validation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheClean(cmd, args[0], contentKind, invalid)
		},
	}

	cmd.Flags().StringVar(&contentKind, "content-kind", "", "Expected content kind (structured, geometry)")
	cmd.Flags().BoolVar(&invalid, "invalid", false, "Also remove artifacts that fail validation")

	return cmd
}

func loadMirror(cmd *cobra.Command, manifestPath, contentKind string) (*cache.Validator, *manifest.Result, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if contentKind != "" {
		cfg.Fetch.ContentKind = contentKind
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	parsed, err := manifest.ReadFile(cmd.Context(), manifestPath, cfg.ContentKind())
	if err != nil {
		return nil, nil, err
	}
	return cache.NewValidator(cfg.Cache.TimestampFields), parsed, nil
}

func runCacheInfo(cmd *cobra.Command, manifestPath, contentKind string) error {
	validator, parsed, err := loadMirror(cmd, manifestPath, contentKind)
	if err != nil {
		return err
	}

	info := validator.GetInfo(parsed.Tasks)
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Artifacts: %d (%s)\n", info.Artifacts, cache.FormatBytes(info.TotalSize))
	_, _ = fmt.Fprintf(out, "Valid: %d\n", info.Valid)
	_, _ = fmt.Fprintf(out, "Invalid: %d\n", info.Invalid)
	_, _ = fmt.Fprintf(out, "Missing: %d\n", info.Missing)
	_, _ = fmt.Fprintf(out, "Temp files: %d\n", info.TempFiles)

	return nil
}

func runCacheClean(cmd *cobra.Command, manifestPath, contentKind string, invalid bool) error {
	validator, parsed, err := loadMirror(cmd, manifestPath, contentKind)
	if err != nil {
		return err
	}

	result, err := validator.Clean(parsed.Tasks, invalid)
	if err != nil {
		return err
	}

	if result.TempFiles > 0 {
		logger.Info("Removed leftover temp files", logger.Fields{"count": result.TempFiles})
	}
	if result.Invalid > 0 {
		logger.Info("Removed invalid artifacts", logger.Fields{"count": result.Invalid})
	}

	logger.Success("Mirror cleaning completed", logger.Fields{"total_freed": cache.FormatBytes(result.Freed)})
	return nil
}
