package cli

import (
	"fmt"

	"github.com/glorpus-work/fetchmirror/internal/logger"
	"github.com/glorpus-work/fetchmirror/pkg/config"
	"github.com/glorpus-work/fetchmirror/pkg/hook"
	"github.com/glorpus-work/fetchmirror/pkg/index"
)

// These variables will be set by the main package
var (
	ConfigPath   *string
	Verbose      *bool
	OutputFormat *string
)

// loadConfig loads the configuration, applies the global flags and
// initializes the logger from the result.
func loadConfig() (*config.Config, error) {
	path := getConfigPath()
	if path == "" {
		return nil, fmt.Errorf("failed to get default config path")
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with CLI flags if provided
	if OutputFormat != nil && *OutputFormat != "" {
		cfg.Settings.OutputFormat = *OutputFormat
	}
	if Verbose != nil && *Verbose {
		cfg.Settings.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	initLogger(cfg)
	return cfg, nil
}

func initLogger(cfg *config.Config) {
	format := logger.FormatText
	if cfg.Settings.OutputFormat == "json" {
		format = logger.FormatJSON
	}
	logger.InitLogger(cfg.Settings.LogLevel, format)
}

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}

	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		logger.Warn("Failed to get default config path, using empty path", logger.Fields{"error": err})
		return ""
	}
	return defaultPath
}

func indexOptions(cfg *config.Config) index.Options {
	return index.Options{
		RecordsKey:        cfg.Index.RecordsKey,
		IDField:           cfg.Index.IDField,
		TimestampField:    cfg.Index.TimestampField,
		VersionConstraint: cfg.Index.VersionConstraint,
	}
}

// loadHooks returns nil when no hook is configured.
func loadHooks(cfg *config.Config) (*hook.DefaultHookManager, error) {
	if cfg.Hooks.PostFetch == "" && cfg.Hooks.PostRun == "" {
		return nil, nil
	}
	manager := hook.NewHookManager()
	err := hook.LoadHooks(manager, map[hook.HookType]string{
		hook.PostFetch: cfg.Hooks.PostFetch,
		hook.PostRun:   cfg.Hooks.PostRun,
	})
	if err != nil {
		return nil, err
	}
	return manager, nil
}
