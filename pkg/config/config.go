// Package config provides configuration management for fetchmirror.
// It handles loading, validating and saving the YAML configuration that
// controls batching, the concurrency budget, the staleness index and hooks.
// Command-line flags override values loaded from the file.
package config

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/fetchmirror/pkg/auth"
	"github.com/glorpus-work/fetchmirror/pkg/errors"
	"github.com/glorpus-work/fetchmirror/pkg/fsutil"
	"github.com/glorpus-work/fetchmirror/pkg/model"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Fetch    FetchConfig `yaml:"fetch"`
	Index    IndexConfig `yaml:"index"`
	Cache    CacheConfig `yaml:"cache"`
	Hooks    HookConfig  `yaml:"hooks,omitempty"`
	Settings Settings    `yaml:"settings"`
}

// FetchConfig controls batching, pacing and the HTTP client.
type FetchConfig struct {
	MinBatchSize  int           `yaml:"min_batch_size"`
	MaxBatchSize  int           `yaml:"max_batch_size"`
	MinDelay      time.Duration `yaml:"min_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	MaxConcurrent int           `yaml:"max_concurrent"`

	ContentKind string `yaml:"content_kind"` // structured | geometry
	HTTPMethod  string `yaml:"http_method"`  // GET | POST

	Timeout            time.Duration `yaml:"timeout"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	UserAgent          string        `yaml:"user_agent,omitempty"`
	RateLimit          float64       `yaml:"rate_limit"` // requests per second, 0 disables
	RateBurst          int           `yaml:"rate_burst,omitempty"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes"`
	Auth               auth.Config   `yaml:"auth,omitempty"`

	// Seed for the batch scheduler's random source; 0 seeds from the clock.
	Seed uint64 `yaml:"seed,omitempty"`
}

// IndexConfig describes where the staleness index lives and how to read it.
type IndexConfig struct {
	Path              string `yaml:"path,omitempty"`
	RecordsKey        string `yaml:"records_key"`
	IDField           string `yaml:"id_field"`
	TimestampField    string `yaml:"timestamp_field"`
	VersionConstraint string `yaml:"version_constraint"`
}

// CacheConfig lists the JSON field names searched, in order, for a cached
// record's self-reported update time.
type CacheConfig struct {
	TimestampFields []string `yaml:"timestamp_fields"`
}

// HookConfig points at optional tengo scripts.
type HookConfig struct {
	PostFetch string `yaml:"post_fetch,omitempty"`
	PostRun   string `yaml:"post_run,omitempty"`
}

// Settings represents general application settings.
type Settings struct {
	LogLevel     string `yaml:"log_level"`     // debug, info, warn, error
	OutputFormat string `yaml:"output_format"` // text, json
	MetricsFile  string `yaml:"metrics_file,omitempty"`
}

// Default configuration values.
const (
	DefaultMinBatchSize  = 5
	DefaultMaxBatchSize  = 20
	DefaultMinDelay      = 1 * time.Second
	DefaultMaxDelay      = 5 * time.Second
	DefaultMaxConcurrent = 10

	// DefaultHTTPTimeout bounds a whole request, body included.
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultUserAgent      = "fetchmirror/1.0"
	DefaultMaxBodyBytes   = 64 << 20

	DefaultRecordsKey        = "records"
	DefaultIDField           = "id"
	DefaultTimestampField    = "updated_at"
	DefaultVersionConstraint = ">= 1.0, < 2.0"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// DefaultTimestampFields is the ordered list of embedded update-time fields.
var DefaultTimestampFields = []string{
	"updated_on",
	"updatedOn",
	"app_updated_on",
	"last_updated",
	"lastUpdated",
	"updated_at",
	"modified_on",
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			MinBatchSize:   DefaultMinBatchSize,
			MaxBatchSize:   DefaultMaxBatchSize,
			MinDelay:       DefaultMinDelay,
			MaxDelay:       DefaultMaxDelay,
			MaxConcurrent:  DefaultMaxConcurrent,
			ContentKind:    string(model.KindStructured),
			HTTPMethod:     http.MethodPost,
			Timeout:        DefaultHTTPTimeout,
			ConnectTimeout: DefaultConnectTimeout,
			UserAgent:      DefaultUserAgent,
			MaxBodyBytes:   DefaultMaxBodyBytes,
		},
		Index: IndexConfig{
			RecordsKey:        DefaultRecordsKey,
			IDField:           DefaultIDField,
			TimestampField:    DefaultTimestampField,
			VersionConstraint: DefaultVersionConstraint,
		},
		Cache: CacheConfig{
			TimestampFields: append([]string(nil), DefaultTimestampFields...),
		},
		Settings: Settings{
			LogLevel:     "info",
			OutputFormat: "text",
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader. Keys absent
// from the document keep their default values.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrConfigValidation, err.Error())
	}

	return config, nil
}

// SaveConfig saves configuration to a file, replacing it atomically.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeDefault); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	tempPath := absPath + fsutil.TempSuffix
	// Auth headers may hold literal secrets.
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeSecure)
	if err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(YAMLIndent)

	if err := encoder.Encode(c); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}

	_ = encoder.Close()
	_ = file.Close()

	if err := os.Rename(tempPath, absPath); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigFileRename, err.Error())
	}

	if err := os.Chmod(absPath, fsutil.FileModeSecure); err != nil {
		return errors.Wrap(errors.ErrConfigFileChmod, err.Error())
	}

	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigMarshal, err.Error())
	}
	return data, nil
}

// applyDefaults fills in values that have no meaningful zero.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Fetch.ContentKind == "" {
		c.Fetch.ContentKind = defaults.Fetch.ContentKind
	}
	if c.Fetch.HTTPMethod == "" {
		c.Fetch.HTTPMethod = defaults.Fetch.HTTPMethod
	}
	c.Fetch.HTTPMethod = strings.ToUpper(c.Fetch.HTTPMethod)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaults.Fetch.UserAgent
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		c.Fetch.MaxBodyBytes = defaults.Fetch.MaxBodyBytes
	}
	if c.Index.RecordsKey == "" {
		c.Index.RecordsKey = defaults.Index.RecordsKey
	}
	if c.Index.IDField == "" {
		c.Index.IDField = defaults.Index.IDField
	}
	if c.Index.TimestampField == "" {
		c.Index.TimestampField = defaults.Index.TimestampField
	}
	if len(c.Cache.TimestampFields) == 0 {
		c.Cache.TimestampFields = defaults.Cache.TimestampFields
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
	if c.Settings.OutputFormat == "" {
		c.Settings.OutputFormat = defaults.Settings.OutputFormat
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if err := validateFetch(c.Fetch); err != nil {
		return err
	}
	return validateSettings(c.Settings)
}

func validateFetch(f FetchConfig) error {
	if f.MinBatchSize < 1 || f.MaxBatchSize < f.MinBatchSize {
		return fmt.Errorf("%w: min=%d max=%d", errors.ErrBatchBoundsInvalid, f.MinBatchSize, f.MaxBatchSize)
	}
	if f.MinDelay < 0 || f.MaxDelay < f.MinDelay {
		return fmt.Errorf("%w: min=%s max=%s", errors.ErrDelayBoundsInvalid, f.MinDelay, f.MaxDelay)
	}
	if f.MaxConcurrent < 1 {
		return errors.ErrMaxConcurrentInvalid
	}
	if _, err := model.ParseContentKind(f.ContentKind); err != nil {
		return err
	}
	switch strings.ToUpper(f.HTTPMethod) {
	case http.MethodGet, http.MethodPost:
	default:
		return errors.ErrInvalidHTTPMethodWithValue(f.HTTPMethod)
	}
	if f.Timeout < 0 || f.ConnectTimeout < 0 {
		return errors.ErrHTTPTimeoutNegative
	}
	if f.RateLimit < 0 {
		return errors.ErrRateLimitNegative
	}
	return f.Auth.Validate()
}

func validateSettings(s Settings) error {
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[s.OutputFormat] {
		return errors.ErrInvalidOutputFormatWithDetails(s.OutputFormat)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return errors.ErrInvalidLogLevelWithDetails(s.LogLevel)
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := fsutil.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// ContentKind returns the parsed content kind. Validate guarantees it parses.
func (c *Config) ContentKind() model.ContentKind {
	kind, err := model.ParseContentKind(c.Fetch.ContentKind)
	if err != nil {
		return model.KindStructured
	}
	return kind
}

// ToMap flattens the configuration into dotted keys for display.
func (c *Config) ToMap() map[string]string {
	return map[string]string{
		"fetch.min_batch_size":       strconv.Itoa(c.Fetch.MinBatchSize),
		"fetch.max_batch_size":       strconv.Itoa(c.Fetch.MaxBatchSize),
		"fetch.min_delay":            c.Fetch.MinDelay.String(),
		"fetch.max_delay":            c.Fetch.MaxDelay.String(),
		"fetch.max_concurrent":       strconv.Itoa(c.Fetch.MaxConcurrent),
		"fetch.content_kind":         c.Fetch.ContentKind,
		"fetch.http_method":          c.Fetch.HTTPMethod,
		"fetch.timeout":              c.Fetch.Timeout.String(),
		"fetch.connect_timeout":      c.Fetch.ConnectTimeout.String(),
		"fetch.user_agent":           c.Fetch.UserAgent,
		"fetch.rate_limit":           strconv.FormatFloat(c.Fetch.RateLimit, 'f', -1, 64),
		"fetch.insecure_skip_verify": strconv.FormatBool(c.Fetch.InsecureSkipVerify),
		"fetch.max_body_bytes":       strconv.FormatInt(c.Fetch.MaxBodyBytes, 10),
		"fetch.auth.type":            string(c.Fetch.Auth.Type),
		"index.path":                 c.Index.Path,
		"index.records_key":          c.Index.RecordsKey,
		"index.id_field":             c.Index.IDField,
		"index.timestamp_field":      c.Index.TimestampField,
		"index.version_constraint":   c.Index.VersionConstraint,
		"cache.timestamp_fields":     strings.Join(c.Cache.TimestampFields, ","),
		"hooks.post_fetch":           c.Hooks.PostFetch,
		"hooks.post_run":             c.Hooks.PostRun,
		"settings.log_level":         c.Settings.LogLevel,
		"settings.output_format":     c.Settings.OutputFormat,
		"settings.metrics_file":      c.Settings.MetricsFile,
	}
}
