// Package config loads taxidx configuration from defaults, YAML files and
// TAXIDX_* environment variables. CLI flags are applied last by the caller.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/taxidx/internal/errors"
	"github.com/Aman-CERP/taxidx/internal/store"
)

// CurrentVersion is the config file schema version.
const CurrentVersion = 1

// ProjectFileNames are looked up in the working directory, in order.
var ProjectFileNames = []string{".taxidx.yaml", ".taxidx.yml"}

// Config represents the complete taxidx configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Ingest  IngestConfig  `yaml:"ingest" json:"ingest"`
	Bench   BenchConfig   `yaml:"bench" json:"bench"`
	UI      UIConfig      `yaml:"ui" json:"ui"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// IngestConfig configures an ingestion job.
type IngestConfig struct {
	Input  string `yaml:"input" json:"input"`
	Output string `yaml:"output" json:"output"`

	// Workers is the number of partitions read concurrently.
	Workers int `yaml:"workers" json:"workers"`

	// CommitThreshold is the number of documents a worker adds between commits.
	CommitThreshold int `yaml:"commit_threshold" json:"commit_threshold"`

	// BufferSize is the per-read chunk size in bytes.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`

	// Backend is "bleve" (default) or "sqlite".
	Backend string `yaml:"backend" json:"backend"`

	// StrictBoundaries aligns partitions to line starts. When false, the
	// boundary byte of each partition is read by both neighbours and a line
	// crossing a boundary can be indexed twice or partially.
	StrictBoundaries bool `yaml:"strict_boundaries" json:"strict_boundaries"`

	// SkipPreflight disables disk space and file descriptor checks.
	SkipPreflight bool `yaml:"skip_preflight" json:"skip_preflight"`
}

// BenchConfig configures the query benchmark.
type BenchConfig struct {
	Iterations  int     `yaml:"iterations" json:"iterations"`
	ResultSize  int     `yaml:"result_size" json:"result_size"`
	Concurrency int     `yaml:"concurrency" json:"concurrency"`
	RangeField  string  `yaml:"range_field" json:"range_field"`
	RangeMin    float64 `yaml:"range_min" json:"range_min"`
	RangeMax    float64 `yaml:"range_max" json:"range_max"`
}

// UIConfig configures progress display.
type UIConfig struct {
	NoTUI   bool   `yaml:"no_tui" json:"no_tui"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
	Quiet   bool   `yaml:"quiet" json:"quiet"`
	Spinner string `yaml:"spinner" json:"spinner"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// MetricsConfig configures the metrics textfile written after a run.
type MetricsConfig struct {
	File string `yaml:"file" json:"file"`
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Ingest: IngestConfig{
			Workers:         runtime.NumCPU(),
			CommitThreshold: 10000,
			BufferSize:      1024,
			Backend:         string(store.BackendBleve),
		},
		Bench: BenchConfig{
			Iterations:  500,
			ResultSize:  2000,
			Concurrency: 1,
			RangeField:  "totalAmount",
			RangeMin:    5,
			RangeMax:    15,
		},
		UI: UIConfig{
			Spinner: "dots",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/taxidx/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/taxidx/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "taxidx", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "taxidx", "config.yaml")
	}
	return filepath.Join(home, ".config", "taxidx", "config.yaml")
}

// Load builds the configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/taxidx/config.yaml)
//  3. path, or .taxidx.yaml in dir when path is empty
//  4. Environment variables (TAXIDX_*)
//
// The result is not validated; call Validate after applying flags.
func Load(dir, path string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if !fileExists(path) {
			return nil, errors.New(errors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file %s not found", path), nil).
				WithSuggestion("Run 'taxidx config init' to create one")
		}
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	} else if found := FindProjectConfig(dir); found != "" {
		if err := cfg.loadYAML(found); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindProjectConfig returns the first project config file in dir, or "".
func FindProjectConfig(dir string) string {
	for _, name := range ProjectFileNames {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// loadYAML decodes path over the current values, so keys absent from the
// file keep their previous value. Unknown keys are rejected.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return errors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("file", path)
	}
	return nil
}

// applyEnvOverrides applies TAXIDX_* environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"TAXIDX_WORKERS", &c.Ingest.Workers},
		{"TAXIDX_COMMIT_THRESHOLD", &c.Ingest.CommitThreshold},
		{"TAXIDX_BUFFER_SIZE", &c.Ingest.BufferSize},
	}
	for _, e := range ints {
		v, ok := os.LookupEnv(e.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("%s must be an integer, got %q", e.name, v), err)
		}
		*e.dst = n
	}

	if v := os.Getenv("TAXIDX_BACKEND"); v != "" {
		c.Ingest.Backend = v
	}
	if v := os.Getenv("TAXIDX_STRICT_BOUNDARIES"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("TAXIDX_STRICT_BOUNDARIES must be a boolean, got %q", v), err)
		}
		c.Ingest.StrictBoundaries = b
	}
	if v := os.Getenv("TAXIDX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TAXIDX_METRICS_FILE"); v != "" {
		c.Metrics.File = v
	}
	return nil
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks value ranges. Every problem is reported, not just the
// first one.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Ingest.Workers < 1 {
		result = multierror.Append(result, errors.New(errors.ErrCodeInvalidWorkers,
			fmt.Sprintf("ingest.workers must be at least 1, got %d", c.Ingest.Workers), nil))
	}
	if c.Ingest.CommitThreshold < 1 {
		result = multierror.Append(result, errors.New(errors.ErrCodeInvalidBatchSize,
			fmt.Sprintf("ingest.commit_threshold must be at least 1, got %d", c.Ingest.CommitThreshold), nil))
	}
	if c.Ingest.BufferSize < 1 {
		result = multierror.Append(result, errors.New(errors.ErrCodeInvalidBufferSize,
			fmt.Sprintf("ingest.buffer_size must be at least 1, got %d", c.Ingest.BufferSize), nil))
	}
	if _, err := store.ParseBackend(c.Ingest.Backend); err != nil {
		result = multierror.Append(result, err)
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		result = multierror.Append(result, errors.ConfigError(
			fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level), nil))
	}
	if c.Bench.Iterations < 1 || c.Bench.ResultSize < 0 || c.Bench.Concurrency < 1 {
		result = multierror.Append(result, errors.ConfigError(
			"bench.iterations and bench.concurrency must be at least 1, bench.result_size non-negative", nil))
	}
	if c.Bench.RangeMin > c.Bench.RangeMax {
		result = multierror.Append(result, errors.ConfigError(
			fmt.Sprintf("bench.range_min %g is greater than range_max %g", c.Bench.RangeMin, c.Bench.RangeMax), nil))
	}

	return result.ErrorOrNil()
}

// ValidateJob checks what an ingestion run needs beyond Validate: a
// readable regular input file and a non-empty output location.
func (c *Config) ValidateJob() error {
	var result *multierror.Error

	if err := c.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	switch info, err := os.Stat(c.Ingest.Input); {
	case c.Ingest.Input == "":
		result = multierror.Append(result, errors.New(errors.ErrCodeInputNotFound, "no input file given", nil).
			WithSuggestion("Pass the NDJSON file with --input or as the second argument"))
	case err != nil:
		result = multierror.Append(result, errors.New(errors.ErrCodeInputNotFound,
			fmt.Sprintf("input %s not found", c.Ingest.Input), err))
	case !info.Mode().IsRegular():
		result = multierror.Append(result, errors.New(errors.ErrCodeInputUnreadable,
			fmt.Sprintf("input %s is not a regular file", c.Ingest.Input), nil))
	default:
		f, err := os.Open(c.Ingest.Input)
		if err != nil {
			result = multierror.Append(result, errors.New(errors.ErrCodeInputUnreadable,
				fmt.Sprintf("input %s is not readable", c.Ingest.Input), err))
		} else {
			_ = f.Close()
		}
	}

	if strings.TrimSpace(c.Ingest.Output) == "" {
		result = multierror.Append(result, errors.New(errors.ErrCodeOutputInvalid, "no output index given", nil).
			WithSuggestion("Pass the index location with --output or as the third argument"))
	}

	return result.ErrorOrNil()
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
