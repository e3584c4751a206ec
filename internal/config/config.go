// Package config loads and validates the sphinkydoc.yaml configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sphinkydoc/internal/caps"
	"git.home.luguber.info/inful/sphinkydoc/internal/foundation/normalization"
)

// CurrentVersion is the configuration format version.
const CurrentVersion = "1"

// DefaultPath is the configuration file looked for by the CLI.
const DefaultPath = "sphinkydoc.yaml"

// ErrNotFound indicates a missing configuration file.
var ErrNotFound = errors.New("configuration file not found")

// Config represents the complete sphinkydoc configuration.
type Config struct {
	Version string `yaml:"version"`
	// Modules are the root Python modules or packages to document.
	Modules []string `yaml:"modules"`
	// Scripts are paths of command-line scripts to document.
	Scripts []string `yaml:"scripts,omitempty"`
	// PythonPath is the module search path.
	PythonPath []string `yaml:"python_path,omitempty"`
	// OutputDir holds hand-written docs, the _temp working dir and html.
	OutputDir string `yaml:"output_dir"`
	// DocsDir is an additional documentation tree copied into the working dir.
	DocsDir string `yaml:"docs_dir,omitempty"`

	Project    ProjectConfig    `yaml:"project,omitempty"`
	Caps       CapsConfig       `yaml:"caps"`
	Templates  TemplatesConfig  `yaml:"templates,omitempty"`
	Generate   GenerateConfig   `yaml:"generate"`
	Sphinx     SphinxConfig     `yaml:"sphinx"`
	Validation ValidationConfig `yaml:"validation"`
	Watch      WatchConfig      `yaml:"watch,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Metrics    MetricsConfig    `yaml:"metrics,omitempty"`
}

// ProjectConfig overrides project metadata written into conf.py.
type ProjectConfig struct {
	Name      string `yaml:"name,omitempty"`
	Copyright string `yaml:"copyright,omitempty"`
	Version   string `yaml:"version,omitempty"`
	Release   string `yaml:"release,omitempty"`
}

// CapsConfig controls classification of caps files (README, COPYING, ...).
// Pattern entries are literal names, "re:<regex>" or "glob:<pattern>".
type CapsConfig struct {
	Dir      string   `yaml:"dir"`
	Literals []string `yaml:"literals"`
	Included []string `yaml:"included"`
	About    []string `yaml:"about"`
	Topics   []string `yaml:"topics"`
	// Unclassified is "bucket" or "drop".
	Unclassified string `yaml:"unclassified"`
	IncludedExt  string `yaml:"included_ext"`
	// Readme toggles rendering of files in the included category.
	Readme *bool `yaml:"readme,omitempty"`
}

// TemplatesConfig locates user templates.
type TemplatesConfig struct {
	// Dirs are searched after the built-in templates, in order.
	Dirs []string `yaml:"dirs,omitempty"`
	// Skeleton replaces the built-in skeleton copied into the working dir.
	Skeleton string `yaml:"skeleton,omitempty"`
}

// GenerateConfig tunes document generation.
type GenerateConfig struct {
	Overwrite   bool          `yaml:"overwrite"`
	Jobs        int           `yaml:"jobs"`
	DocExt      string        `yaml:"doc_ext"`
	HelpTimeout time.Duration `yaml:"help_timeout"`
	Python      string        `yaml:"python"`
	Index       *bool         `yaml:"index,omitempty"`
}

// SphinxConfig describes the external build tool and conf.py contents.
type SphinxConfig struct {
	Build      string        `yaml:"build"`
	Args       []string      `yaml:"args"`
	Timeout    time.Duration `yaml:"timeout"`
	Extensions []string      `yaml:"extensions,omitempty"`
	HTMLTheme  string        `yaml:"html_theme"`
	// CleanTemp removes the working directory after a successful build.
	CleanTemp bool `yaml:"clean_temp,omitempty"`
}

// ValidationConfig controls the check of the generated conf.py.
type ValidationConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
	// WithPython additionally byte-compiles conf.py with the interpreter.
	WithPython bool          `yaml:"with_python"`
	Timeout    time.Duration `yaml:"timeout"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig sets the log level (debug, info, warn, error).
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}

var logLevels = normalization.NewNormalizer("logging.level", map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}, slog.LevelInfo)

// SlogLevel returns the configured level; unknown names mean info.
func (l LoggingConfig) SlogLevel() slog.Level {
	return logLevels.Normalize(l.Level)
}

// MetricsConfig enables a Prometheus textfile export at exit.
type MetricsConfig struct {
	File string `yaml:"file,omitempty"`
}

// IndexEnabled reports whether index.rst is generated.
func (c *Config) IndexEnabled() bool { return c.Generate.Index == nil || *c.Generate.Index }

// ReadmeEnabled reports whether included caps files are rendered.
func (c *Config) ReadmeEnabled() bool { return c.Caps.Readme == nil || *c.Caps.Readme }

// ValidationEnabled reports whether conf.py is validated before the build.
func (c *Config) ValidationEnabled() bool {
	return c.Validation.Enabled == nil || *c.Validation.Enabled
}

// Load reads a configuration file. Variables from .env and .env.local are
// loaded first, then ${VAR} references in the file are expanded. Defaults
// are applied and the result validated.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	// #nosec G304 -- the configuration path is chosen by the user.
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, configPath)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}
	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported configuration version: %s (expected %s)", cfg.Version, CurrentVersion)
	}
	if err := ApplyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied; used when
// no configuration file exists.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	_ = ApplyDefaults(cfg)
	return cfg
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Version:    CurrentVersion,
		Modules:    []string{"mypackage"},
		Scripts:    []string{"scripts/mytool.py"},
		PythonPath: []string{"src"},
		OutputDir:  "docs",
		Project: ProjectConfig{
			Name: "My Project",
		},
		Caps: CapsConfig{
			Dir:          ".",
			Literals:     append([]string(nil), caps.DefaultLiterals...),
			Included:     append([]string(nil), caps.DefaultIncluded...),
			About:        append([]string(nil), caps.DefaultAbout...),
			Topics:       append([]string(nil), caps.DefaultTopic...),
			Unclassified: "bucket",
		},
		Generate: GenerateConfig{
			Jobs:        1,
			HelpTimeout: defaultHelpTimeout,
		},
		Sphinx: SphinxConfig{
			Build:     "sphinx-build",
			Timeout:   defaultBuildTimeout,
			HTMLTheme: "alabaster",
		},
		Watch: WatchConfig{Debounce: defaultDebounce},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}
	header := "# sphinkydoc configuration\n# Values may reference environment variables as ${VAR}.\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
