package config

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/sphinkydoc/internal/caps"
)

const (
	defaultOutputDir        = "docs"
	defaultDocExt           = "rst"
	defaultPython           = "python3"
	defaultSphinxBuild      = "sphinx-build"
	defaultHTMLTheme        = "alabaster"
	defaultHelpTimeout      = 10 * time.Second
	defaultBuildTimeout     = 10 * time.Minute
	defaultValidateTimeout  = 30 * time.Second
	defaultDebounce         = 500 * time.Millisecond
	defaultLogLevel         = "info"
	defaultUnclassifiedMode = "bucket"
)

// DefaultSphinxArgs are passed to the build tool from inside the working dir.
var DefaultSphinxArgs = []string{"-b", "html", ".", "../html"}

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// ApplyDefaults runs every domain applier in order.
func ApplyDefaults(cfg *Config) error {
	appliers := []DefaultApplier{
		&pathsDefaultApplier{},
		&capsDefaultApplier{},
		&generateDefaultApplier{},
		&sphinxDefaultApplier{},
		&validationDefaultApplier{},
		&ambientDefaultApplier{},
	}
	for _, a := range appliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("%s defaults: %w", a.Domain(), err)
		}
	}
	return nil
}

type pathsDefaultApplier struct{}

func (pathsDefaultApplier) Domain() string { return "paths" }

func (pathsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaultOutputDir
	}
	if len(cfg.PythonPath) == 0 {
		cfg.PythonPath = []string{"."}
	}
	return nil
}

type capsDefaultApplier struct{}

func (capsDefaultApplier) Domain() string { return "caps" }

// Nil lists take the defaults; an explicit empty list disables the category.
func (capsDefaultApplier) ApplyDefaults(cfg *Config) error {
	c := &cfg.Caps
	if c.Dir == "" {
		c.Dir = "."
	}
	if c.Literals == nil {
		c.Literals = append([]string(nil), caps.DefaultLiterals...)
	}
	if c.Included == nil {
		c.Included = append([]string(nil), caps.DefaultIncluded...)
	}
	if c.About == nil {
		c.About = append([]string(nil), caps.DefaultAbout...)
	}
	if c.Topics == nil {
		c.Topics = append([]string(nil), caps.DefaultTopic...)
	}
	if c.Unclassified == "" {
		c.Unclassified = defaultUnclassifiedMode
	}
	if c.IncludedExt == "" {
		c.IncludedExt = caps.DefaultIncludedExt
	}
	return nil
}

type generateDefaultApplier struct{}

func (generateDefaultApplier) Domain() string { return "generate" }

func (generateDefaultApplier) ApplyDefaults(cfg *Config) error {
	g := &cfg.Generate
	if g.Jobs <= 0 {
		g.Jobs = 1
	}
	if g.DocExt == "" {
		g.DocExt = defaultDocExt
	}
	if g.HelpTimeout <= 0 {
		g.HelpTimeout = defaultHelpTimeout
	}
	if g.Python == "" {
		g.Python = defaultPython
	}
	return nil
}

type sphinxDefaultApplier struct{}

func (sphinxDefaultApplier) Domain() string { return "sphinx" }

func (sphinxDefaultApplier) ApplyDefaults(cfg *Config) error {
	s := &cfg.Sphinx
	if s.Build == "" {
		s.Build = defaultSphinxBuild
	}
	if len(s.Args) == 0 {
		s.Args = append([]string(nil), DefaultSphinxArgs...)
	}
	if s.Timeout <= 0 {
		s.Timeout = defaultBuildTimeout
	}
	if s.HTMLTheme == "" {
		s.HTMLTheme = defaultHTMLTheme
	}
	return nil
}

type validationDefaultApplier struct{}

func (validationDefaultApplier) Domain() string { return "validation" }

func (validationDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Validation.Timeout <= 0 {
		cfg.Validation.Timeout = defaultValidateTimeout
	}
	return nil
}

type ambientDefaultApplier struct{}

func (ambientDefaultApplier) Domain() string { return "ambient" }

func (ambientDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = defaultDebounce
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogLevel
	}
	return nil
}
