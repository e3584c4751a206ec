package config

import (
	"errors"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/sphinkydoc/internal/caps"
	"git.home.luguber.info/inful/sphinkydoc/internal/match"
	"git.home.luguber.info/inful/sphinkydoc/internal/pysource"
)

// ValidateConfig validates a configuration after defaults were applied.
func ValidateConfig(cfg *Config) error {
	return newConfigurationValidator(cfg).validate()
}

type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateModules(); err != nil {
		return err
	}
	if err := cv.validatePaths(); err != nil {
		return err
	}
	if err := cv.validateCaps(); err != nil {
		return err
	}
	if err := cv.validateGenerate(); err != nil {
		return err
	}
	return cv.validateLogging()
}

func (cv *configurationValidator) validateModules() error {
	seen := make(map[string]bool, len(cv.config.Modules))
	for _, name := range cv.config.Modules {
		if err := pysource.ValidateName(name); err != nil {
			return fmt.Errorf("modules: %w", err)
		}
		if seen[name] {
			return fmt.Errorf("duplicate module: %s", name)
		}
		seen[name] = true
	}
	for _, s := range cv.config.Scripts {
		if strings.TrimSpace(s) == "" {
			return errors.New("scripts: empty path")
		}
	}
	return nil
}

func (cv *configurationValidator) validatePaths() error {
	if strings.TrimSpace(cv.config.OutputDir) == "" {
		return errors.New("output_dir cannot be empty")
	}
	for _, p := range cv.config.PythonPath {
		if strings.TrimSpace(p) == "" {
			return errors.New("python_path: empty entry")
		}
	}
	return nil
}

func (cv *configurationValidator) validateCaps() error {
	c := cv.config.Caps
	lists := []struct {
		key   string
		specs []string
	}{
		{"caps.literals", c.Literals},
		{"caps.included", c.Included},
		{"caps.about", c.About},
		{"caps.topics", c.Topics},
	}
	for _, l := range lists {
		if _, err := match.ParseSet(l.specs); err != nil {
			return fmt.Errorf("%s: %w", l.key, err)
		}
	}
	if _, err := caps.ParsePolicy(c.Unclassified); err != nil {
		return fmt.Errorf("caps.unclassified: %w", err)
	}
	if strings.ContainsAny(c.IncludedExt, `/\`) {
		return fmt.Errorf("caps.included_ext: invalid extension %q", c.IncludedExt)
	}
	return nil
}

func (cv *configurationValidator) validateGenerate() error {
	g := cv.config.Generate
	if strings.ContainsAny(g.DocExt, `/\`) {
		return fmt.Errorf("generate.doc_ext: invalid extension %q", g.DocExt)
	}
	if strings.TrimPrefix(g.DocExt, ".") == cv.config.Caps.IncludedExt {
		return fmt.Errorf("generate.doc_ext and caps.included_ext must differ (both %q)", cv.config.Caps.IncludedExt)
	}
	if g.Jobs > 64 {
		return fmt.Errorf("generate.jobs: %d exceeds the maximum of 64", g.Jobs)
	}
	return nil
}

func (cv *configurationValidator) validateLogging() error {
	_, err := logLevels.NormalizeWithError(cv.config.Logging.Level)
	return err
}

// Matchers builds the caps category matchers from the validated pattern lists.
func (c CapsConfig) Matchers() (caps.Matchers, error) {
	var m caps.Matchers
	var err error
	if m.Included, err = match.ParseSet(c.Included); err != nil {
		return m, err
	}
	if m.About, err = match.ParseSet(c.About); err != nil {
		return m, err
	}
	if m.Topic, err = match.ParseSet(c.Topics); err != nil {
		return m, err
	}
	return m, nil
}

// LiteralSet parses the literal-rendering patterns.
func (c CapsConfig) LiteralSet() (match.Set, error) {
	return match.ParseSet(c.Literals)
}

// Policy parses the unclassified policy.
func (c CapsConfig) Policy() (caps.UnclassifiedPolicy, error) {
	return caps.ParsePolicy(c.Unclassified)
}
