// Package ext exposes sphinkydoc to a host documentation tool as a set of
// named configuration values and one callback run after the host's
// environment is initialized.
package ext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sphinkydoc/internal/caps"
	"git.home.luguber.info/inful/sphinkydoc/internal/generate"
	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
	"git.home.luguber.info/inful/sphinkydoc/internal/match"
	"git.home.luguber.info/inful/sphinkydoc/internal/pysource"
	"git.home.luguber.info/inful/sphinkydoc/internal/templating"
)

// Configuration keys registered on the host.
const (
	KeySourceDirs     = "sphinkydoc_source_dirs"
	KeyCapsLiterals   = "sphinkydoc_caps_literals"
	KeyIncluded       = "sphinkydoc_included"
	KeyAbout          = "sphinkydoc_about"
	KeyTopics         = "sphinkydoc_topics"
	KeyUnclassified   = "sphinkydoc_unclassified"
	KeyGenerateIndex  = "sphinkydoc_generate_index"
	KeyGenerateReadme = "sphinkydoc_generate_readme"
	KeyModules        = "sphinkydoc_modules"
	KeyScripts        = "sphinkydoc_scripts"

	// KeyProject is the host's own project name value.
	KeyProject = "project"
)

// EventBuilderInited fires once the host has set up its environment.
const EventBuilderInited = "builder-inited"

// ErrInvalidValue is returned when a configuration value has the wrong type.
var ErrInvalidValue = errors.New("invalid configuration value")

// Callback handles a host event.
type Callback func(ctx context.Context, h Host) error

// Host is the documentation tool hosting the extension.
type Host interface {
	// AddConfigValue registers name with a default, keeping any value the
	// user already set.
	AddConfigValue(name string, def any)
	Connect(event string, cb Callback)
	ConfigValue(name string) (any, bool)
	// SourceDir is where generated pages are written.
	SourceDir() string
	Environment() *templating.Environment
	Resolver() *pysource.Resolver
	Logger() *slog.Logger
}

// Defaults returns the value every key is registered with.
func Defaults() map[string]any {
	return map[string]any{
		KeySourceDirs:     []string{},
		KeyCapsLiterals:   append([]string(nil), caps.DefaultLiterals...),
		KeyIncluded:       append([]string(nil), caps.DefaultIncluded...),
		KeyAbout:          append([]string(nil), caps.DefaultAbout...),
		KeyTopics:         append([]string(nil), caps.DefaultTopic...),
		KeyUnclassified:   string(caps.PolicyBucket),
		KeyGenerateIndex:  true,
		KeyGenerateReadme: true,
		KeyModules:        []string{},
		KeyScripts:        []string{},
	}
}

// Setup registers the configuration keys and the builder-inited callback.
func Setup(h Host) {
	for name, def := range Defaults() {
		h.AddConfigValue(name, def)
	}
	h.Connect(EventBuilderInited, BuilderInited)
}

// Outcome is what one builder-inited run produced.
type Outcome struct {
	Caps      []caps.File
	Generated *generate.Result
	// Index is the index page path, empty when index generation is off.
	Index string
}

// BuilderInited runs Classify, Generate and RenderIndex with the host's
// configuration.
func BuilderInited(ctx context.Context, h Host) error {
	start := time.Now()
	out, err := Run(ctx, h)
	if err != nil {
		return err
	}
	h.Logger().Info("Generated documentation sources",
		logfields.Count(len(out.Caps)+len(out.Generated.Paths)),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return nil
}

// Run is BuilderInited returning what was produced.
func Run(ctx context.Context, h Host) (*Outcome, error) {
	v := values{h: h}
	sourceDirs := v.list(KeySourceDirs)
	modules := v.list(KeyModules)
	scripts := v.list(KeyScripts)
	generateIndex := v.flag(KeyGenerateIndex)
	generateReadme := v.flag(KeyGenerateReadme)
	project := v.text(KeyProject)
	if v.err != nil {
		return nil, v.err
	}

	classifier, err := newClassifier(h, v)
	if err != nil {
		return nil, err
	}
	classifier.SkipIncluded = !generateReadme

	out := &Outcome{}
	for _, dir := range sourceDirs {
		files, err := classifier.ClassifyCaps(ctx, dir, h.SourceDir())
		if err != nil {
			return nil, fmt.Errorf("classify %s: %w", dir, err)
		}
		out.Caps = append(out.Caps, files...)
	}

	gen := generate.New(h.Environment(), h.Resolver(), h.SourceDir(), generate.Options{})
	gen.Logger = h.Logger()
	out.Generated, err = gen.AllDoc(ctx, modules, scripts)
	if err != nil {
		return nil, err
	}

	if generateIndex {
		path, err := gen.IndexDoc(ctx, project, caps.Group(out.Caps), modules, scripts)
		if err != nil {
			return nil, fmt.Errorf("render index: %w", err)
		}
		out.Index = path
	}
	return out, nil
}

func newClassifier(h Host, v values) (*caps.Classifier, error) {
	c := &caps.Classifier{Env: h.Environment(), Logger: h.Logger()}
	var err error
	if c.Literals, err = v.patterns(KeyCapsLiterals); err != nil {
		return nil, err
	}
	if c.Matchers.Included, err = v.patterns(KeyIncluded); err != nil {
		return nil, err
	}
	if c.Matchers.About, err = v.patterns(KeyAbout); err != nil {
		return nil, err
	}
	if c.Matchers.Topic, err = v.patterns(KeyTopics); err != nil {
		return nil, err
	}
	policy := v.text(KeyUnclassified)
	if v.err != nil {
		return nil, v.err
	}
	if c.Policy, err = caps.ParsePolicy(policy); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidValue, KeyUnclassified, err)
	}
	return c, nil
}

// values reads typed configuration values, remembering the first error.
type values struct {
	h   Host
	err error
}

func (v *values) fail(name string, got any) {
	if v.err == nil {
		v.err = fmt.Errorf("%w: %s has type %T", ErrInvalidValue, name, got)
	}
}

func (v *values) list(name string) []string {
	raw, ok := v.h.ConfigValue(name)
	if !ok || raw == nil {
		return nil
	}
	switch t := raw.(type) {
	case []string:
		return t
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				v.fail(name, item)
				return nil
			}
			out = append(out, s)
		}
		return out
	default:
		v.fail(name, raw)
		return nil
	}
}

func (v *values) text(name string) string {
	raw, ok := v.h.ConfigValue(name)
	if !ok || raw == nil {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		v.fail(name, raw)
	}
	return s
}

func (v *values) flag(name string) bool {
	raw, ok := v.h.ConfigValue(name)
	if !ok || raw == nil {
		return false
	}
	b, ok := raw.(bool)
	if !ok {
		v.fail(name, raw)
	}
	return b
}

func (v *values) patterns(name string) (match.Set, error) {
	specs := v.list(name)
	if v.err != nil {
		return nil, v.err
	}
	set, err := match.ParseSet(specs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidValue, name, err)
	}
	return set, nil
}
