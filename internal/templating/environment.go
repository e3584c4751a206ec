package templating

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
)

//go:embed all:templates
var embedded embed.FS

const (
	// ManifestName is the per-source manifest file listing extensions and globals.
	ManifestName = "_template.yaml"

	// BuiltinSource names the embedded default template set.
	BuiltinSource = "builtin"

	runtimeSource = "runtime"
)

// Context is the data a template is rendered against.
type Context = map[string]any

type manifest struct {
	Extensions []string       `yaml:"extensions"`
	Globals    map[string]any `yaml:"globals"`
}

type source struct {
	name     string
	fsys     fs.FS
	manifest manifest
}

type definition struct {
	source string
	fn     any
}

// HookResult is one source's answer to an Invoke fan-out.
type HookResult struct {
	Source string
	Value  any
	Err    error
}

// Environment is an ordered template search path plus helpers and globals.
type Environment struct {
	logger  *slog.Logger
	sources []*source

	mu          sync.RWMutex
	funcs       template.FuncMap
	defs        map[string][]definition
	globals     map[string]any
	cache       map[string]*template.Template
	registering string
}

type namedFS struct {
	name string
	fsys fs.FS
}

type options struct {
	logger     *slog.Logger
	noDefaults bool
	extra      []namedFS
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithoutDefaults omits the embedded default template set.
func WithoutDefaults() Option {
	return func(o *options) { o.noDefaults = true }
}

// WithSourceFS appends an fs.FS source after the directory sources.
func WithSourceFS(name string, fsys fs.FS) Option {
	return func(o *options) { o.extra = append(o.extra, namedFS{name: name, fsys: fsys}) }
}

// DefaultFS returns the embedded default template set.
func DefaultFS() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// New builds an environment over the embedded defaults followed by dirs.
func New(dirs []string, opts ...Option) (*Environment, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	env := &Environment{
		logger:  o.logger,
		defs:    map[string][]definition{},
		globals: map[string]any{},
		cache:   map[string]*template.Template{},
	}
	env.funcs = env.builtinFuncs()

	if !o.noDefaults {
		env.sources = append(env.sources, &source{name: BuiltinSource, fsys: DefaultFS()})
	}
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("template directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("template directory %s: not a directory", dir)
		}
		env.sources = append(env.sources, &source{name: dir, fsys: os.DirFS(dir)})
	}
	for _, nf := range o.extra {
		env.sources = append(env.sources, &source{name: nf.name, fsys: nf.fsys})
	}

	for _, src := range env.sources {
		if err := env.loadSource(src); err != nil {
			return nil, err
		}
	}
	env.registering = runtimeSource
	return env, nil
}

func (e *Environment) loadSource(src *source) error {
	data, err := fs.ReadFile(src.fsys, ManifestName)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		e.logger.Debug("Template source without manifest", logfields.Path(src.name))
		return nil
	case err != nil:
		return fmt.Errorf("read manifest in %s: %w", src.name, err)
	}
	if err := yaml.Unmarshal(data, &src.manifest); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidManifest, src.name, err)
	}

	maps.Copy(e.globals, src.manifest.Globals)

	seen := map[string]bool{}
	e.registering = src.name
	for _, name := range src.manifest.Extensions {
		if seen[name] {
			continue
		}
		seen[name] = true
		ext, ok := lookupExtension(name)
		if !ok {
			return fmt.Errorf("%w: %q in %s", ErrUnknownExtension, name, src.name)
		}
		if err := ext.Register(e); err != nil {
			return fmt.Errorf("extension %q in %s: %w", name, src.name, err)
		}
	}
	e.logger.Debug("Loaded template source",
		logfields.Path(src.name),
		logfields.Count(len(seen)))
	return nil
}

// Sources lists source names in lookup order.
func (e *Environment) Sources() []string {
	names := make([]string, len(e.sources))
	for i, s := range e.sources {
		names[i] = s.name
	}
	return names
}

// DefineHelper registers fn as a template function. The latest definition
// serves direct calls; every definition is kept for Invoke.
func (e *Environment) DefineHelper(name string, fn any) error {
	if _, reserved := reservedHelpers[name]; reserved {
		return fmt.Errorf("helper %q is reserved", name)
	}
	if err := validateHelper(fn); err != nil {
		return fmt.Errorf("helper %q: %w", name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.funcs[name] = fn
	e.defs[name] = append(e.defs[name], definition{source: e.registering, fn: fn})
	clear(e.cache)
	return nil
}

// SetGlobal adds a value visible to every template beneath its context.
func (e *Environment) SetGlobal(name string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.globals[name] = value
}

// global returns a global value.
func (e *Environment) global(name string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.globals[name]
	return v, ok
}

// Invoke calls every source's definition of name, in source order.
func (e *Environment) Invoke(name string, args ...any) []HookResult {
	e.mu.RLock()
	defs := append([]definition(nil), e.defs[name]...)
	e.mu.RUnlock()

	results := make([]HookResult, 0, len(defs))
	for _, d := range defs {
		v, err := call(d.fn, args)
		results = append(results, HookResult{Source: d.source, Value: v, Err: err})
	}
	return results
}

// Has reports whether a template by name exists in any source.
func (e *Environment) Has(name string) bool {
	_, _, err := e.find(name)
	return err == nil
}

// Render executes the named template against ctx.
func (e *Environment) Render(name string, ctx Context) (string, error) {
	tpl, err := e.lookup(name)
	if err != nil {
		return "", err
	}
	return e.execute(tpl, name, ctx)
}

// RenderFile renders a template read from path, bypassing the search path.
func (e *Environment) RenderFile(path string, ctx Context) (string, error) {
	// #nosec G304 -- override templates are user files in the output tree.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
		}
		return "", fmt.Errorf("read template %s: %w", path, err)
	}
	return e.RenderText(filepath.Base(path), string(data), ctx)
}

// RenderText parses and executes text as a one-off template.
func (e *Environment) RenderText(name, text string, ctx Context) (string, error) {
	tpl, err := e.parse(name, text)
	if err != nil {
		return "", err
	}
	return e.execute(tpl, name, ctx)
}

func (e *Environment) find(name string) (*source, []byte, error) {
	if !fs.ValidPath(name) {
		return nil, nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	for _, src := range e.sources {
		data, err := fs.ReadFile(src.fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read template %s from %s: %w", name, src.name, err)
		}
		return src, data, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
}

func (e *Environment) lookup(name string) (*template.Template, error) {
	e.mu.RLock()
	tpl, ok := e.cache[name]
	e.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	src, data, err := e.find(name)
	if err != nil {
		return nil, err
	}
	tpl, err = e.parse(name, string(data))
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Loaded template", logfields.Template(name), logfields.Path(src.name))

	e.mu.Lock()
	e.cache[name] = tpl
	e.mu.Unlock()
	return tpl, nil
}

func (e *Environment) parse(name, text string) (*template.Template, error) {
	e.mu.RLock()
	funcs := maps.Clone(e.funcs)
	e.mu.RUnlock()

	tpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, &RenderError{Template: name, Err: err}
	}
	return tpl, nil
}

func (e *Environment) execute(tpl *template.Template, name string, data any) (string, error) {
	if ctx, ok := data.(map[string]any); ok || data == nil {
		e.mu.RLock()
		merged := make(map[string]any, len(e.globals)+len(ctx))
		maps.Copy(merged, e.globals)
		e.mu.RUnlock()
		maps.Copy(merged, ctx)
		data = merged
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", &RenderError{Template: name, Err: err}
	}
	return buf.String(), nil
}

var errorType = reflect.TypeFor[error]()

func validateHelper(fn any) error {
	if fn == nil {
		return errors.New("nil function")
	}
	t := reflect.TypeOf(fn)
	if t.Kind() != reflect.Func {
		return fmt.Errorf("not a function: %T", fn)
	}
	switch t.NumOut() {
	case 1:
		return nil
	case 2:
		if t.Out(1) == errorType {
			return nil
		}
	}
	return errors.New("must return one value, or a value and an error")
}
