package pysource

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const initFile = "__init__.py"

// Module is a resolved Python module or package.
type Module struct {
	Name      string
	Path      string
	Dir       string
	IsPackage bool
}

// Resolver finds modules on a search path, like sys.path.
type Resolver struct {
	paths  []string
	logger *slog.Logger
}

// NewResolver returns a resolver over paths in priority order.
func NewResolver(paths []string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	clean := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			clean = append(clean, filepath.Clean(p))
		}
	}
	return &Resolver{paths: clean, logger: logger}
}

// Paths returns the search path.
func (r *Resolver) Paths() []string { return append([]string(nil), r.paths...) }

// ValidateName checks that every dotted part is a Python identifier.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidModuleName)
	}
	for _, part := range strings.Split(name, ".") {
		if !isIdentifier(part) {
			return fmt.Errorf("%w: %q", ErrInvalidModuleName, name)
		}
	}
	return nil
}

// Resolve locates a dotted module name.
func (r *Resolver) Resolve(name string) (*Module, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	parts := strings.Split(name, ".")
	for _, root := range r.paths {
		if m, ok := resolveIn(root, name, parts); ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
}

func resolveIn(root, name string, parts []string) (*Module, bool) {
	parent := filepath.Join(append([]string{root}, parts[:len(parts)-1]...)...)
	if len(parts) > 1 && !isDir(parent) {
		return nil, false
	}
	last := parts[len(parts)-1]

	pkgDir := filepath.Join(parent, last)
	if isFile(filepath.Join(pkgDir, initFile)) {
		return &Module{Name: name, Path: filepath.Join(pkgDir, initFile), Dir: pkgDir, IsPackage: true}, true
	}
	if file := filepath.Join(parent, last+".py"); isFile(file) {
		return &Module{Name: name, Path: file, Dir: parent}, true
	}
	return nil, false
}

// Submodules lists the importable children of a package, sorted by name.
// Plain modules have none.
func (r *Resolver) Submodules(m *Module) ([]string, error) {
	if !m.IsPackage {
		return nil, nil
	}
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		return nil, fmt.Errorf("list package %s: %w", m.Name, err)
	}
	seen := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir():
			if isIdentifier(name) && isFile(filepath.Join(m.Dir, name, initFile)) {
				seen[name] = true
			}
		case strings.HasSuffix(name, ".py") && name != initFile:
			if base := strings.TrimSuffix(name, ".py"); isIdentifier(base) {
				seen[base] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// ReadSource returns the module's source bytes.
func (m *Module) ReadSource() ([]byte, error) {
	// #nosec G304 -- module paths come from resolving names on the configured search path.
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, fmt.Errorf("read module %s: %w", m.Name, err)
	}
	return data, nil
}

// Package returns the package a relative import in m is anchored at.
func (m *Module) Package() string {
	if m.IsPackage {
		return m.Name
	}
	if i := strings.LastIndex(m.Name, "."); i >= 0 {
		return m.Name[:i]
	}
	return ""
}

// AbsoluteImport turns a possibly relative module reference (".x", "..y.z")
// into a dotted name anchored at m.
func (m *Module) AbsoluteImport(ref string) (string, error) {
	level := len(ref) - len(strings.TrimLeft(ref, "."))
	if level == 0 {
		return ref, nil
	}
	base := m.Package()
	for i := 1; i < level; i++ {
		j := strings.LastIndex(base, ".")
		if j < 0 {
			return "", errors.New("relative import beyond top-level package")
		}
		base = base[:j]
	}
	rest := ref[level:]
	switch {
	case base == "":
		return "", errors.New("relative import outside a package")
	case rest == "":
		return base, nil
	default:
		return base + "." + rest, nil
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FindModules lists top-level modules and packages in dir. Used by
// discovery when no modules are configured.
func FindModules(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir():
			if isIdentifier(name) && isFile(filepath.Join(dir, name, initFile)) {
				out = append(out, name)
			}
		case strings.HasSuffix(name, ".py"):
			base := strings.TrimSuffix(name, ".py")
			if isIdentifier(base) && base != "setup" && base != "conftest" && !strings.HasPrefix(base, "_") {
				out = append(out, base)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
