package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"git.home.luguber.info/inful/sphinkydoc/internal/caps"
	"git.home.luguber.info/inful/sphinkydoc/internal/config"
	dberrors "git.home.luguber.info/inful/sphinkydoc/internal/foundation/errors"
	"git.home.luguber.info/inful/sphinkydoc/internal/generate"
	"git.home.luguber.info/inful/sphinkydoc/internal/pysource"
	"git.home.luguber.info/inful/sphinkydoc/internal/templating"
)

// DiscoverCmd implements the 'discover' command.
type DiscoverCmd struct {
	CapsDir      string   `name:"caps-dir" help:"Directory holding caps files"`
	PythonPath   []string `short:"p" name:"python-path" help:"Directory searched for modules (repeatable)"`
	TemplateDirs []string `short:"t" name:"template-dir" help:"Directory with template overrides (repeatable)"`
}

func (d *DiscoverCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if d.CapsDir != "" {
		cfg.Caps.Dir = d.CapsDir
	}
	if len(d.PythonPath) > 0 {
		cfg.PythonPath = d.PythonPath
	}
	if len(d.TemplateDirs) > 0 {
		cfg.Templates.Dirs = d.TemplateDirs
	}
	env, err := templating.New(cfg.Templates.Dirs, templating.WithLogger(g.Logger))
	if err != nil {
		return dberrors.WrapError(err, dberrors.CategoryTemplate, "failed to create template environment").Fatal().Build()
	}
	return RunDiscover(g.Stdout, cfg, pysource.NewResolver(cfg.PythonPath, g.Logger), env)
}

// RunDiscover prints the caps classification, the modules (configured, or
// found on the python path), the scripts and the template sources.
func RunDiscover(out io.Writer, cfg *config.Config, resolver *pysource.Resolver, env *templating.Environment) error {
	matchers, err := cfg.Caps.Matchers()
	if err != nil {
		return dberrors.WrapError(err, dberrors.CategoryConfig, "invalid caps patterns").Fatal().Build()
	}
	literals, err := cfg.Caps.LiteralSet()
	if err != nil {
		return dberrors.WrapError(err, dberrors.CategoryConfig, "invalid caps literals").Fatal().Build()
	}

	entries, err := os.ReadDir(cfg.Caps.Dir)
	if err != nil {
		return dberrors.WrapError(err, dberrors.CategoryFileSystem, "failed to list caps directory").
			WithContext("path", cfg.Caps.Dir).Fatal().Build()
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Caps files in %s:\n", cfg.Caps.Dir)
	for _, e := range entries {
		if e.IsDir() || !caps.IsCapsName(e.Name()) {
			continue
		}
		base := caps.BaseName(e.Name(), cfg.Generate.DocExt)
		category := matchers.Classify(base)
		if category == caps.CategoryUnclassified && cfg.Caps.Unclassified == string(caps.PolicyDrop) {
			category = "dropped"
		}
		if category == caps.CategoryIncluded && !cfg.ReadmeEnabled() {
			category = "skipped"
		}
		mode := "prose"
		if literals.Match(base) {
			mode = "literal"
		} else if ext := strings.ToLower(filepath.Ext(e.Name())); ext == ".md" || ext == ".markdown" {
			mode = "markdown"
		}
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\n", e.Name(), category, mode)
	}

	modules := cfg.Modules
	source := "configured"
	if len(modules) == 0 {
		source = "found"
		for _, dir := range resolver.Paths() {
			found, err := pysource.FindModules(dir)
			if err != nil {
				return dberrors.WrapError(err, dberrors.CategoryFileSystem, "failed to list python path").
					WithContext("path", dir).Fatal().Build()
			}
			modules = append(modules, found...)
		}
	}
	_, _ = fmt.Fprintf(tw, "Modules (%s):\n", source)
	for _, name := range modules {
		m, err := resolver.Resolve(name)
		if err != nil {
			_, _ = fmt.Fprintf(tw, "  %s\tunresolved\t%v\n", name, err)
			continue
		}
		kind := "module"
		if m.IsPackage {
			kind = "package"
		}
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\n", name, kind, m.Path)
	}

	_, _ = fmt.Fprintln(tw, "Scripts:")
	for _, s := range cfg.Scripts {
		head, err := readHead(s)
		if err != nil {
			_, _ = fmt.Fprintf(tw, "  %s\tunreadable\t%v\n", s, err)
			continue
		}
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t\n", s, generate.DetectScriptLang(s, head))
	}

	_, _ = fmt.Fprintln(tw, "Template sources (lookup order):")
	for _, src := range env.Sources() {
		_, _ = fmt.Fprintf(tw, "  %s\n", src)
	}
	return tw.Flush()
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path) // #nosec G304 -- scripts come from the configuration
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	buf := make([]byte, 256)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}
