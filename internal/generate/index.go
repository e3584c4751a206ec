package generate

import (
	"context"
	"path/filepath"

	"git.home.luguber.info/inful/sphinkydoc/internal/caps"
	"git.home.luguber.info/inful/sphinkydoc/internal/templating"
)

// IndexName is the base name of the master document.
const IndexName = "index"

// IndexDoc renders the master index page from the categorized pages and
// the root modules and scripts.
func (g *Generator) IndexDoc(ctx context.Context, project string, cats caps.Categories, modules, scripts []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tctx := templating.Context(cats.Context())
	tctx["project"] = project
	tctx["modules"] = nonNil(modules)

	names := make([]string, 0, len(scripts))
	for _, s := range scripts {
		names = append(names, filepath.Base(s))
	}
	tctx["scripts"] = names

	content, err := g.Env.Render(IndexTemplate, tctx)
	if err != nil {
		return "", g.fail(KindIndex, IndexName, err)
	}
	path, err := g.write(KindIndex, g.docName(IndexName), content)
	if err != nil {
		return "", generationError(KindIndex, IndexName, err)
	}
	return path, nil
}

// Conf is the data written into conf.py.
type Conf struct {
	Project         string
	Copyright       string
	Version         string
	Release         string
	Extensions      []string
	SysPath         []string
	MasterDoc       string
	ExcludePatterns []string
	HTMLTheme       string
}

// DefaultExtensions are the Sphinx extensions every generated conf.py loads.
var DefaultExtensions = []string{
	"sphinx.ext.autodoc",
	"sphinx.ext.autosummary",
	"sphinx.ext.viewcode",
	"sphinx.ext.todo",
}

// Context returns the conf.py template context.
func (c Conf) Context(docExt string) templating.Context {
	master := c.MasterDoc
	if master == "" {
		master = IndexName
	}
	theme := c.HTMLTheme
	if theme == "" {
		theme = "alabaster"
	}
	exts := c.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	exclude := c.ExcludePatterns
	if exclude == nil {
		exclude = []string{"_build", "html", "*.inc"}
	}
	return templating.Context{
		"project":          c.Project,
		"copyright":        c.Copyright,
		"version":          c.Version,
		"release":          c.Release,
		"extensions":       exts,
		"sys_path":         nonNil(c.SysPath),
		"master_doc":       master,
		"exclude_patterns": exclude,
		"html_theme":       theme,
		"doc_ext":          docExt,
	}
}

// ConfigName is the Sphinx configuration file written by ConfigDoc.
const ConfigName = "conf.py"

// ConfigDoc renders conf.py.
func (g *Generator) ConfigDoc(ctx context.Context, conf Conf) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := g.Env.Render(ConfigTemplate, conf.Context(g.opts().DocExt))
	if err != nil {
		return "", g.fail(KindConfig, ConfigName, err)
	}
	path, err := g.write(KindConfig, ConfigName, content)
	if err != nil {
		return "", generationError(KindConfig, ConfigName, err)
	}
	return path, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
