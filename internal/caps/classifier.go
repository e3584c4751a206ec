package caps

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
	"git.home.luguber.info/inful/sphinkydoc/internal/match"
	"git.home.luguber.info/inful/sphinkydoc/internal/templating"
)

const (
	LiteralTemplate = "sphinkydoc/caps_literal.rst"
	ProseTemplate   = "sphinkydoc/caps_prose.rst"

	DefaultDocExt      = "rst"
	DefaultIncludedExt = "inc"
)

// Classifier turns caps files into documentation pages.
type Classifier struct {
	Env      *templating.Environment
	Matchers Matchers
	// Literals names base names rendered as preformatted blocks. Markdown
	// files are always literal.
	Literals    match.Set
	Policy      UnclassifiedPolicy
	DocExt      string
	IncludedExt string
	// SkipIncluded leaves included-category files unrendered and unindexed.
	SkipIncluded bool
	Overwrite    bool
	DryRun       bool
	Logger       *slog.Logger
}

func (c *Classifier) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Classifier) docExt() string {
	if c.DocExt == "" {
		return DefaultDocExt
	}
	return strings.TrimPrefix(c.DocExt, ".")
}

func (c *Classifier) includedExt() string {
	if c.IncludedExt == "" {
		return DefaultIncludedExt
	}
	return strings.TrimPrefix(c.IncludedExt, ".")
}

// ClassifyCaps lists sourceDir (non-recursively), renders every caps file
// into outputDir and returns the pages in listing order.
//
// An existing page is kept unless Overwrite is set. Pages in the included
// category get the included extension so the doc tool does not treat
// them as standalone documents. A listing failure is returned; a failure
// on a single file is logged and the file skipped.
func (c *Classifier) ClassifyCaps(ctx context.Context, sourceDir, outputDir string) ([]File, error) {
	if c.Env == nil {
		return nil, ErrNoEnvironment
	}
	log := c.logger()

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrListSource, sourceDir, err)
	}

	type candidate struct {
		name, output, base string
	}
	var (
		candidates []candidate
		bases      []string
	)
	taken := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !IsCapsName(e.Name()) {
			continue
		}
		output, base := outputName(e.Name(), c.docExt())
		if first, dup := taken[base]; dup {
			log.Warn("Skipping caps file with the same page name as another",
				logfields.File(e.Name()),
				slog.String("kept", first),
				slog.String("page", output))
			continue
		}
		taken[base] = e.Name()
		candidates = append(candidates, candidate{name: e.Name(), output: output, base: base})
		bases = append(bases, base)
	}

	cats := Categorize(bases, c.Matchers, c.Policy, log)
	assigned := make(map[string]Category, len(bases))
	for _, cat := range []Category{CategoryIncluded, CategoryAbout, CategoryTopic, CategoryUnclassified} {
		for _, b := range cats.Get(cat) {
			assigned[b] = cat
		}
	}

	files := make([]File, 0, len(candidates))
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		f := File{
			Source:   filepath.Join(sourceDir, cand.name),
			Output:   cand.output,
			Base:     cand.base,
			Category: assigned[cand.base],
			Kind:     KindCapsFile,
			Literal:  isMarkdown(cand.name) || c.Literals.Match(cand.base),
		}
		if f.Category == CategoryIncluded {
			if c.SkipIncluded {
				log.Debug("Skipping included caps file", logfields.File(cand.name))
				continue
			}
			f.Output = f.Base + "." + c.includedExt()
		}

		written, err := c.render(f, outputDir)
		if err != nil {
			log.Warn("Skipping caps file",
				logfields.File(cand.name),
				logfields.Error(err))
			continue
		}
		f.Written = written
		log.Debug("Classified caps file",
			logfields.File(cand.name),
			logfields.Category(string(f.Category)),
			slog.Bool("literal", f.Literal),
			slog.Bool("written", written))
		files = append(files, f)
	}
	return files, nil
}

// CapsDoc renders one caps file as a page at output (relative to outputDir).
func (c *Classifier) CapsDoc(src, output, outputDir string, literal bool) (templating.WriteResult, error) {
	body, err := os.ReadFile(src) // #nosec G304 -- caps files come from the configured project directory
	if err != nil {
		return templating.WriteResult{}, fmt.Errorf("%w: %s: %w", ErrReadCapsFile, src, err)
	}

	name := filepath.Base(src)
	title := ""
	if isMarkdown(name) {
		title = markdownTitle(body)
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if title == "" {
		base, _ := strings.CutSuffix(name, "."+c.docExt())
		title = Label(base)
	}

	tpl := ProseTemplate
	if literal {
		tpl = LiteralTemplate
	}
	content, err := c.Env.Render(tpl, templating.Context{
		"title":   title,
		"content": strings.TrimRight(strings.ReplaceAll(string(body), "\r\n", "\n"), "\n"),
	})
	if err != nil {
		return templating.WriteResult{}, err
	}
	return templating.WriteGeneratedFile(outputDir, output, content, templating.WriteOptions{
		Overwrite: c.Overwrite,
		DryRun:    c.DryRun,
	})
}

func (c *Classifier) render(f File, outputDir string) (bool, error) {
	res, err := c.CapsDoc(f.Source, f.Output, outputDir, f.Literal)
	if err != nil {
		return false, err
	}
	return res.Written, nil
}
