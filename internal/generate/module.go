package generate

import (
	"context"
	"errors"

	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
	"git.home.luguber.info/inful/sphinkydoc/internal/pysource"
	"git.home.luguber.info/inful/sphinkydoc/internal/templating"
)

// ModuleDoc renders the page of one module as <dotted.name>.rst and
// returns its path.
func (g *Generator) ModuleDoc(ctx context.Context, name string) (string, error) {
	path, _, err := g.moduleDoc(ctx, name)
	return path, err
}

func (g *Generator) moduleDoc(ctx context.Context, name string) (string, *pysource.Summary, error) {
	if g.Resolver == nil {
		return "", nil, g.fail(KindModule, name, errors.New("no module resolver configured"))
	}
	summary, err := g.Resolver.Summarize(ctx, name)
	if err != nil {
		return "", nil, g.fail(KindModule, name, err)
	}

	tctx := templating.Context(summary.Context())
	tctx["module"] = name
	tctx["fullname"] = summary.Name

	content, err := g.Env.Render(ModuleTemplate, tctx)
	if err != nil {
		return "", nil, g.fail(KindModule, name, err)
	}
	path, err := g.write(KindModule, g.docName(summary.Name), content)
	if err != nil {
		return "", nil, generationError(KindModule, name, err)
	}
	return path, summary, nil
}

// RecursiveModuleDoc documents name and, depth first, every selected
// submodule below it. Each module is visited once. A submodule that fails
// is logged and its siblings still processed; only a root that cannot be
// documented is an error.
func (g *Generator) RecursiveModuleDoc(ctx context.Context, name string) ([]string, error) {
	root, summary, err := g.moduleDoc(ctx, name)
	if err != nil {
		return nil, err
	}
	paths := []string{root}
	visited := map[string]bool{name: true}

	var walk func(parent string, summary *pysource.Summary) error
	walk = func(parent string, summary *pysource.Summary) error {
		for _, sub := range summary.Modules {
			if err := ctx.Err(); err != nil {
				return err
			}
			full := parent + "." + sub
			if visited[full] {
				continue
			}
			visited[full] = true

			path, subSummary, err := g.moduleDoc(ctx, full)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				g.logger().Warn("Skipping module documentation",
					logfields.Module(full),
					logfields.Error(err))
				continue
			}
			paths = append(paths, path)
			if err := walk(full, subSummary); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(name, summary); err != nil {
		return paths, err
	}
	return paths, nil
}
