package caps

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/sphinkydoc/internal/templating"
)

// DefaultSkipDirs are never copied from the docs directory.
var DefaultSkipDirs = []string{"html", "_temp"}

// CopyDocsTree copies the hand-written documentation directory into
// outputDir, keeping existing files unless opts.Overwrite is set.
//
// Every copied file is returned. Top-level pages with docExt other than
// the index are listed under CategoryTopic; everything else has no
// category and is left to the doc tool's own references.
func CopyDocsTree(ctx context.Context, docsDir, outputDir, docExt string, skipDirs []string, opts templating.WriteOptions) ([]File, error) {
	if docExt == "" {
		docExt = DefaultDocExt
	}
	if skipDirs == nil {
		skipDirs = DefaultSkipDirs
	}
	suffix := "." + strings.TrimPrefix(docExt, ".")

	absOut, _ := filepath.Abs(outputDir)

	var files []File
	err := filepath.WalkDir(docsDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(docsDir, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if slices.Contains(skipDirs, d.Name()) || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			// the output dir may live inside the docs dir
			if abs, _ := filepath.Abs(path); abs == absOut {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		data, err := os.ReadFile(path) // #nosec G304 -- walking the configured docs directory
		if err != nil {
			return err
		}
		res, err := templating.WriteGeneratedFile(outputDir, rel, string(data), opts)
		if err != nil {
			return err
		}

		f := File{
			Source:  path,
			Output:  filepath.ToSlash(rel),
			Base:    strings.TrimSuffix(filepath.ToSlash(rel), suffix),
			Kind:    KindDocsFile,
			Written: res.Written,
		}
		if !strings.Contains(f.Output, "/") && strings.HasSuffix(f.Output, suffix) && f.Base != "index" {
			f.Category = CategoryTopic
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return files, err
		}
		return files, fmt.Errorf("%w: %s: %w", ErrDocsDirWalk, docsDir, err)
	}
	return files, nil
}

// Group collects the index references of files per category, preserving
// order. Files without a category are left out.
func Group(files []File) Categories {
	var out Categories
	for _, f := range files {
		if f.Category == "" {
			continue
		}
		out.Add(f.Category, f.Ref())
	}
	return out
}

// Context is the categorized part of the index template context.
func (c Categories) Context() map[string]any {
	return map[string]any{
		"included":     nonNil(c.Included),
		"about":        nonNil(c.About),
		"topic":        nonNil(c.Topic),
		"unclassified": nonNil(c.Unclassified),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
