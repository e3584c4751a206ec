package build

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLSummary describes a built site.
type HTMLSummary struct {
	// Title is the <title> of index.html.
	Title string
	// Pages counts .html files below the site root.
	Pages int
}

// InspectHTML reads the title of dir/index.html and counts the pages.
func InspectHTML(dir string) (*HTMLSummary, error) {
	sum := &HTMLSummary{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".html") {
			sum.Pages++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("inspect html: %w", err)
	}

	f, err := os.Open(filepath.Join(dir, "index.html")) // #nosec G304 -- path below the build output
	if err != nil {
		return sum, fmt.Errorf("%w: %w", ErrHTMLIndexUnreadable, err)
	}
	defer func() { _ = f.Close() }()

	doc, err := html.Parse(f)
	if err != nil {
		return sum, fmt.Errorf("%w: %w", ErrHTMLIndexUnreadable, err)
	}
	sum.Title = findTitle(doc)
	return sum, nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return strings.Join(strings.Fields(b.String()), " ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}
