package caps

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var capsName = regexp.MustCompile(`^[A-Z]+(\.[^.]+)?$`)

// IsCapsName reports whether a base file name follows the caps convention:
// one or more uppercase ASCII letters, optionally followed by one suffix.
func IsCapsName(name string) bool {
	return capsName.MatchString(name)
}

// File is one page discovered while classifying. Values are not mutated
// after ClassifyCaps or CopyDocsTree returns them.
type File struct {
	// Source is the path the page was produced from.
	Source string
	// Output is the page path relative to the output directory.
	Output string
	// Base is the output name with the doc extension stripped.
	Base     string
	// Category is empty for pages kept out of the index.
	Category Category
	Kind     Kind
	Literal  bool
	// Written is false when the page already existed and was kept.
	Written bool
}

// Ref is the name the index uses to refer to the page.
func (f File) Ref() string {
	if f.Category == CategoryIncluded {
		return f.Output
	}
	return f.Base
}

// outputName returns the page name for a caps file and its base name.
// The doc extension and Markdown suffixes are not part of the base name.
func outputName(name, docExt string) (output, base string) {
	base = BaseName(name, docExt)
	return base + "." + docExt, base
}

// BaseName strips the doc extension or a Markdown suffix from a caps file
// name: README.rst and README.md both become README.
func BaseName(name, docExt string) string {
	if base, ok := strings.CutSuffix(name, "."+docExt); ok {
		return base
	}
	if isMarkdown(name) {
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}

func isMarkdown(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

var labelCaser = cases.Title(language.English)

// Label turns a caps base name into a heading, e.g. COPYING.LESSER
// becomes "Copying Lesser".
func Label(base string) string {
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(words) == 0 {
		return base
	}
	return labelCaser.String(strings.Join(words, " "))
}
