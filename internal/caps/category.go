package caps

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
	"git.home.luguber.info/inful/sphinkydoc/internal/match"
)

// Category decides where a page is surfaced in the index.
type Category string

const (
	CategoryIncluded     Category = "included"
	CategoryAbout        Category = "about"
	CategoryTopic        Category = "topic"
	CategoryUnclassified Category = "unclassified"
)

// Priority is the fixed order in which category pattern sets are tried.
var Priority = []Category{CategoryIncluded, CategoryAbout, CategoryTopic}

// Kind is how a discovered file came to exist.
type Kind string

const (
	KindCapsFile  Kind = "caps-file"
	KindDocsFile  Kind = "docs-file"
	KindModuleDoc Kind = "module-doc"
	KindScriptDoc Kind = "script-doc"
)

// UnclassifiedPolicy controls names that match no category.
type UnclassifiedPolicy string

const (
	// PolicyBucket lists them under CategoryUnclassified.
	PolicyBucket UnclassifiedPolicy = "bucket"
	// PolicyDrop leaves them out of the categorized result.
	PolicyDrop UnclassifiedPolicy = "drop"
)

// ParsePolicy validates a configured policy name. Empty means bucket.
func ParsePolicy(s string) (UnclassifiedPolicy, error) {
	switch UnclassifiedPolicy(s) {
	case "", PolicyBucket:
		return PolicyBucket, nil
	case PolicyDrop:
		return PolicyDrop, nil
	default:
		return "", fmt.Errorf("unknown unclassified policy %q (want %q or %q)", s, PolicyBucket, PolicyDrop)
	}
}

// Matchers holds one pattern set per category.
type Matchers struct {
	Included match.Set
	About    match.Set
	Topic    match.Set
}

// For returns the pattern set of a category.
func (m Matchers) For(c Category) match.Set {
	switch c {
	case CategoryIncluded:
		return m.Included
	case CategoryAbout:
		return m.About
	case CategoryTopic:
		return m.Topic
	default:
		return nil
	}
}

// Classify returns the first category in Priority whose set matches name,
// or CategoryUnclassified.
func (m Matchers) Classify(name string) Category {
	for _, c := range Priority {
		if m.For(c).Match(name) {
			return c
		}
	}
	return CategoryUnclassified
}

// Categories maps each category to its names in insertion order.
type Categories struct {
	Included     []string
	About        []string
	Topic        []string
	Unclassified []string
}

// Get returns the names of a category.
func (c Categories) Get(cat Category) []string {
	switch cat {
	case CategoryIncluded:
		return c.Included
	case CategoryAbout:
		return c.About
	case CategoryTopic:
		return c.Topic
	case CategoryUnclassified:
		return c.Unclassified
	default:
		return nil
	}
}

// Add appends name to a category.
func (c *Categories) Add(cat Category, name string) {
	switch cat {
	case CategoryIncluded:
		c.Included = append(c.Included, name)
	case CategoryAbout:
		c.About = append(c.About, name)
	case CategoryTopic:
		c.Topic = append(c.Topic, name)
	case CategoryUnclassified:
		c.Unclassified = append(c.Unclassified, name)
	}
}

// Len is the number of categorized names.
func (c Categories) Len() int {
	return len(c.Included) + len(c.About) + len(c.Topic) + len(c.Unclassified)
}

// Categorize assigns every name to one category in a single pass.
func Categorize(names []string, m Matchers, policy UnclassifiedPolicy, logger *slog.Logger) Categories {
	if logger == nil {
		logger = slog.Default()
	}
	var out Categories
	for _, name := range names {
		cat := m.Classify(name)
		if cat == CategoryUnclassified && policy == PolicyDrop {
			logger.Warn("Dropping file that matches no category",
				logfields.Name(name),
				slog.String("policy", string(policy)))
			continue
		}
		out.Add(cat, name)
	}
	return out
}

// Default pattern strings, in match.Parse syntax.
var (
	DefaultIncluded = []string{`re:README(\..+)?`}
	DefaultAbout    = []string{
		`re:(COPYING|LICEN[CS]E)(\..+)?`,
		`re:(AUTHORS|CHANGES|CHANGELOG|NEWS|HISTORY|THANKS|CREDITS)(\..+)?`,
	}
	DefaultTopic    = []string{`re:(INSTALL|TODO|FAQ|USAGE|HACKING|CONTRIBUTING)(\..+)?`}
	DefaultLiterals = []string{"COPYING", "COPYING.LESSER", "COPYING.LIB"}
)

// DefaultMatchers returns the matchers built from the default patterns.
func DefaultMatchers() Matchers {
	return Matchers{
		Included: mustSet(DefaultIncluded),
		About:    mustSet(DefaultAbout),
		Topic:    mustSet(DefaultTopic),
	}
}

func mustSet(specs []string) match.Set {
	s, err := match.ParseSet(specs)
	if err != nil {
		panic(err)
	}
	return s
}
