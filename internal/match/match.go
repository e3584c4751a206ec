// Package match decides whether a name matches a set of patterns.
//
// A pattern is written as a plain string in configuration:
//
//	README            literal, compared with ==
//	re:COPYING(\..+)? regular expression, must match the whole name
//	glob:LICENSE*     doublestar glob
//
// Sets are ordered, but Match is order independent: the first category whose
// set matches is chosen by the caller, not here.
package match

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	regexPrefix = "re:"
	globPrefix  = "glob:"
)

// ErrInvalidPattern indicates a regex or glob pattern that does not compile.
var ErrInvalidPattern = errors.New("invalid pattern")

// Pattern matches a single candidate name.
type Pattern interface {
	Match(name string) bool
	String() string
}

type literal string

func (l literal) Match(name string) bool { return string(l) == name }
func (l literal) String() string         { return string(l) }

type regex struct {
	source string
	re     *regexp.Regexp
}

func (r regex) Match(name string) bool { return r.re.MatchString(name) }
func (r regex) String() string         { return regexPrefix + r.source }

type glob string

func (g glob) Match(name string) bool {
	ok, err := doublestar.Match(string(g), name)
	return err == nil && ok
}
func (g glob) String() string { return globPrefix + string(g) }

// Literal returns a pattern matching exactly name.
func Literal(name string) Pattern { return literal(name) }

// Regex compiles expr anchored at both ends so it only matches whole names.
func Regex(expr string) (Pattern, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, expr, err)
	}
	return regex{source: expr, re: re}, nil
}

// Glob validates and returns a doublestar glob pattern.
func Glob(pattern string) (Pattern, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: glob %q", ErrInvalidPattern, pattern)
	}
	return glob(pattern), nil
}

// Parse turns a configuration string into a Pattern.
func Parse(s string) (Pattern, error) {
	switch {
	case strings.HasPrefix(s, regexPrefix):
		return Regex(strings.TrimPrefix(s, regexPrefix))
	case strings.HasPrefix(s, globPrefix):
		return Glob(strings.TrimPrefix(s, globPrefix))
	default:
		return Literal(s), nil
	}
}

// MustParse is Parse for patterns known at compile time.
func MustParse(s string) Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Set is an ordered list of patterns.
type Set []Pattern

// ParseSet parses every entry, reporting all invalid ones.
func ParseSet(specs []string) (Set, error) {
	set := make(Set, 0, len(specs))
	var errs []error
	for _, s := range specs {
		p, err := Parse(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		set = append(set, p)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return set, nil
}

// Match reports whether name matches any pattern. An empty set never matches.
func (s Set) Match(name string) bool {
	for _, p := range s {
		if p.Match(name) {
			return true
		}
	}
	return false
}

// Strings returns the configuration form of every pattern.
func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.String()
	}
	return out
}

// Matches is the functional form of Set.Match.
func Matches(patterns []Pattern, candidate string) bool {
	return Set(patterns).Match(candidate)
}
