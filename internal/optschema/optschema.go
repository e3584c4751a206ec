// Package optschema describes a script's command-line options as extracted
// from its source, independent of the script's language.
package optschema

import "strings"

// Option is one flag or positional argument.
type Option struct {
	Flags      []string
	Dest       string
	Metavar    string
	Help       string
	Default    string
	Action     string
	TakesValue bool
	Positional bool
}

// Signature formats the option for an reStructuredText option directive,
// e.g. "-o DIR, --output-dir DIR".
func (o Option) Signature() string {
	if o.Positional {
		if o.Metavar != "" {
			return o.Metavar
		}
		return strings.Join(o.Flags, ", ")
	}
	parts := make([]string, len(o.Flags))
	for i, f := range o.Flags {
		if o.TakesValue && o.Metavar != "" {
			parts[i] = f + " " + o.Metavar
		} else {
			parts[i] = f
		}
	}
	return strings.Join(parts, ", ")
}

// Schema is the full option reference of a script.
type Schema struct {
	Program     string
	Usage       string
	Description string
	Epilog      string
	Options     []Option
}

// Lookup returns the option whose Dest is dest.
func (s *Schema) Lookup(dest string) (*Option, bool) {
	for i := range s.Options {
		if s.Options[i].Dest == dest {
			return &s.Options[i], true
		}
	}
	return nil, false
}

// LongestFlag returns the longest flag, used to derive a destination name.
func LongestFlag(flags []string) string {
	best := ""
	for _, f := range flags {
		if len(f) > len(best) {
			best = f
		}
	}
	return best
}
