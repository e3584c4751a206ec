package pysource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"git.home.luguber.info/inful/sphinkydoc/internal/optschema"
)

type parserFlavor int

const (
	flavorNone parserFlavor = iota
	flavorOptparse
	flavorArgparse
)

const suppressed = "\x00suppress"

var (
	usagePrefix     = regexp.MustCompile(`(?i)^\s*usage:\s*`)
	argparseDefault = regexp.MustCompile(`%\(default\)s`)
	argparseProg    = regexp.MustCompile(`%\(prog\)s`)
)

var noValueActions = map[string]bool{
	"store_true": true, "store_false": true, "store_const": true,
	"append_const": true, "count": true, "help": true, "version": true,
	"callback": true, "BooleanOptionalAction": true,
}

// ScriptOptions statically extracts the option schema of a Python script
// that builds an optparse.OptionParser or argparse.ArgumentParser. The
// script is never executed. A nil schema means no parser was found.
func ScriptOptions(ctx context.Context, path string) (*optschema.Schema, error) {
	// #nosec G304 -- script paths are configured by the user.
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return ScriptOptionsFromSource(ctx, filepath.Base(path), src)
}

// ScriptOptionsFromSource is ScriptOptions over in-memory source.
func ScriptOptionsFromSource(ctx context.Context, program string, src []byte) (*optschema.Schema, error) {
	tree, err := parseSource(ctx, src)
	if err != nil {
		return nil, err
	}
	defer tree.close()

	x := &optionExtractor{tree: tree, program: program, receivers: map[string]bool{}, defaults: map[string]string{}}
	x.walk(tree.root())
	if x.flavor == flavorNone {
		return nil, nil
	}
	return x.finish(), nil
}

type optionExtractor struct {
	tree    *parsed
	program string

	flavor    parserFlavor
	parser    string
	receivers map[string]bool
	schema    optschema.Schema
	addHelp   bool
	version   string
	defaults  map[string]string
}

func (x *optionExtractor) walk(n *sitter.Node) {
	switch n.Type() {
	case "assignment":
		x.assignment(n)
	case "call":
		x.call(n)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		x.walk(n.NamedChild(i))
	}
}

func (x *optionExtractor) assignment(n *sitter.Node) {
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
	if left == nil || left.Type() != "identifier" || right == nil || right.Type() != "call" {
		return
	}
	name := x.tree.text(left)
	fn := right.ChildByFieldName("function")
	callee := x.tree.text(fn)
	args := right.ChildByFieldName("arguments")

	if x.flavor == flavorNone {
		switch lastPart(callee) {
		case "OptionParser":
			x.flavor = flavorOptparse
		case "ArgumentParser":
			x.flavor = flavorArgparse
		default:
			return
		}
		x.parser = name
		x.receivers[name] = true
		x.constructor(args)
		return
	}

	// groups: g = parser.add_argument_group(...), g = OptionGroup(parser, ...)
	if fn != nil && fn.Type() == "attribute" && x.receivers[x.tree.text(fn.ChildByFieldName("object"))] {
		switch x.tree.text(fn.ChildByFieldName("attribute")) {
		case "add_argument_group", "add_mutually_exclusive_group", "add_option_group":
			x.receivers[name] = true
		}
		return
	}
	if lastPart(callee) == "OptionGroup" && args != nil && args.NamedChildCount() > 0 &&
		x.receivers[x.tree.text(args.NamedChild(0))] {
		x.receivers[name] = true
	}
}

func (x *optionExtractor) constructor(args *sitter.Node) {
	positional, kw := x.arguments(args)
	x.addHelp = true
	x.schema.Program = x.program

	switch x.flavor {
	case flavorOptparse:
		if len(positional) > 0 {
			x.schema.Usage = positional[0]
		}
		if v, ok := kw["usage"]; ok {
			x.schema.Usage = v
		}
		if kw["add_help_option"] == "False" {
			x.addHelp = false
		}
		x.version = kw["version"]
	case flavorArgparse:
		if v, ok := kw["prog"]; ok {
			x.schema.Program = v
		}
		x.schema.Usage = kw["usage"]
		if kw["add_help"] == "False" {
			x.addHelp = false
		}
		x.schema.Epilog = kw["epilog"]
	}
	x.schema.Description = kw["description"]
}

func (x *optionExtractor) call(n *sitter.Node) {
	if x.flavor == flavorNone {
		return
	}
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "attribute" {
		return
	}
	receiver := x.tree.text(fn.ChildByFieldName("object"))
	if !x.receivers[receiver] {
		return
	}
	args := n.ChildByFieldName("arguments")
	switch x.tree.text(fn.ChildByFieldName("attribute")) {
	case "add_option", "add_argument":
		if opt, ok := x.option(args); ok {
			x.schema.Options = append(x.schema.Options, opt)
		}
	case "set_defaults":
		_, kw := x.arguments(args)
		for k, v := range kw {
			x.defaults[k] = v
		}
	case "set_usage":
		if pos, _ := x.arguments(args); len(pos) > 0 {
			x.schema.Usage = pos[0]
		}
	}
}

func (x *optionExtractor) option(args *sitter.Node) (optschema.Option, bool) {
	flags, kw := x.arguments(args)
	if len(flags) == 0 {
		return optschema.Option{}, false
	}
	if kw["help"] == suppressed {
		return optschema.Option{}, false
	}

	opt := optschema.Option{
		Flags:   flags,
		Dest:    kw["dest"],
		Metavar: kw["metavar"],
		Help:    kw["help"],
		Default: kw["default"],
		Action:  strings.TrimPrefix(kw["action"], "argparse."),
	}
	opt.Positional = !strings.HasPrefix(flags[0], "-")
	opt.TakesValue = !noValueActions[opt.Action]
	if kw["nargs"] == "0" {
		opt.TakesValue = false
	}

	if opt.Dest == "" {
		opt.Dest = destFor(flags)
	}
	if opt.Metavar == "" && opt.TakesValue {
		if opt.Positional {
			opt.Metavar = opt.Dest
		} else {
			opt.Metavar = strings.ToUpper(opt.Dest)
		}
	}
	return opt, true
}

// destFor derives the attribute name a parser stores an option under.
func destFor(flags []string) string {
	for _, f := range flags {
		if strings.HasPrefix(f, "--") {
			return strings.ReplaceAll(strings.TrimPrefix(f, "--"), "-", "_")
		}
	}
	f := flags[0]
	if strings.HasPrefix(f, "-") {
		return strings.ReplaceAll(strings.TrimLeft(f, "-"), "-", "_")
	}
	return f
}

// arguments evaluates a call's argument list. String literals are decoded,
// suppression markers are recognised, anything else is kept as source text.
func (x *optionExtractor) arguments(args *sitter.Node) ([]string, map[string]string) {
	var positional []string
	kw := map[string]string{}
	if args == nil {
		return positional, kw
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "keyword_argument":
			key := x.tree.text(arg.ChildByFieldName("name"))
			kw[key] = x.value(arg.ChildByFieldName("value"))
		case "list_splat", "dictionary_splat", "comment":
		default:
			positional = append(positional, x.value(arg))
		}
	}
	return positional, kw
}

func (x *optionExtractor) value(n *sitter.Node) string {
	if s, ok := x.tree.stringValue(n); ok {
		return s
	}
	text := x.tree.text(n)
	switch lastPart(text) {
	case "SUPPRESS_HELP", "SUPPRESS":
		return suppressed
	}
	return text
}

func (x *optionExtractor) finish() *optschema.Schema {
	s := x.schema

	for dest, v := range x.defaults {
		if opt, ok := s.Lookup(dest); ok && opt.Default == "" {
			opt.Default = v
		}
	}

	var builtin []optschema.Option
	if x.addHelp {
		builtin = append(builtin, optschema.Option{
			Flags: []string{"-h", "--help"}, Dest: "help", Action: "help",
			Help: "show this help message and exit",
		})
	}
	if x.version != "" {
		builtin = append(builtin, optschema.Option{
			Flags: []string{"--version"}, Dest: "version", Action: "version",
			Help: "show program's version number and exit",
		})
	}
	s.Options = append(builtin, s.Options...)

	for i := range s.Options {
		s.Options[i].Help = x.expandHelp(s.Options[i])
	}

	switch x.flavor {
	case flavorOptparse:
		if s.Usage == "" {
			s.Usage = "%prog [options]"
		}
		s.Usage = usagePrefix.ReplaceAllString(s.Usage, "")
		s.Usage = strings.ReplaceAll(s.Usage, "%prog", s.Program)
	case flavorArgparse:
		if s.Usage == "" {
			s.Usage = argparseUsage(s)
		}
		s.Usage = argparseProg.ReplaceAllString(s.Usage, s.Program)
		s.Description = argparseProg.ReplaceAllString(s.Description, s.Program)
	}
	return &s
}

func (x *optionExtractor) expandHelp(o optschema.Option) string {
	def := o.Default
	switch x.flavor {
	case flavorOptparse:
		if def == "" {
			def = "none"
		}
		h := strings.ReplaceAll(o.Help, "%default", def)
		return strings.ReplaceAll(h, "%prog", x.schema.Program)
	case flavorArgparse:
		if def == "" {
			def = "None"
		}
		h := argparseDefault.ReplaceAllString(o.Help, def)
		return argparseProg.ReplaceAllString(h, x.schema.Program)
	}
	return o.Help
}

func argparseUsage(s optschema.Schema) string {
	parts := []string{s.Program}
	for _, o := range s.Options {
		if o.Positional {
			parts = append(parts, o.Signature())
			continue
		}
		flag := o.Flags[0]
		if o.TakesValue && o.Metavar != "" {
			flag += " " + o.Metavar
		}
		parts = append(parts, "["+flag+"]")
	}
	return strings.Join(parts, " ")
}

func lastPart(dotted string) string {
	if i := strings.LastIndex(dotted, "."); i >= 0 {
		return dotted[i+1:]
	}
	return dotted
}
