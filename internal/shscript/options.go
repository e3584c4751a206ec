package shscript

import (
	"path/filepath"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"git.home.luguber.info/inful/sphinkydoc/internal/optschema"
)

var usageLine = regexp.MustCompile(`(?i)^\s*usage:\s*`)

// Options extracts the option schema from the script's first getopts loop.
// A nil schema means the script has no getopts call.
func (s *Script) Options() *optschema.Schema {
	program := filepath.Base(s.Path)

	var optstring, optvar string
	var loop *syntax.WhileClause
	syntax.Walk(s.File, func(node syntax.Node) bool {
		if loop != nil {
			return false
		}
		w, ok := node.(*syntax.WhileClause)
		if !ok {
			return true
		}
		for _, stmt := range w.Cond {
			call, ok := stmt.Cmd.(*syntax.CallExpr)
			if !ok || len(call.Args) < 3 || call.Args[0].Lit() != "getopts" {
				continue
			}
			optstring = wordText(call.Args[1], program)
			optvar = wordText(call.Args[2], program)
			loop = w
			return false
		}
		return true
	})
	if loop == nil {
		return nil
	}

	schema := &optschema.Schema{
		Program:     program,
		Description: leadingComment(s.File),
	}
	items := caseItems(loop, optvar)
	trailing := commentsByLine(s.File)

	for _, letter := range parseOptstring(optstring) {
		opt := optschema.Option{
			Flags:      []string{"-" + letter.name},
			Dest:       letter.name,
			TakesValue: letter.arg,
		}
		if item := items[letter.name]; item != nil {
			opt.Help = itemHelp(item, trailing)
			opt.Metavar = optargTarget(item)
		}
		if opt.TakesValue && opt.Metavar == "" {
			opt.Metavar = "ARG"
		}
		schema.Options = append(schema.Options, opt)
	}
	schema.Usage = usageText(s.File, program)
	return schema
}

type optLetter struct {
	name string
	arg  bool
}

func parseOptstring(s string) []optLetter {
	s = strings.TrimPrefix(s, ":")
	var out []optLetter
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			continue
		}
		l := optLetter{name: string(s[i])}
		if i+1 < len(s) && s[i+1] == ':' {
			l.arg = true
		}
		out = append(out, l)
	}
	return out
}

// caseItems maps each option letter to the case branch handling it in the
// loop body.
func caseItems(loop *syntax.WhileClause, optvar string) map[string]*syntax.CaseItem {
	items := map[string]*syntax.CaseItem{}
	for _, stmt := range loop.Do {
		syntax.Walk(stmt, func(node syntax.Node) bool {
			cc, ok := node.(*syntax.CaseClause)
			if !ok {
				return true
			}
			if !refersTo(cc.Word, optvar) {
				return true
			}
			for _, item := range cc.Items {
				for _, pat := range item.Patterns {
					name := strings.Trim(wordText(pat, ""), `"'`)
					if len(name) == 1 {
						items[name] = item
					}
				}
			}
			return false
		})
	}
	return items
}

func refersTo(w *syntax.Word, name string) bool {
	found := false
	syntax.Walk(w, func(node syntax.Node) bool {
		if pe, ok := node.(*syntax.ParamExp); ok && pe.Param != nil && pe.Param.Value == name {
			found = true
		}
		return !found
	})
	return found
}

func itemHelp(item *syntax.CaseItem, trailing map[uint]string) string {
	var lines []string
	for _, c := range item.Comments {
		lines = append(lines, strings.TrimSpace(c.Text))
	}
	if len(lines) == 0 && len(item.Patterns) > 0 {
		if c, ok := trailing[item.Patterns[0].Pos().Line()]; ok {
			lines = append(lines, c)
		}
	}
	return strings.Join(lines, " ")
}

// optargTarget finds NAME in a NAME=$OPTARG assignment of the branch.
func optargTarget(item *syntax.CaseItem) string {
	target := ""
	for _, stmt := range item.Stmts {
		syntax.Walk(stmt, func(node syntax.Node) bool {
			as, ok := node.(*syntax.Assign)
			if !ok || as.Name == nil || as.Value == nil {
				return target == ""
			}
			if refersTo(as.Value, "OPTARG") && target == "" {
				target = as.Name.Value
			}
			return target == ""
		})
	}
	return target
}

func commentsByLine(f *syntax.File) map[uint]string {
	out := map[uint]string{}
	syntax.Walk(f, func(node syntax.Node) bool {
		if c, ok := node.(*syntax.Comment); ok {
			out[c.Hash.Line()] = strings.TrimSpace(c.Text)
		}
		return true
	})
	return out
}

// leadingComment returns the comment block at the top of the script,
// excluding the shebang.
func leadingComment(f *syntax.File) string {
	var first []syntax.Comment
	if len(f.Stmts) > 0 {
		first = f.Stmts[0].Comments
	} else {
		first = f.Last
	}
	var lines []string
	var lastLine uint
	for _, c := range first {
		if f.Stmts != nil && len(f.Stmts) > 0 && c.Hash.Line() >= f.Stmts[0].Pos().Line() {
			break
		}
		if strings.HasPrefix(c.Text, "!") {
			continue
		}
		if lastLine != 0 && c.Hash.Line() > lastLine+1 {
			break
		}
		lines = append(lines, strings.TrimSpace(c.Text))
		lastLine = c.Hash.Line()
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// usageText finds the first echo/printf argument starting with "usage:".
func usageText(f *syntax.File, program string) string {
	usage := ""
	syntax.Walk(f, func(node syntax.Node) bool {
		if usage != "" {
			return false
		}
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) < 2 {
			return true
		}
		switch call.Args[0].Lit() {
		case "echo", "printf":
		default:
			return true
		}
		for _, arg := range call.Args[1:] {
			text := wordText(arg, program)
			if usageLine.MatchString(text) {
				usage = usageLine.ReplaceAllString(strings.Split(text, `\n`)[0], "")
				return false
			}
		}
		return true
	})
	return strings.TrimSpace(usage)
}

// wordText renders a word without quotes. $0 becomes program; other
// expansions are kept as written.
func wordText(w *syntax.Word, program string) string {
	var b strings.Builder
	for _, part := range w.Parts {
		writePart(&b, part, program)
	}
	return b.String()
}

func writePart(b *strings.Builder, part syntax.WordPart, program string) {
	switch p := part.(type) {
	case *syntax.Lit:
		b.WriteString(p.Value)
	case *syntax.SglQuoted:
		b.WriteString(p.Value)
	case *syntax.DblQuoted:
		for _, inner := range p.Parts {
			writePart(b, inner, program)
		}
	case *syntax.ParamExp:
		if p.Param != nil && p.Param.Value == "0" && program != "" {
			b.WriteString(program)
			return
		}
		if p.Param != nil {
			b.WriteString("$" + p.Param.Value)
		}
	}
}
