package pysource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
)

// MemberKind classifies a module-level name.
type MemberKind string

const (
	KindModule    MemberKind = "module"
	KindClass     MemberKind = "class"
	KindException MemberKind = "exception"
	KindFunction  MemberKind = "function"
	KindData      MemberKind = "data"
)

// maxImportDepth bounds how far names re-exported through __all__ are
// followed into other modules.
const maxImportDepth = 3

var builtinExceptions = map[string]bool{
	"BaseException": true, "Exception": true, "ArithmeticError": true,
	"LookupError": true, "StopIteration": true, "GeneratorExit": true,
	"KeyboardInterrupt": true, "SystemExit": true,
}

// Summary is a read-only snapshot of a module's members. The All* lists
// hold every member of a kind; the unprefixed lists hold the selected ones.
// Lists are sorted by name.
type Summary struct {
	Name      string
	Path      string
	IsPackage bool
	Doc       string
	HasAll    bool
	All       []string
	Dunders   map[string]string

	AllModules    []string
	Modules       []string
	AllClasses    []string
	Classes       []string
	AllExceptions []string
	Exceptions    []string
	AllFunctions  []string
	Functions     []string
	AllData       []string
	Data          []string
	AllMembers    []string
	Members       []string

	kinds map[string]MemberKind
}

// KindOf returns the kind of a member, or "" when unknown.
func (s *Summary) KindOf(name string) MemberKind {
	return s.kinds[name]
}

// Selected reports whether name passes the export filter: membership in a
// declared __all__, else not starting with an underscore.
func (s *Summary) Selected(name string) bool {
	if s.HasAll {
		return slices.Contains(s.All, name)
	}
	return !strings.HasPrefix(name, "_")
}

// Context returns the summary as template context keys.
func (s *Summary) Context() map[string]any {
	return map[string]any{
		"doc":            s.Doc,
		"has_all":        s.HasAll,
		"is_package":     s.IsPackage,
		"all_modules":    s.AllModules,
		"modules":        s.Modules,
		"all_classes":    s.AllClasses,
		"classes":        s.Classes,
		"all_exceptions": s.AllExceptions,
		"exceptions":     s.Exceptions,
		"all_functions":  s.AllFunctions,
		"functions":      s.Functions,
		"all_datas":      s.AllData,
		"datas":          s.Data,
		"all_members":    s.AllMembers,
		"members":        s.Members,
	}
}

type importRef struct {
	module string
	attr   string
}

// Summarize resolves name and reports its members.
func (r *Resolver) Summarize(ctx context.Context, name string) (*Summary, error) {
	return r.summarize(ctx, name, 0)
}

func (r *Resolver) summarize(ctx context.Context, name string, depth int) (*Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mod, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	src, err := mod.ReadSource()
	if err != nil {
		return nil, err
	}
	tree, err := parseSource(ctx, src)
	if err != nil {
		return nil, err
	}
	defer tree.close()
	if err := tree.syntaxError(); err != nil {
		return nil, fmt.Errorf("module %s: %w", name, err)
	}

	s := &Summary{
		Name:      mod.Name,
		Path:      mod.Path,
		IsPackage: mod.IsPackage,
		Dunders:   map[string]string{},
		kinds:     map[string]MemberKind{},
	}
	s.Doc = tree.docstring(tree.root())

	c := &collector{tree: tree, summary: s, imports: map[string]importRef{}}
	c.statements(tree.root())

	if s.HasAll {
		r.classifyReexports(ctx, mod, c, depth)
	}

	submodules, err := r.Submodules(mod)
	if err != nil {
		return nil, err
	}
	s.AllModules = submodules
	for _, m := range submodules {
		if s.Selected(m) {
			s.Modules = append(s.Modules, m)
		}
		if _, defined := s.kinds[m]; !defined {
			s.kinds[m] = KindModule
		}
	}

	s.fill()
	r.logger.Debug("Summarized module",
		logfields.Module(name),
		logfields.Count(len(s.AllMembers)),
		slog.Bool("has_all", s.HasAll))
	return s, nil
}

// classifyReexports gives imported names listed in __all__ the kind they
// have in their source module. Names that cannot be followed become data.
func (r *Resolver) classifyReexports(ctx context.Context, mod *Module, c *collector, depth int) {
	s := c.summary
	for _, name := range s.All {
		if _, defined := s.kinds[name]; defined {
			continue
		}
		ref, imported := c.imports[name]
		if !imported {
			continue
		}
		target, err := mod.AbsoluteImport(ref.module)
		if err != nil {
			s.kinds[name] = KindData
			continue
		}
		if ref.attr == "" {
			s.kinds[name] = KindModule
			continue
		}
		if _, err := r.Resolve(target + "." + ref.attr); err == nil {
			s.kinds[name] = KindModule
			continue
		}
		kind := KindData
		if depth < maxImportDepth {
			if sub, err := r.summarize(ctx, target, depth+1); err == nil {
				if k := sub.KindOf(ref.attr); k != "" {
					kind = k
				}
			} else if !errors.Is(err, ErrModuleNotFound) {
				r.logger.Debug("Cannot follow re-export",
					logfields.Module(target), logfields.Name(ref.attr), logfields.Error(err))
			}
		}
		s.kinds[name] = kind
	}
}

func (s *Summary) fill() {
	names := make([]string, 0, len(s.kinds))
	for name := range s.kinds {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		kind := s.kinds[name]
		var all, sel *[]string
		switch kind {
		case KindClass:
			all, sel = &s.AllClasses, &s.Classes
		case KindException:
			all, sel = &s.AllExceptions, &s.Exceptions
		case KindFunction:
			all, sel = &s.AllFunctions, &s.Functions
		case KindData:
			all, sel = &s.AllData, &s.Data
		default:
			continue
		}
		*all = append(*all, name)
		s.AllMembers = append(s.AllMembers, name)
		if s.Selected(name) {
			*sel = append(*sel, name)
			s.Members = append(s.Members, name)
		}
	}
}

type collector struct {
	tree    *parsed
	summary *Summary
	imports map[string]importRef
}

func (c *collector) statements(parent *sitter.Node) {
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		c.statement(parent.NamedChild(i))
	}
}

func (c *collector) statement(n *sitter.Node) {
	s := c.summary
	switch n.Type() {
	case "class_definition":
		name := c.tree.text(n.ChildByFieldName("name"))
		if name == "" {
			return
		}
		kind := KindClass
		if c.isException(n) {
			kind = KindException
		}
		s.kinds[name] = kind
		delete(c.imports, name)
	case "function_definition":
		if name := c.tree.text(n.ChildByFieldName("name")); name != "" {
			s.kinds[name] = KindFunction
			delete(c.imports, name)
		}
	case "decorated_definition":
		if def := n.ChildByFieldName("definition"); def != nil {
			c.statement(def)
		}
	case "expression_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c.expression(n.NamedChild(i))
		}
	case "import_statement":
		c.importStatement(n)
	case "import_from_statement":
		c.importFrom(n)
	case "if_statement", "try_statement", "with_statement":
		for _, block := range nestedBlocks(n) {
			c.statements(block)
		}
	}
}

func (c *collector) expression(n *sitter.Node) {
	switch n.Type() {
	case "assignment":
		left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
		for _, name := range c.targets(left) {
			c.assign(name, right)
		}
		// chained assignment: a = b = 1
		if right != nil && right.Type() == "assignment" {
			c.expression(right)
		}
	case "augmented_assignment":
		left := n.ChildByFieldName("left")
		if c.tree.text(left) == "__all__" {
			if names, ok := c.tree.stringList(n.ChildByFieldName("right")); ok {
				c.summary.All = append(c.summary.All, names...)
			}
		}
	case "call":
		c.allMutation(n)
	}
}

func (c *collector) targets(left *sitter.Node) []string {
	if left == nil {
		return nil
	}
	switch left.Type() {
	case "identifier":
		return []string{c.tree.text(left)}
	case "pattern_list", "tuple_pattern", "list_pattern", "tuple", "list":
		var names []string
		for i := 0; i < int(left.NamedChildCount()); i++ {
			names = append(names, c.targets(left.NamedChild(i))...)
		}
		return names
	}
	return nil
}

func (c *collector) assign(name string, value *sitter.Node) {
	s := c.summary
	if name == "__all__" {
		if names, ok := c.tree.stringList(value); ok {
			s.HasAll = true
			s.All = names
		}
	}
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		if v, ok := c.tree.stringValue(value); ok {
			s.Dunders[name] = v
		}
	}
	s.kinds[name] = KindData
	delete(c.imports, name)
}

// allMutation handles __all__.append("x") and __all__.extend([...]).
func (c *collector) allMutation(call *sitter.Node) {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "attribute" || c.tree.text(fn.ChildByFieldName("object")) != "__all__" {
		return
	}
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() != 1 {
		return
	}
	arg := args.NamedChild(0)
	switch c.tree.text(fn.ChildByFieldName("attribute")) {
	case "append":
		if v, ok := c.tree.stringValue(arg); ok {
			c.summary.All = append(c.summary.All, v)
		}
	case "extend":
		if vs, ok := c.tree.stringList(arg); ok {
			c.summary.All = append(c.summary.All, vs...)
		}
	}
}

func (c *collector) importStatement(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			// import a.b binds a
			top := strings.SplitN(c.tree.text(child), ".", 2)[0]
			c.imports[top] = importRef{module: top}
		case "aliased_import":
			alias := c.tree.text(child.ChildByFieldName("alias"))
			c.imports[alias] = importRef{module: c.tree.text(child.ChildByFieldName("name"))}
		}
		c.forget(child)
	}
}

func (c *collector) importFrom(n *sitter.Node) {
	moduleNode := n.ChildByFieldName("module_name")
	module := c.tree.text(moduleNode)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if moduleNode != nil && child.StartByte() == moduleNode.StartByte() {
			continue
		}
		switch child.Type() {
		case "dotted_name":
			name := c.tree.text(child)
			c.imports[name] = importRef{module: module, attr: name}
			delete(c.summary.kinds, name)
		case "aliased_import":
			alias := c.tree.text(child.ChildByFieldName("alias"))
			c.imports[alias] = importRef{module: module, attr: c.tree.text(child.ChildByFieldName("name"))}
			delete(c.summary.kinds, alias)
		}
	}
}

func (c *collector) forget(n *sitter.Node) {
	var name string
	switch n.Type() {
	case "dotted_name":
		name = strings.SplitN(c.tree.text(n), ".", 2)[0]
	case "aliased_import":
		name = c.tree.text(n.ChildByFieldName("alias"))
	}
	delete(c.summary.kinds, name)
}

func (c *collector) isException(class *sitter.Node) bool {
	supers := class.ChildByFieldName("superclasses")
	if supers == nil {
		return false
	}
	for i := 0; i < int(supers.NamedChildCount()); i++ {
		arg := supers.NamedChild(i)
		if arg.Type() == "keyword_argument" {
			continue
		}
		base := c.tree.text(arg)
		if j := strings.LastIndex(base, "."); j >= 0 {
			base = base[j+1:]
		}
		if builtinExceptions[base] || strings.HasSuffix(base, "Error") ||
			strings.HasSuffix(base, "Exception") || strings.HasSuffix(base, "Warning") {
			return true
		}
		if c.summary.kinds[base] == KindException {
			return true
		}
	}
	return false
}

// docstring returns the leading string statement of a module or block.
func (p *parsed) docstring(n *sitter.Node) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		if child.Type() == "expression_statement" && child.NamedChildCount() > 0 {
			if s, ok := p.stringValue(child.NamedChild(0)); ok {
				return strings.TrimSpace(s)
			}
		}
		return ""
	}
	return ""
}
