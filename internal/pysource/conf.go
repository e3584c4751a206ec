package pysource

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// RequiredConfSettings are the assignments a generated conf.py must make.
var RequiredConfSettings = []string{"project", "master_doc", "extensions"}

// CheckConf parses a Sphinx configuration file and verifies it is
// syntactically valid and assigns every required setting at top level.
func CheckConf(ctx context.Context, path string, required []string) error {
	// #nosec G304 -- path is the generated configuration in the working directory.
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read configuration: %w", err)
	}
	return CheckConfSource(ctx, src, required)
}

// CheckConfSource is CheckConf over in-memory source.
func CheckConfSource(ctx context.Context, src []byte, required []string) error {
	tree, err := parseSource(ctx, src)
	if err != nil {
		return err
	}
	defer tree.close()

	if err := tree.syntaxError(); err != nil {
		return err
	}

	assigned := map[string]bool{}
	collectAssignments(tree, tree.root(), assigned)

	var missing []string
	for _, name := range required {
		if !assigned[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfMissingSetting, strings.Join(missing, ", "))
	}
	return nil
}

func collectAssignments(p *parsed, parent *sitter.Node, into map[string]bool) {
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		stmt := parent.NamedChild(i)
		switch stmt.Type() {
		case "expression_statement":
			for j := 0; j < int(stmt.NamedChildCount()); j++ {
				expr := stmt.NamedChild(j)
				for expr != nil && expr.Type() == "assignment" {
					if left := expr.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
						into[p.text(left)] = true
					}
					expr = expr.ChildByFieldName("right")
				}
			}
		case "if_statement", "try_statement", "with_statement":
			for _, block := range nestedBlocks(stmt) {
				collectAssignments(p, block, into)
			}
		}
	}
}
