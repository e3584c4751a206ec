package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
	"git.home.luguber.info/inful/sphinkydoc/internal/metrics"
	"git.home.luguber.info/inful/sphinkydoc/internal/optschema"
	"git.home.luguber.info/inful/sphinkydoc/internal/pysource"
	"git.home.luguber.info/inful/sphinkydoc/internal/shscript"
	"git.home.luguber.info/inful/sphinkydoc/internal/templating"
)

// ScriptLang is the language a script is written in.
type ScriptLang string

const (
	LangPython ScriptLang = "python"
	LangShell  ScriptLang = "shell"
	LangOther  ScriptLang = "other"
)

// OverrideSuffix names a per-script template in the output directory,
// e.g. tool.py.rst.template.
const OverrideSuffix = ".template"

const headSize = 256

// DetectScriptLang classifies a script by suffix, then by shebang.
func DetectScriptLang(path string, head []byte) ScriptLang {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyw":
		return LangPython
	}
	if _, ok := shscript.Detect(path, head); ok {
		return LangShell
	}
	line, _, _ := bytes.Cut(head, []byte("\n"))
	if bytes.HasPrefix(line, []byte("#!")) && bytes.Contains(line, []byte("python")) {
		return LangPython
	}
	return LangOther
}

// ScriptDoc renders the page of a script as <basename>.rst.
//
// The option schema is extracted statically when possible (optparse or
// argparse for Python, getopts for shell) and rendered as an option list.
// Otherwise the script's --help output is captured under a timeout: Python
// through the interpreter, shell in the sandbox, anything else executed
// directly. A failed help run yields a page without help text.
func (g *Generator) ScriptDoc(ctx context.Context, path string) (string, error) {
	name := filepath.Base(path)
	src, err := os.ReadFile(path) // #nosec G304 -- script paths are configured by the user
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrScriptNotFound, path)
		}
		return "", g.fail(KindScript, path, err)
	}
	head := src
	if len(head) > headSize {
		head = head[:headSize]
	}
	lang := DetectScriptLang(path, head)
	log := g.logger().With(logfields.Script(path), "lang", string(lang))

	tctx := templating.Context{
		"script_name": name,
		"script_path": path,
		"lang":        string(lang),
	}
	tpl := ScriptTemplate

	schema, err := g.scriptSchema(ctx, lang, path, src)
	if err != nil {
		log.Debug("Static option extraction failed", logfields.Error(err))
	}
	if schema != nil {
		tctx["schema"] = schema
		tctx["help"] = ""
		tpl = ScriptOptionsTemplate
	} else {
		help, err := g.scriptHelp(ctx, lang, path, src)
		switch {
		case err != nil && help == "":
			log.Warn("Script help unavailable", logfields.Error(err))
		case err != nil:
			log.Warn("Script help incomplete", logfields.Error(err))
		}
		tctx["help"] = help
	}

	content, err := g.renderScript(name, tpl, tctx)
	if err != nil {
		return "", g.fail(KindScript, path, err)
	}
	out, err := g.write(KindScript, g.docName(name), content)
	if err != nil {
		return "", generationError(KindScript, path, err)
	}
	return out, nil
}

func (g *Generator) renderScript(name, tpl string, tctx templating.Context) (string, error) {
	override := filepath.Join(g.OutputDir, g.docName(name)+OverrideSuffix)
	content, err := g.Env.RenderFile(override, tctx)
	if err == nil {
		g.logger().Debug("Rendered script override template", logfields.Template(override))
		return content, nil
	}
	if !errors.Is(err, templating.ErrTemplateNotFound) {
		return "", err
	}
	return g.Env.Render(tpl, tctx)
}

func (g *Generator) scriptSchema(ctx context.Context, lang ScriptLang, path string, src []byte) (*optschema.Schema, error) {
	switch lang {
	case LangPython:
		return pysource.ScriptOptionsFromSource(ctx, filepath.Base(path), src)
	case LangShell:
		script, err := g.loadShell(path, src)
		if err != nil {
			return nil, err
		}
		return script.Options(), nil
	default:
		return nil, nil
	}
}

func (g *Generator) loadShell(path string, src []byte) (*shscript.Script, error) {
	lang, ok := shscript.Detect(path, src)
	if !ok {
		return nil, fmt.Errorf("%w: %s", shscript.ErrNotShell, path)
	}
	return shscript.Parse(filepath.Base(path), src, lang)
}

func (g *Generator) scriptHelp(ctx context.Context, lang ScriptLang, path string, src []byte) (string, error) {
	opts := g.opts()
	ctx, cancel := context.WithTimeout(ctx, opts.HelpTimeout)
	defer cancel()

	start := time.Now()
	var (
		help string
		err  error
		tool string
	)
	switch lang {
	case LangShell:
		tool = "sh-sandbox"
		var script *shscript.Script
		script, err = g.loadShell(path, src)
		if err == nil {
			sb := g.Sandbox
			if sb == nil {
				sb = shscript.NewSandbox()
			}
			help, err = sb.Help(ctx, script, filepath.Dir(path))
		}
	case LangPython:
		tool = opts.Python
		help, err = runHelp(ctx, opts.Python, path, "--help")
	default:
		tool = filepath.Base(path)
		var abs string
		if abs, err = filepath.Abs(path); err == nil {
			help, err = runHelp(ctx, abs, "--help")
		}
	}
	metrics.OrNoop(g.Recorder).ObserveSubprocess(tool, time.Since(start), err == nil)
	if err != nil {
		return help, fmt.Errorf("%w: %w", ErrHelpFailed, err)
	}
	return help, nil
}

// runHelp runs a help command and returns its standard output with
// carriage returns removed. A non-zero exit with output is accepted.
func runHelp(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- runs configured scripts for their help text
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	out := strings.ReplaceAll(stdout.String(), "\r", "")
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) && strings.TrimSpace(out) != "" {
			return out, nil
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", runErr, msg)
		}
		return "", runErr
	}
	return out, nil
}
