package shscript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
)

// ErrSandboxDenied indicates the script tried something the sandbox forbids.
var ErrSandboxDenied = errors.New("denied by sandbox")

// DefaultAllowedCommands are the external commands a sandboxed help run may
// execute. Everything else fails with exit status 126.
var DefaultAllowedCommands = []string{
	"basename", "cat", "dirname", "expr", "head", "sed", "tr", "uname",
}

// Sandbox runs scripts in-process with no write access and a restricted
// command set.
type Sandbox struct {
	Allowed []string
	Env     []string
}

// NewSandbox returns a sandbox with the default command allow list and a
// minimal environment.
func NewSandbox() *Sandbox {
	return &Sandbox{
		Allowed: DefaultAllowedCommands,
		Env:     []string{"PATH=" + os.Getenv("PATH"), "LANG=C", "TERM=dumb"},
	}
}

// Help runs the script with --help and returns its combined output. A
// non-zero exit status is not an error; usage handlers commonly exit 1 or 2.
// The caller bounds the run with ctx.
func (sb *Sandbox) Help(ctx context.Context, s *Script, dir string) (string, error) {
	var out bytes.Buffer

	runner, err := interp.New(
		interp.StdIO(nil, &out, &out),
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(sb.Env...)),
		interp.Params("--", "--help"),
		interp.ExecHandlers(sb.execHandler),
		interp.OpenHandler(openHandler),
	)
	if err != nil {
		return "", fmt.Errorf("create interpreter: %w", err)
	}

	err = runner.Run(ctx, s.File)
	text := strings.ReplaceAll(out.String(), "\r", "")
	if err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return text, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return text, fmt.Errorf("help run of %s: %w", s.Path, ctxErr)
		}
		return text, fmt.Errorf("help run of %s: %w", s.Path, err)
	}
	return text, nil
}

func (sb *Sandbox) execHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	allowed := make(map[string]bool, len(sb.Allowed))
	for _, name := range sb.Allowed {
		allowed[name] = true
	}
	return func(ctx context.Context, args []string) error {
		if len(args) == 0 {
			return next(ctx, args)
		}
		if !allowed[filepath.Base(args[0])] {
			hc := interp.HandlerCtx(ctx)
			_, _ = fmt.Fprintf(hc.Stderr, "%s: %v\n", args[0], ErrSandboxDenied)
			return interp.NewExitStatus(126)
		}
		return next(ctx, args)
	}
}

const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_APPEND | os.O_CREATE | os.O_TRUNC

// openHandler refuses writes. The interpreter reports an *os.PathError on
// stderr and fails only the redirecting command; other errors end the run.
func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if flag&writeFlags != 0 && path != "/dev/null" {
		return nil, &os.PathError{Op: "open", Path: path, Err: ErrSandboxDenied}
	}
	return interp.DefaultOpenHandler()(ctx, path, flag, perm)
}
