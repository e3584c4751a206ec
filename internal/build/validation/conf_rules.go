package validation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"git.home.luguber.info/inful/sphinkydoc/internal/pysource"
)

// Sentinel errors carried by failed results.
var (
	ErrConfMissing   = errors.New("configuration file missing")
	ErrConfInvalid   = errors.New("configuration file invalid")
	ErrCompileFailed = errors.New("configuration file does not compile")
)

const defaultTimeout = 30 * time.Second

// ConfExistsRule requires a regular, non-empty conf.py.
type ConfExistsRule struct{}

func (ConfExistsRule) Name() string { return "conf_exists" }

func (ConfExistsRule) Validate(_ context.Context, vctx Context) Result {
	fi, err := os.Stat(vctx.ConfPath)
	if err != nil {
		return Failure("configuration file missing", fmt.Errorf("%w: %w", ErrConfMissing, err))
	}
	if !fi.Mode().IsRegular() {
		return Failure("configuration path is not a file", fmt.Errorf("%w: %s", ErrConfMissing, vctx.ConfPath))
	}
	if fi.Size() == 0 {
		return Failure("configuration file is empty", fmt.Errorf("%w: %s is empty", ErrConfInvalid, vctx.ConfPath))
	}
	return Success()
}

// ConfSyntaxRule parses conf.py statically and requires the settings the
// build tool cannot do without.
type ConfSyntaxRule struct {
	// Required defaults to pysource.RequiredConfSettings.
	Required []string
}

func (ConfSyntaxRule) Name() string { return "conf_syntax" }

func (r ConfSyntaxRule) Validate(ctx context.Context, vctx Context) Result {
	required := r.Required
	if required == nil {
		required = pysource.RequiredConfSettings
	}
	if err := pysource.CheckConf(ctx, vctx.ConfPath, required); err != nil {
		return Failure(err.Error(), fmt.Errorf("%w: %w", ErrConfInvalid, err))
	}
	return Success()
}

// PyCompileRule byte-compiles conf.py with the interpreter. Nothing in the
// file is executed.
type PyCompileRule struct{}

func (PyCompileRule) Name() string { return "py_compile" }

func (PyCompileRule) Validate(ctx context.Context, vctx Context) Result {
	python := vctx.Python
	if python == "" {
		python = "python3"
	}
	timeout := vctx.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- interpreter and path come from the build configuration
	cmd := exec.CommandContext(ctx, python, "-m", "py_compile", vctx.ConfPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Failure("py_compile timed out", fmt.Errorf("%w: %w", ErrCompileFailed, ctx.Err()))
		}
		reason := strings.TrimSpace(stderr.String())
		if reason == "" {
			reason = err.Error()
		}
		return Failure(reason, fmt.Errorf("%w: %w", ErrCompileFailed, err))
	}
	return Success()
}
