package build

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"git.home.luguber.info/inful/sphinkydoc/internal/metrics"
)

// DefaultBuildTimeout bounds the build tool when no timeout is set.
const DefaultBuildTimeout = 10 * time.Minute

// Renderer performs the final site build inside the working directory.
// BinaryRenderer runs sphinx-build.
type Renderer interface {
	Execute(ctx context.Context, workDir string) error
}

// BinaryRenderer invokes an external build tool, by default
// `sphinx-build -b html . ../html`.
type BinaryRenderer struct {
	Binary   string
	Args     []string
	Timeout  time.Duration
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// DefaultArgs build HTML from the working dir into its sibling html dir.
var DefaultArgs = []string{"-b", "html", ".", "../html"}

func (b *BinaryRenderer) Execute(ctx context.Context, workDir string) error {
	log := b.Logger
	if log == nil {
		log = slog.Default()
	}
	binary := b.Binary
	if binary == "" {
		binary = "sphinx-build"
	}
	args := b.Args
	if len(args) == 0 {
		args = DefaultArgs
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultBuildTimeout
	}

	path, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBuildToolNotFound, binary, err)
	}
	if fi, err := os.Stat(workDir); err != nil || !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrWorkingDirMissing, workDir)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- binary and args come from the build configuration
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log.Debug("Invoking build tool", "binary", path, "args", strings.Join(args, " "), "dir", workDir)

	start := time.Now()
	err = cmd.Run()
	metrics.OrNoop(b.Recorder).ObserveSubprocess(binary, time.Since(start), err == nil)

	outStr := stdout.String()
	errStr := stderr.String()
	if outStr != "" {
		log.Debug("build tool stdout", "output", outStr)
	}
	if errStr != "" {
		log.Warn("build tool stderr", "error_output", errStr)
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: timed out after %s", ErrBuildToolFailed, timeout)
		}
		output := strings.TrimSpace(errStr)
		if output == "" {
			output = strings.TrimSpace(outStr)
		}
		if output != "" {
			return fmt.Errorf("%w: %w: %s", ErrBuildToolFailed, err, output)
		}
		return fmt.Errorf("%w: %w", ErrBuildToolFailed, err)
	}
	return nil
}
