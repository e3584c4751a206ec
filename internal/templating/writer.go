package templating

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscapes indicates an output path that would leave the output directory.
var ErrPathEscapes = errors.New("output path escapes output directory")

// WriteOptions controls WriteGeneratedFile.
type WriteOptions struct {
	Overwrite bool
	DryRun    bool
}

// WriteResult describes the outcome of WriteGeneratedFile.
type WriteResult struct {
	Path    string
	Written bool
}

// WriteGeneratedFile writes content to relativePath under outputDir.
//
// The function ensures:
//   - The output path stays under outputDir
//   - Parent directories are created if needed
//   - An existing file is left untouched unless Overwrite is set
//   - The destination is replaced atomically (temp file + rename)
//
// In dry-run mode nothing is written, but Written reports whether a write
// would have happened.
func WriteGeneratedFile(outputDir, relativePath, content string, opts WriteOptions) (WriteResult, error) {
	fullPath, err := resolveOutputPath(outputDir, relativePath)
	if err != nil {
		return WriteResult{}, err
	}
	res := WriteResult{Path: fullPath}

	if !opts.Overwrite {
		if _, statErr := os.Stat(fullPath); statErr == nil {
			return res, nil
		} else if !errors.Is(statErr, fs.ErrNotExist) {
			return res, fmt.Errorf("stat output file: %w", statErr)
		}
	}

	res.Written = true
	if opts.DryRun {
		return res, nil
	}
	if err := WriteFileAtomic(fullPath, []byte(content)); err != nil {
		return WriteResult{Path: fullPath}, err
	}
	return res, nil
}

// WriteFileAtomic replaces path with data through a temp file in the same directory.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	// #nosec G302 -- generated documentation sources are readable by the doc toolchain.
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod output file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename output file: %w", err)
	}
	return nil
}

func resolveOutputPath(outputDir, relativePath string) (string, error) {
	if outputDir == "" {
		return "", errors.New("output directory is required")
	}
	if relativePath == "" {
		return "", errors.New("output path is required")
	}

	cleanRel := filepath.Clean(relativePath)
	if filepath.IsAbs(cleanRel) || cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, relativePath)
	}
	return filepath.Join(outputDir, cleanRel), nil
}
