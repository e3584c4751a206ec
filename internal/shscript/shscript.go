// Package shscript documents shell scripts: options are read statically
// from getopts loops, and help text can be captured by running the script
// in a sandboxed in-process interpreter.
package shscript

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ErrNotShell indicates a file that is not recognised as a shell script.
var ErrNotShell = errors.New("not a shell script")

var shells = map[string]syntax.LangVariant{
	"sh":   syntax.LangPOSIX,
	"dash": syntax.LangPOSIX,
	"ash":  syntax.LangPOSIX,
	"bash": syntax.LangBash,
	"ksh":  syntax.LangMirBSDKorn,
	"mksh": syntax.LangMirBSDKorn,
}

var suffixes = map[string]syntax.LangVariant{
	".sh":   syntax.LangBash,
	".bash": syntax.LangBash,
	".ksh":  syntax.LangMirBSDKorn,
}

// Detect reports the shell dialect of a script. A shebang naming a known
// shell wins over the file suffix.
func Detect(path string, head []byte) (syntax.LangVariant, bool) {
	if lang, ok := shebang(head); ok {
		return lang, true
	}
	lang, ok := suffixes[filepath.Ext(path)]
	return lang, ok
}

func shebang(head []byte) (syntax.LangVariant, bool) {
	line, _, _ := bytes.Cut(head, []byte("\n"))
	if !bytes.HasPrefix(line, []byte("#!")) {
		return 0, false
	}
	fields := strings.Fields(string(line[2:]))
	if len(fields) == 0 {
		return 0, false
	}
	interp := filepath.Base(fields[0])
	if interp == "env" {
		for _, f := range fields[1:] {
			if !strings.HasPrefix(f, "-") {
				interp = f
				break
			}
		}
	}
	lang, ok := shells[interp]
	return lang, ok
}

// Script is a parsed shell script.
type Script struct {
	Path string
	Lang syntax.LangVariant
	File *syntax.File
}

// Load reads and parses a shell script.
func Load(path string) (*Script, error) {
	// #nosec G304 -- script paths are configured by the user.
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	lang, ok := Detect(path, src)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotShell, path)
	}
	return Parse(filepath.Base(path), src, lang)
}

// Parse parses shell source, keeping comments for option help text.
func Parse(name string, src []byte, lang syntax.LangVariant) (*Script, error) {
	parser := syntax.NewParser(syntax.KeepComments(true), syntax.Variant(lang))
	file, err := parser.Parse(bufio.NewReader(bytes.NewReader(src)), name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return &Script{Path: name, Lang: lang, File: file}, nil
}
