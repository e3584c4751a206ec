package pysource

import "errors"

var (
	// ErrModuleNotFound indicates no search path entry provides the module.
	ErrModuleNotFound = errors.New("module not found")

	// ErrInvalidModuleName indicates a dotted name with a non-identifier part.
	ErrInvalidModuleName = errors.New("invalid module name")

	// ErrSyntax indicates source that tree-sitter could not parse cleanly.
	ErrSyntax = errors.New("python syntax error")

	// ErrConfMissingSetting indicates a configuration file lacking a required assignment.
	ErrConfMissingSetting = errors.New("required configuration setting missing")
)
