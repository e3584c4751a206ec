// Package errors provides the classified error primitives used across sphinkydoc.
//
// Every failure that can end a run is mapped to one ErrorCategory, and every
// category has its own process exit code (see CLIErrorAdapter). Per-item
// failures (one module that does not resolve, one template that fails to
// render) are classified too, but callers log and skip them instead of
// propagating.
//
// Key features:
//   - ErrorCategory: resolution, template, filesystem, validation, subprocess, ...
//   - ErrorSeverity: fatal, error, warning, info
//   - ClassifiedError: structured error with category, severity and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - CLIErrorAdapter: exit codes and user-facing formatting
//
// Example usage:
//
//	err := errors.FileSystemError("cannot recreate working directory").
//		WithContext("path", dir).
//		WithCause(rmErr).
//		Build()
package errors
