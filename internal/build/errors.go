package build

import "errors"

// Sentinel errors classifying pipeline failures. They are wrapped with
// context at the call site.
var (
	ErrNoConfig            = errors.New("sphinkydoc: configuration required")
	ErrBuildToolNotFound   = errors.New("sphinkydoc: build tool not found")
	ErrBuildToolFailed     = errors.New("sphinkydoc: build tool failed")
	ErrValidationFailed    = errors.New("sphinkydoc: configuration validation failed")
	ErrWorkingDirMissing   = errors.New("sphinkydoc: working directory missing")
	ErrHTMLIndexUnreadable = errors.New("sphinkydoc: html index unreadable")
)
