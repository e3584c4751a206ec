package templating

import (
	"errors"
	"fmt"
)

var (
	// ErrTemplateNotFound indicates no source provides a template by the requested name.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrUnknownExtension indicates a manifest names an extension that was never registered.
	ErrUnknownExtension = errors.New("unknown template extension")

	// ErrInvalidManifest indicates a _template.yaml that cannot be decoded.
	ErrInvalidManifest = errors.New("invalid template manifest")

	// ErrHelperNotFound indicates invoke was called for a helper no source defines.
	ErrHelperNotFound = errors.New("template helper not defined")
)

// RenderError reports a template that failed to parse or execute, including
// references to context keys that were not supplied.
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render template %q: %v", e.Template, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
