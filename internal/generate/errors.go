package generate

import (
	"errors"
	"fmt"
)

// Kind names the document a generator produces.
type Kind string

const (
	KindModule Kind = "module"
	KindScript Kind = "script"
	KindIndex  Kind = "index"
	KindConfig Kind = "config"
)

var (
	// ErrScriptNotFound indicates a configured script path that does not exist.
	ErrScriptNotFound = errors.New("script not found")

	// ErrHelpFailed indicates the --help run of a script failed or timed out.
	ErrHelpFailed = errors.New("script help run failed")
)

// GenerationError reports a document that could not be generated. Subject
// is the module name or script path.
type GenerationError struct {
	Subject string
	Kind    Kind
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s doc for %s: %v", e.Kind, e.Subject, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func generationError(kind Kind, subject string, err error) error {
	if err == nil {
		return nil
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return err
	}
	return &GenerationError{Subject: subject, Kind: kind, Err: err}
}
