package caps

import "errors"

var (
	// ErrListSource indicates the caps source directory could not be listed.
	ErrListSource = errors.New("caps source directory listing failed")

	// ErrReadCapsFile indicates reading the body of a caps file failed.
	ErrReadCapsFile = errors.New("caps file read failed")

	// ErrDocsDirWalk indicates traversal of the additional docs directory failed.
	ErrDocsDirWalk = errors.New("docs directory walk failed")

	// ErrNoEnvironment indicates a Classifier without a templating environment.
	ErrNoEnvironment = errors.New("templating environment is required")
)
