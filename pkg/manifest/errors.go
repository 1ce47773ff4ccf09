package manifest

import (
	"errors"
	"fmt"
)

// Load error kinds. A LoadError matches its kind with errors.Is.
var (
	ErrPackagesDirRead      = errors.New("cannot read packages directory")
	ErrPackagesDirEntryRead = errors.New("cannot read packages directory entry")
	ErrManifestRead         = errors.New("cannot read manifest")
	ErrManifestDecode       = errors.New("malformed manifest")
)

// LoadError reports a failure to load manifests, identifying the offending path
type LoadError struct {
	Op   error
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Op, e.Path)
	}
	return fmt.Sprintf("%v: %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error
func (e *LoadError) Is(target error) bool {
	return target == e.Op
}
