package dependencies

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCyclicDependencies is matched by every CyclicDependencyError
	ErrCyclicDependencies = errors.New("cyclic dependencies")

	// ErrEmptyPackageName is returned by Build for a package without a name
	ErrEmptyPackageName = errors.New("package name is required")

	// ErrInvariantViolation is returned when an operation is attempted on a graph
	// that does not satisfy its preconditions
	ErrInvariantViolation = errors.New("graph invariant violated")
)

// CyclicDependencyError reports a dependency cycle. Cycle starts and ends with the same package.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Cycle) == 0 {
		return ErrCyclicDependencies.Error()
	}
	return fmt.Sprintf("%v: %s", ErrCyclicDependencies, strings.Join(e.Cycle, " -> "))
}

// Is matches ErrCyclicDependencies
func (e *CyclicDependencyError) Is(target error) bool {
	return target == ErrCyclicDependencies
}

// DuplicatePackageError reports two or more packages declaring the same name
type DuplicatePackageError struct {
	Name string
	Dirs []string
}

func (e *DuplicatePackageError) Error() string {
	return fmt.Sprintf("duplicate package name %q declared in %s", e.Name, strings.Join(e.Dirs, ", "))
}
