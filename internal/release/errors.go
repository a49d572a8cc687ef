package release

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ConflictError blocks a delete while other records still depend on the
// target. References name the dependents so the caller can resolve or
// force.
type ConflictError struct {
	Reason     string
	References []string
}

func (e *ConflictError) Error() string {
	if len(e.References) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s (referenced by: %s)", e.Reason, strings.Join(e.References, ", "))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
