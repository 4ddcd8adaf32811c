package provider

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrNoMatchingDelegate    = errors.New("no matching delegate")
	ErrUnsupportedOperation  = errors.New("unsupported operation")
	ErrMixedColumns          = errors.New("bulk insert rows have differing columns")
	ErrViewQuery             = errors.New("views take no projection or selection")
)

// UnsupportedOperationError names the operation a delegate refused and the path it was asked on.
type UnsupportedOperationError struct {
	Op   Op
	Path string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation %s on %s", e.Op, e.Path)
}

func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupportedOperation
}

func unsupported(op Op, path string) error {
	return &UnsupportedOperationError{Op: op, Path: path}
}
