package location

import (
	"errors"
	"fmt"
)

var (
	ErrNoRootLocation    = errors.New("no root location")
	ErrDuplicateLocation = errors.New("duplicate location")
	ErrLocationCycle     = errors.New("location cycle")
	ErrInvalidDepth      = errors.New("invalid depth")
	ErrUnknownLocation   = errors.New("unknown location")
)

// NoRootLocationError is returned when the scan has zero or several null-parent rows.
type NoRootLocationError struct {
	Roots int
}

func (e *NoRootLocationError) Error() string {
	if e.Roots == 0 {
		return "no root location found"
	}
	return fmt.Sprintf("expected a single root location, found %d", e.Roots)
}

func (e *NoRootLocationError) Is(target error) bool {
	return target == ErrNoRootLocation
}

// LocationFetchError wraps failures reading or structuring location rows.
type LocationFetchError struct {
	Err error
}

func (e *LocationFetchError) Error() string {
	return fmt.Sprintf("failed to fetch locations: %v", e.Err)
}

func (e *LocationFetchError) Unwrap() error { return e.Err }

// LocationNameFetchError wraps failures reading location names.
type LocationNameFetchError struct {
	Err error
}

func (e *LocationNameFetchError) Error() string {
	return fmt.Sprintf("failed to fetch location names: %v", e.Err)
}

func (e *LocationNameFetchError) Unwrap() error { return e.Err }
