package provider

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by every error caused by a missing resource.
var ErrNotFound = errors.New("resource not found")

// IsNotFound reports whether err was caused by a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NotFound returns an error wrapping ErrNotFound for the given resource.
func NotFound(kind ResourceKind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
