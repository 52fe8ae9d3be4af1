package strategy

import (
	"errors"
	"fmt"
)

// ErrCannotDetermineNetwork is returned when security groups are requested
// without a network and the groups do not reveal one.
var ErrCannotDetermineNetwork = errors.New("cannot determine network")

// StateError reports that a resource did not reach or leave a state, or that
// the request is inconsistent with the resources it names.
type StateError struct {
	Op  string
	ID  string
	Err error
}

func (e *StateError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// IsStateError reports whether err contains a StateError.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// errNotReached is the cause of a StateError raised by a poll timeout.
var errNotReached = errors.New("target state not reached in time")

// CleanupError represents accumulated errors from cleanup operations.
type CleanupError struct {
	Errors []error
}

func (e *CleanupError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("cleanup encountered %d errors: %v", len(e.Errors), e.Errors)
}

func (e *CleanupError) Unwrap() error {
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return errors.Join(e.Errors...)
}

func (e *CleanupError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

func (e *CleanupError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrOrNil returns e when it holds errors.
func (e *CleanupError) ErrOrNil() error {
	if e == nil || !e.HasErrors() {
		return nil
	}
	return e
}
