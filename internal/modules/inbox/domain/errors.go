package domain

import (
	"errors"
	"fmt"
)

var ErrStoreClosed = errors.New("inbox store is closed")

// NetworkError is a transient failure fetching one source. The source
// contributes nothing for that load.
type NetworkError struct {
	Source Source
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError means the credential was missing, expired or rejected. It is
// never retried.
type AuthError struct {
	Source  Source
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %s", e.Source, e.Message)
}

// PersistenceError reports a failed remote mark-read after the local change
// was rolled back.
type PersistenceError struct {
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist read state of %s: %v", e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
