package media

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the image reference is empty or names no stored object
	ErrNotFound = errors.New("media not found")

	// ErrStorageUnavailable indicates the primary store failed while fetching metadata or signing
	ErrStorageUnavailable = errors.New("media storage unavailable")
)

// ResolveError carries the image reference and step that failed
type ResolveError struct {
	Ref string
	Op  string
	Err error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("media %s failed for %q: %v", e.Op, e.Ref, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

func newResolveError(ref, op string, kind, cause error) error {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}
	return &ResolveError{Ref: ref, Op: op, Err: err}
}
