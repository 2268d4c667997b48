package domain

import (
	"errors"
	"fmt"
)

// ErrNoImageConfig indicates a values document without an image section to
// rewrite. The run is marked failed for that service; there is no retry.
var ErrNoImageConfig = errors.New("image configuration not found")

// NotFoundError indicates that a service's chart configuration could not be
// located, e.g. the values file is missing or has no image section.
type NotFoundError struct {
	Service string
	Path    string
}

// NewNotFoundError builds a NotFoundError for a service's values path.
func NewNotFoundError(service, path string) *NotFoundError {
	return &NotFoundError{Service: service, Path: path}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("chart configuration for %q not found at %s", e.Service, e.Path)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
