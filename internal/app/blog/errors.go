// Package blog holds the services behind every blog endpoint: identity,
// the post lifecycle, and contact threads. Each operation takes the acting
// identity explicitly and reports failures as the sentinel errors below.
package blog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrDuplicateUsername    = errors.New("username already exists")
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrSlugConflict         = errors.New("a post with this title already exists")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrUnsupportedMediaType = errors.New("unsupported file type")
	ErrLastAdmin            = errors.New("cannot remove the last administrator")

	// ErrTransient wraps storage failures. It never describes the caller's input.
	ErrTransient = errors.New("storage unavailable")
)

// ValidationError carries per-field messages. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = e.Fields[k]
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func invalidFields(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func transient(err error) error {
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
