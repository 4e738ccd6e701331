package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrNotFound               = errors.New("item not found")
	ErrConcurrentModification = errors.New("concurrent modification, retry")
	ErrStorageUnavailable     = errors.New("storage unavailable")
)

var (
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrInvalidArgument)
	ErrDuplicateName     = fmt.Errorf("%w: item name already exists", ErrInvalidArgument)
	ErrQuantityLimit     = fmt.Errorf("%w: quantity exceeds limit", ErrInvalidArgument)
)

// ValidationError maps field names to violation messages.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}
