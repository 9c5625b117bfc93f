package executor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hanpama/graphcache/internal/value"
)

var (
	ErrMissingValue = errors.New("missing value")
	ErrNullValue    = errors.New("null value for non-null field")
	ErrTypeMismatch = errors.New("type mismatch")
)

// MissingValueError reports that the resolver had no value for a field.
type MissingValueError struct {
	Key string
}

func (e *MissingValueError) Error() string { return fmt.Sprintf("missing value for %q", e.Key) }
func (e *MissingValueError) Unwrap() error { return ErrMissingValue }

// NullValueError reports a null received for a non-null type.
type NullValueError struct{}

func (e *NullValueError) Error() string { return ErrNullValue.Error() }
func (e *NullValueError) Unwrap() error { return ErrNullValue }

// TypeMismatchError reports a raw value whose shape does not match the
// expected output type. Err holds the scalar decoder failure when there is
// one.
type TypeMismatchError struct {
	Value    any
	Expected string
	Err      error
}

func (e *TypeMismatchError) Error() string {
	msg := fmt.Sprintf("expected %s, got %s", e.Expected, value.TypeName(e.Value))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TypeMismatchError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTypeMismatch, e.Err}
	}
	return []error{ErrTypeMismatch}
}

// Path is a response path of field response keys (string) and list
// indices (int).
type Path []any

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, elem := range p {
		switch v := elem.(type) {
		case string:
			parts[i] = v
		case int:
			parts[i] = strconv.Itoa(v)
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, ".")
}

// ResultError qualifies an execution failure with the response path it
// happened at.
type ResultError struct {
	Path Path
	Err  error
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("error at path %q: %v", e.Path.String(), e.Err)
}

func (e *ResultError) Unwrap() error { return e.Err }

// wrapAt wraps err with the current path unless it already carries one.
func wrapAt(info *ResolveInfo, err error) error {
	var re *ResultError
	if errors.As(err, &re) {
		return err
	}
	p := make(Path, len(info.ResponsePath))
	copy(p, info.ResponsePath)
	return &ResultError{Path: p, Err: err}
}
