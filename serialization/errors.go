package serialization

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is matched by every *ParseError.
	ErrParse = errors.New("malformed payload")

	// ErrTypeResolution is matched by every *TypeResolutionError.
	ErrTypeResolution = errors.New("unresolvable type")
)

// ParseError reports a payload that is not valid JSON or does not fit the target field.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", ErrParse, e.Err)
	}
	return fmt.Sprintf("%s at %s: %v", ErrParse, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// TypeResolutionError reports a type tag that cannot be turned into a concrete type.
type TypeResolutionError struct {
	Path     string
	TypeName string
	Reason   string
}

func (e *TypeResolutionError) Error() string {
	msg := fmt.Sprintf("%s %q: %s", ErrTypeResolution, e.TypeName, e.Reason)
	if e.Path != "" {
		msg += " (at " + e.Path + ")"
	}
	return msg
}

func (e *TypeResolutionError) Is(target error) bool { return target == ErrTypeResolution }

// ErrUnsupportedType is returned by Serialize for values that have no tagged JSON form
// (channels, functions, complex numbers, NaN, maps with non-string keys).
var ErrUnsupportedType = errors.New("unsupported type")

var (
	errNotPointer  = errors.New("target must be a non-nil pointer")
	errReservedKey = errors.New(TypeKey + " is a reserved field name")
	errTooDeep     = errors.New("object graph exceeds maximum depth")
)
