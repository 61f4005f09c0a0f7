package morph

import (
	"errors"
	"fmt"
	"reflect"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrTypeMismatch indicates a source field value cannot be reconciled with the target field type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrConfiguration indicates a declared converter, predicate, or target type is unusable.
	ErrConfiguration = errors.New("invalid mapping configuration")

	// ErrUnknownConverter indicates a field references a converter name the engine does not know.
	ErrUnknownConverter = errors.New("unknown converter")

	// ErrUnknownCollection indicates a field references a collection factory the engine does not know.
	ErrUnknownCollection = errors.New("unknown collection factory")

	// ErrInvalidTag indicates a struct tag has an invalid format or value.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrPredicate indicates a custom skip predicate is missing, ill-shaped, or faulted.
	ErrPredicate = errors.New("skip predicate failed")

	// ErrInstantiate indicates a target value could not be constructed.
	ErrInstantiate = errors.New("cannot instantiate")

	// ErrConvert indicates a bound converter returned an error.
	ErrConvert = errors.New("convert failed")

	// ErrCycle indicates a source object graph refers back to an object already being mapped.
	ErrCycle = errors.New("cyclic object graph")

	// ErrNilTarget indicates MapTo was called without a target.
	ErrNilTarget = errors.New("nil target")

	// ErrNotRecord indicates a mapper was requested for a type that is not a struct.
	ErrNotRecord = errors.New("not a record type")
)

// TypeMismatchError reports a pair of concrete types the dispatcher could not reconcile.
type TypeMismatchError struct {
	Source reflect.Type // Concrete source type
	Target reflect.Type // Concrete target type
	Field  string       // Target field path, empty at the top level
}

func (e *TypeMismatchError) Error() string {
	msg := fmt.Sprintf("expected type of %s, but got: %s", typeName(e.Target), typeName(e.Source))
	if e.Field != "" {
		return fmt.Sprintf("%s: field %s: %s", ErrTypeMismatch.Error(), e.Field, msg)
	}
	return fmt.Sprintf("%s: %s", ErrTypeMismatch.Error(), msg)
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

// ConfigError represents a mapping configuration error.
// It wraps a sentinel error with the type and field that declared the bad configuration.
type ConfigError struct {
	Err    error        // Underlying sentinel error (ErrUnknownConverter, etc.)
	Type   reflect.Type // Type that owns the field, may be nil
	Field  string       // Field name that triggered the error
	Detail string       // Offending value (converter name, tag text, method name)
	Cause  error        // Original error, if any
}

func (e *ConfigError) Error() string {
	msg := e.Err.Error()
	if e.Detail != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Detail)
	}
	switch {
	case e.Type != nil && e.Field != "":
		msg = fmt.Sprintf("%s (field %s.%s)", msg, typeName(e.Type), e.Field)
	case e.Type != nil:
		msg = fmt.Sprintf("%s (type %s)", msg, typeName(e.Type))
	case e.Field != "":
		msg = fmt.Sprintf("%s (field %s)", msg, e.Field)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes both the specific sentinel and ErrConfiguration.
func (e *ConfigError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, ErrConfiguration, e.Cause}
	}
	return []error{e.Err, ErrConfiguration}
}

// FieldError represents a failure while mapping a single field.
type FieldError struct {
	Err   error  // Underlying sentinel error (ErrConvert, ErrCycle)
	Field string // Target field path
	Cause error  // Original error from the converter
}

func (e *FieldError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s field %s: %v", e.Err.Error(), e.Field, e.Cause)
	}
	return fmt.Sprintf("%s field %s", e.Err.Error(), e.Field)
}

func (e *FieldError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// newMismatch creates a TypeMismatchError for a source/target pair.
func newMismatch(src, dst reflect.Type, field string) error {
	return &TypeMismatchError{Source: src, Target: dst, Field: field}
}

// newConfigError creates a ConfigError for a field of t.
func newConfigError(sentinel error, t reflect.Type, field, detail string, cause error) error {
	return &ConfigError{
		Err:    sentinel,
		Type:   t,
		Field:  field,
		Detail: detail,
		Cause:  cause,
	}
}

// newFieldError creates a FieldError for field transformation failures.
func newFieldError(sentinel error, field string, cause error) error {
	return &FieldError{
		Err:   sentinel,
		Field: field,
		Cause: cause,
	}
}

// atPath prefixes the field path of a mismatch or field error raised below seg.
func atPath(err error, seg string) error {
	switch e := err.(type) {
	case *TypeMismatchError:
		return &TypeMismatchError{Source: e.Source, Target: e.Target, Field: joinPath(seg, e.Field)}
	case *FieldError:
		return &FieldError{Err: e.Err, Field: joinPath(seg, e.Field), Cause: e.Cause}
	}
	return err
}

func joinPath(parent, child string) string {
	switch {
	case child == "":
		return parent
	case parent == "":
		return child
	case child[0] == '[':
		return parent + child
	}
	return parent + "." + child
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
