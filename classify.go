package morph

import (
	"reflect"
	"time"
)

// Class is the structural category a type falls into for mapping purposes.
type Class uint8

const (
	// ClassScalar values are copied atomically: numbers, booleans, strings,
	// times, enums, pointers to those, and opaque interfaces.
	ClassScalar Class = iota + 1

	// ClassArray covers Go slices and fixed-size arrays.
	ClassArray

	// ClassCollection covers maps and types implementing Collection.
	ClassCollection

	// ClassRecord covers structs and pointers to structs.
	ClassRecord
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassScalar:
		return "scalar"
	case ClassArray:
		return "array"
	case ClassCollection:
		return "collection"
	case ClassRecord:
		return "record"
	default:
		return "unknown"
	}
}

var (
	timeType       = reflect.TypeFor[time.Time]()
	collectionType = reflect.TypeFor[Collection]()
)

// Classify reports the structural class of t. Classification looks at the
// shape of the type, never at its name. Classify is total: anything that is
// not an array, collection, or record is treated as a scalar.
func Classify(t reflect.Type) Class {
	if t == nil {
		return ClassScalar
	}

	if isCollectionType(t) {
		return ClassCollection
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return ClassArray
	case reflect.Map:
		return ClassCollection
	case reflect.Struct:
		if t == timeType {
			return ClassScalar
		}
		return ClassRecord
	case reflect.Pointer:
		if elem := t.Elem(); elem.Kind() == reflect.Struct && elem != timeType {
			return ClassRecord
		}
		return ClassScalar
	default:
		return ClassScalar
	}
}

// isCollectionType reports whether t is, or abstracts over, a Collection implementation.
func isCollectionType(t reflect.Type) bool {
	if t.Kind() == reflect.Interface {
		return t.Implements(collectionType)
	}
	return t.Implements(collectionType) || reflect.PointerTo(t).Implements(collectionType)
}

func isScalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	}
	return false
}

// nullable reports whether values of t can hold null.
func nullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// isNull reports whether v is absent or a nil reference.
func isNull(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	if nullable(v.Type()) {
		return v.IsNil()
	}
	return false
}

// isEmpty reports whether v is null, a zero-length string, array, or
// collection, or a numeric zero.
func isEmpty(v reflect.Value) bool {
	if isNull(v) {
		return true
	}
	if c, ok := asCollection(v); ok {
		return c.Len() == 0
	}
	switch v.Kind() {
	case reflect.Pointer:
		elem := v.Elem()
		if isScalarKind(elem.Kind()) {
			return isEmpty(elem)
		}
		return false
	case reflect.Interface:
		return isEmpty(v.Elem())
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return v.Len() == 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return v.IsZero()
	}
	return false
}
