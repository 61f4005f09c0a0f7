package morph

import (
	"fmt"
	"reflect"
)

// Converter transforms a raw field value before it is written. A Converter
// bound to a field replaces every other conversion rule for that field.
type Converter interface {
	// Convert returns the value to assign. v is nil for null sources.
	Convert(v any) (any, error)
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(v any) (any, error)

// Convert calls f(v).
func (f ConverterFunc) Convert(v any) (any, error) {
	return f(v)
}

// Convert adapts a typed function to a Converter. Pointer and value forms of S
// are accepted interchangeably; null input reaches fn as the zero S.
//
//	e.RegisterConverter("cents", morph.Convert(func(f float64) (int64, error) {
//	    return int64(math.Round(f * 100)), nil
//	}))
func Convert[S, D any](fn func(S) (D, error)) Converter {
	st := reflect.TypeFor[S]()
	return ConverterFunc(func(v any) (any, error) {
		var s S
		if v != nil {
			in, ok := adapt(reflect.ValueOf(v), st)
			if !ok {
				return nil, newMismatch(reflect.TypeOf(v), st, "")
			}
			if in.IsValid() {
				s = in.Interface().(S)
			}
		}
		d, err := fn(s)
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}

// TypeConverter converts between type pairs the structural rules do not
// reconcile. Engines consult registered TypeConverters after a field's own
// converter and before classification.
type TypeConverter interface {
	// Supports reports whether values of src can be converted to dst.
	Supports(src, dst reflect.Type) bool

	// Convert returns v converted to dst.
	Convert(v any, dst reflect.Type) (any, error)
}

// RegisterConverter makes c available to tags and specs under name.
// Registering replaces any converter of the same name.
func (e *Engine) RegisterConverter(name string, c Converter) {
	e.convMu.Lock()
	e.converters[name] = c
	e.convMu.Unlock()
	e.cache.purge()
}

// RegisterCollection makes fn available to tags and specs under name.
func (e *Engine) RegisterCollection(name string, fn CollectionFunc) {
	e.convMu.Lock()
	e.collections[name] = fn
	e.convMu.Unlock()
	e.cache.purge()
}

// RegisterTypeConverter appends tc to the engine's type converters.
func (e *Engine) RegisterTypeConverter(tc TypeConverter) {
	e.convMu.Lock()
	e.typeConverters = append(e.typeConverters, tc)
	e.convMu.Unlock()
}

// HasConverter reports whether a converter is registered under name.
func (e *Engine) HasConverter(name string) bool {
	_, err := e.converter(name)
	return err == nil
}

// HasCollection reports whether a collection factory is registered under name.
func (e *Engine) HasCollection(name string) bool {
	_, err := e.collection(name)
	return err == nil
}

func (e *Engine) converter(name string) (Converter, error) {
	e.convMu.RLock()
	defer e.convMu.RUnlock()
	c, ok := e.converters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConverter, name)
	}
	return c, nil
}

func (e *Engine) collection(name string) (CollectionFunc, error) {
	e.convMu.RLock()
	defer e.convMu.RUnlock()
	fn, ok := e.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return fn, nil
}

// typeConverter returns the first registered converter supporting src to dst.
func (e *Engine) typeConverter(src, dst reflect.Type) TypeConverter {
	e.convMu.RLock()
	defer e.convMu.RUnlock()
	for _, tc := range e.typeConverters {
		if tc.Supports(src, dst) {
			return tc
		}
	}
	return nil
}

// adapt makes v assignable to dst by identity or a single box/unbox step.
// A nil pointer unboxes to the invalid Value.
func adapt(v reflect.Value, dst reflect.Type) (reflect.Value, bool) {
	vt := v.Type()
	switch {
	case vt.AssignableTo(dst):
		return v, true
	case dst.Kind() == reflect.Pointer && vt.AssignableTo(dst.Elem()):
		p := reflect.New(dst.Elem())
		p.Elem().Set(v)
		return p, true
	case vt.Kind() == reflect.Pointer && vt.Elem().AssignableTo(dst):
		if v.IsNil() {
			return reflect.Value{}, true
		}
		return v.Elem(), true
	}
	return reflect.Value{}, false
}
