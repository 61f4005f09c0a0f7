package morph

import (
	"context"
	"fmt"
	"reflect"

	"github.com/zoobzio/sentinel"
)

// pairKey identifies a mapping by its source and target record types.
type pairKey struct {
	src reflect.Type
	dst reflect.Type
}

// For returns the mapper for S to T, building it on first use. S and T must be
// struct types. Every caller observes the same *Mapper for a given pair.
func For[S, T any](e *Engine) (*Mapper[S, T], error) {
	key := pairKey{src: reflect.TypeFor[S](), dst: reflect.TypeFor[T]()}

	// Fast path: typed wrapper already published
	if cached, ok := e.typed.Load(key); ok {
		return cached.(*Mapper[S, T]), nil
	}

	for _, t := range []reflect.Type{key.src, key.dst} {
		if t.Kind() != reflect.Struct {
			return nil, newConfigError(ErrNotRecord, t, "", "", nil)
		}
	}

	sentinel.Scan[S]()
	sentinel.Scan[T]()

	m, err := e.mapping(key.src, key.dst)
	if err != nil {
		return nil, err
	}

	actual, _ := e.typed.LoadOrStore(key, &Mapper[S, T]{mapping: m})
	return actual.(*Mapper[S, T]), nil
}

// Mapping returns the untyped mapping between two record types. Pointer to
// struct types are accepted and resolved to their element.
func (e *Engine) Mapping(src, dst reflect.Type) (*Mapping, error) {
	src, err := recordType(src)
	if err != nil {
		return nil, err
	}
	if dst, err = recordType(dst); err != nil {
		return nil, err
	}
	return e.mapping(src, dst)
}

// Map copies src into dst, a non-nil pointer to a struct, using the mapping
// between their runtime types.
func (e *Engine) Map(src, dst any, opts ...MapOption) error {
	dv := reflect.ValueOf(dst)
	if !dv.IsValid() || dv.Kind() != reflect.Pointer || dv.IsNil() {
		return ErrNilTarget
	}
	if src == nil {
		return nil
	}
	m, err := e.Mapping(reflect.TypeOf(src), dv.Type())
	if err != nil {
		return err
	}
	return m.MapTo(src, dst, opts...)
}

// mapping returns the registered mapping for a struct pair, building it at
// most once per key. Concurrent builders for the same key share one result.
func (e *Engine) mapping(src, dst reflect.Type) (*Mapping, error) {
	key := pairKey{src: src, dst: dst}

	// Fast path: read-lock cache check
	e.mu.RLock()
	if m, ok := e.mappings[key]; ok {
		e.mu.RUnlock()
		return m, nil
	}
	e.mu.RUnlock()

	// Slow path: one builder per key
	v, err, _ := e.flight.Do(fmt.Sprintf("%p>%p", src, dst), func() (any, error) {
		// Double-check pattern
		e.mu.RLock()
		m, ok := e.mappings[key]
		e.mu.RUnlock()
		if ok {
			return m, nil
		}

		if _, err := e.cache.entry(src); err != nil {
			return nil, err
		}
		if _, err := e.cache.entry(dst); err != nil {
			return nil, err
		}

		m = &Mapping{engine: e, src: src, dst: dst}
		e.mu.Lock()
		if existing, ok := e.mappings[key]; ok {
			m = existing
		} else {
			e.mappings[key] = m
		}
		e.mu.Unlock()

		emitMapperCreated(context.Background(), typeName(src), typeName(dst))
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Mapping), nil
}

// recordType resolves t to a struct type.
func recordType(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, newConfigError(ErrNotRecord, nil, "", "", nil)
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == timeType {
		return nil, newConfigError(ErrNotRecord, t, "", "", nil)
	}
	return t, nil
}
