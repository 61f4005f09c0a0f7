package morph

import (
	"fmt"
	"reflect"
)

// Hook interfaces let a target type take part in its own mapping. The
// mapper calls them on a pointer to the target record.

// BeforeMapper runs before any field of the target is written.
type BeforeMapper interface {
	// BeforeMap receives a pointer to the source record.
	BeforeMap(source any) error
}

// AfterMapper runs after every field of the target has been written. Use it
// for derived fields that have no single source correspondent.
type AfterMapper interface {
	// AfterMap receives a pointer to the source record.
	AfterMap(source any) error
}

func before(tv, sv reflect.Value) error {
	h, ok := tv.Addr().Interface().(BeforeMapper)
	if !ok {
		return nil
	}
	if err := h.BeforeMap(sv.Addr().Interface()); err != nil {
		return fmt.Errorf("before map %s: %w", typeName(tv.Type()), err)
	}
	return nil
}

func after(tv, sv reflect.Value) error {
	h, ok := tv.Addr().Interface().(AfterMapper)
	if !ok {
		return nil
	}
	if err := h.AfterMap(sv.Addr().Interface()); err != nil {
		return fmt.Errorf("after map %s: %w", typeName(tv.Type()), err)
	}
	return nil
}
