package morph

import (
	"fmt"
	"reflect"
)

// convertField applies the field's bound converter, or dispatches on the
// classified type pair. The result is always assignable to dst.
func (e *Engine) convertField(c *call, fd *FieldDescriptor, v reflect.Value, dst reflect.Type) (reflect.Value, error) {
	if fd.Converter != nil {
		return applyConverter(fd.Converter, v, dst)
	}

	factory := c.factories[fd.Name]
	if factory == nil && fd.Collection != "" {
		fn, err := e.collection(fd.Collection)
		if err != nil {
			return reflect.Value{}, newConfigError(ErrUnknownCollection, nil, fd.Name, fd.Collection, nil)
		}
		factory = fn
	}
	return e.convert(c, v, dst, factory)
}

// applyConverter invokes c on the raw value and adapts the result to dst.
func applyConverter(c Converter, v reflect.Value, dst reflect.Type) (reflect.Value, error) {
	var in any
	if !isNull(v) && v.CanInterface() {
		in = v.Interface()
	}

	out, err := c.Convert(in)
	if err != nil {
		return reflect.Value{}, newFieldError(ErrConvert, "", err)
	}

	ov := reflect.ValueOf(out)
	if !ov.IsValid() {
		return reflect.Zero(dst), nil
	}
	res, ok := adapt(ov, dst)
	if !ok {
		return reflect.Value{}, newMismatch(ov.Type(), dst, "")
	}
	if !res.IsValid() {
		return reflect.Zero(dst), nil
	}
	return res, nil
}

// convert dispatches v to dst by classification. factory, when set,
// constructs the target of a collection conversion.
func (e *Engine) convert(c *call, v reflect.Value, dst reflect.Type, factory CollectionFunc) (reflect.Value, error) {
	if v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}

	if !isNull(v) {
		if tc := e.typeConverter(v.Type(), dst); tc != nil {
			out, err := tc.Convert(v.Interface(), dst)
			if err != nil {
				return reflect.Value{}, newFieldError(ErrConvert, "", err)
			}
			ov := reflect.ValueOf(out)
			if !ov.IsValid() {
				return reflect.Zero(dst), nil
			}
			if !ov.Type().AssignableTo(dst) {
				return reflect.Value{}, newMismatch(ov.Type(), dst, "")
			}
			return ov, nil
		}
	}

	if isNull(v) {
		return reflect.Zero(dst), nil
	}

	dstClass := Classify(dst)
	if dst.Kind() == reflect.Interface && dstClass != ClassCollection {
		if v.Type().AssignableTo(dst) {
			return v, nil
		}
		return reflect.Value{}, newMismatch(v.Type(), dst, "")
	}

	switch srcClass := Classify(v.Type()); {
	case srcClass == ClassScalar && dstClass == ClassScalar:
		return convertScalar(v, dst)
	case srcClass == ClassArray && dstClass == ClassArray:
		return e.convertArray(c, v, dst)
	case srcClass == ClassCollection && dstClass == ClassCollection:
		if v.Kind() == reflect.Map && dst.Kind() == reflect.Map {
			return e.convertMap(c, v, dst)
		}
		return e.convertCollection(c, v, dst, factory)
	case srcClass == ClassRecord && dstClass == ClassRecord:
		return e.convertRecord(c, v, dst)
	}
	return reflect.Value{}, newMismatch(v.Type(), dst, "")
}

// convertScalar passes identical types through and boxes or unboxes a single
// pointer level. Anything else is a mismatch.
func convertScalar(v reflect.Value, dst reflect.Type) (reflect.Value, error) {
	vt := v.Type()
	switch {
	case vt == dst:
		if vt.Kind() == reflect.Pointer && !nullable(vt.Elem()) {
			p := reflect.New(vt.Elem())
			p.Elem().Set(v.Elem())
			return p, nil
		}
		return v, nil
	case dst.Kind() == reflect.Pointer && dst.Elem() == vt:
		p := reflect.New(vt)
		p.Elem().Set(v)
		return p, nil
	case vt.Kind() == reflect.Pointer && vt.Elem() == dst:
		return v.Elem(), nil
	}
	return reflect.Value{}, newMismatch(vt, dst, "")
}

// convertArray allocates a target sized to the source and converts each
// element. A scalar element mismatch is reported against the array types.
func (e *Engine) convertArray(c *call, v reflect.Value, dst reflect.Type) (reflect.Value, error) {
	n := v.Len()

	var out reflect.Value
	if dst.Kind() == reflect.Array {
		if n > dst.Len() {
			return reflect.Value{}, newMismatch(v.Type(), dst, "")
		}
		out = reflect.New(dst).Elem()
	} else {
		out = reflect.MakeSlice(dst, n, n)
	}

	elem := dst.Elem()
	for i := 0; i < n; i++ {
		ev, err := e.convert(c, v.Index(i), elem, nil)
		if err != nil {
			return reflect.Value{}, elementError(err, v.Type(), dst, fmt.Sprintf("[%d]", i))
		}
		out.Index(i).Set(ev)
	}
	return out, nil
}

// convertMap copies entries, converting keys and values.
func (e *Engine) convertMap(c *call, v reflect.Value, dst reflect.Type) (reflect.Value, error) {
	out := reflect.MakeMapWithSize(dst, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		seg := fmt.Sprintf("[%v]", iter.Key())
		k, err := e.convert(c, iter.Key(), dst.Key(), nil)
		if err != nil {
			return reflect.Value{}, elementError(err, v.Type(), dst, seg)
		}
		ev, err := e.convert(c, iter.Value(), dst.Elem(), nil)
		if err != nil {
			return reflect.Value{}, elementError(err, v.Type(), dst, seg)
		}
		out.SetMapIndex(k, ev)
	}
	return out, nil
}

// convertCollection resolves the target implementation, then appends each
// converted element. Resolution order: factory, declared concrete type, the
// concrete type of the source.
func (e *Engine) convertCollection(c *call, v reflect.Value, dst reflect.Type, factory CollectionFunc) (reflect.Value, error) {
	src, ok := asCollection(v)
	if !ok {
		return reflect.Value{}, newMismatch(v.Type(), dst, "")
	}

	target, result, err := newCollection(v.Type(), dst, factory)
	if err != nil {
		return reflect.Value{}, err
	}

	var elem reflect.Type
	if et, ok := target.(ElemTyper); ok {
		elem = et.ElemType()
	}

	i := 0
	src.Range(func(item any) bool {
		seg := fmt.Sprintf("[%d]", i)
		i++

		iv := reflect.ValueOf(item)
		et := elem
		if et == nil && iv.IsValid() {
			// Untyped targets keep each element's own type.
			et = iv.Type()
		}
		if et != nil {
			var cv reflect.Value
			if cv, err = e.convert(c, iv, et, nil); err != nil {
				err = elementError(err, v.Type(), dst, seg)
				return false
			}
			item = cv.Interface()
		}
		if aerr := target.Append(item); aerr != nil {
			err = atPath(newMismatch(reflect.TypeOf(item), dst, ""), seg)
			return false
		}
		return true
	})
	if err != nil {
		return reflect.Value{}, err
	}
	return result, nil
}

// newCollection constructs an empty target collection and the value to
// assign for it.
func newCollection(src, dst reflect.Type, factory CollectionFunc) (Collection, reflect.Value, error) {
	if factory != nil {
		coll := factory()
		rv := reflect.ValueOf(coll)
		if coll == nil || !rv.Type().AssignableTo(dst) {
			return nil, reflect.Value{}, newConfigError(ErrInstantiate, dst, "", "collection factory", nil)
		}
		return coll, rv, nil
	}

	impl := dst
	if dst.Kind() == reflect.Interface {
		if !src.AssignableTo(dst) {
			return nil, reflect.Value{}, newMismatch(src, dst, "")
		}
		impl = src
	}

	if impl.Kind() == reflect.Pointer {
		p := reflect.New(impl.Elem())
		coll, ok := p.Interface().(Collection)
		if !ok {
			return nil, reflect.Value{}, newConfigError(ErrInstantiate, impl, "", "", nil)
		}
		return coll, p, nil
	}

	p := reflect.New(impl)
	coll, ok := p.Interface().(Collection)
	if !ok {
		return nil, reflect.Value{}, newConfigError(ErrInstantiate, impl, "", "", nil)
	}
	return coll, p.Elem(), nil
}

// convertRecord maps v into a fresh instance of dst through the registry.
func (e *Engine) convertRecord(c *call, v reflect.Value, dst reflect.Type) (reflect.Value, error) {
	srcType := v.Type()
	if srcType.Kind() == reflect.Pointer {
		srcType = srcType.Elem()
	}
	dstType := dst
	if dstType.Kind() == reflect.Pointer {
		dstType = dstType.Elem()
	}

	m, err := e.mapping(srcType, dstType)
	if err != nil {
		return reflect.Value{}, err
	}

	out := reflect.New(dstType)
	if err := m.run(c, v, out.Elem()); err != nil {
		return reflect.Value{}, err
	}
	if dst.Kind() == reflect.Pointer {
		return out, nil
	}
	return out.Elem(), nil
}

// elementError relabels a direct element mismatch as a mismatch of the
// containers and prefixes deeper errors with the element path.
func elementError(err error, src, dst reflect.Type, seg string) error {
	if tm, ok := err.(*TypeMismatchError); ok && tm.Field == "" {
		return newMismatch(src, dst, "")
	}
	return atPath(err, seg)
}
