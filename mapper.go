package morph

import (
	"context"
	"reflect"
	"strconv"
	"time"
)

// MapOption configures a single map call.
type MapOption func(*call)

// Groups activates groups for the call, in addition to the engine defaults.
func Groups(groups ...Group) MapOption {
	return func(c *call) {
		c.groupList = append(c.groupList, groups...)
	}
}

// Policy sets the null/empty policy for fields whose rule leaves it at default.
func Policy(p NullPolicy) MapOption {
	return func(c *call) {
		c.policy = p
	}
}

// CollectionFactory constructs the collection for every target field named
// field. It overrides declared factories and the mirror rule.
func CollectionFactory(field string, fn CollectionFunc) MapOption {
	return func(c *call) {
		if c.factories == nil {
			c.factories = make(map[string]CollectionFunc)
		}
		c.factories[field] = fn
	}
}

// Context sets the context passed to emitted signals.
func Context(ctx context.Context) MapOption {
	return func(c *call) {
		c.ctx = ctx
	}
}

// call is the state of one map invocation.
type call struct {
	ctx       context.Context
	groupList []Group
	groups    groupSet
	policy    NullPolicy
	factories map[string]CollectionFunc

	// visiting holds source pointers on the current recursion path.
	visiting map[visit]struct{}
	written  int
}

type visit struct {
	ptr uintptr
	typ reflect.Type
}

func (e *Engine) newCall(opts []MapOption) *call {
	c := &call{
		ctx:    context.Background(),
		policy: e.policy,
	}
	c.groupList = append(c.groupList, e.groups...)
	for _, opt := range opts {
		opt(c)
	}
	c.groups = newGroupSet(c.groupList)
	return c
}

// enter records a source pointer on the recursion path. It reports false
// when the pointer is already being mapped.
func (c *call) enter(v reflect.Value) (visit, bool) {
	key := visit{ptr: v.Pointer(), typ: v.Type()}
	if _, ok := c.visiting[key]; ok {
		return key, false
	}
	if c.visiting == nil {
		c.visiting = make(map[visit]struct{})
	}
	c.visiting[key] = struct{}{}
	return key, true
}

func (c *call) leave(key visit) {
	delete(c.visiting, key)
}

// Mapping is the compiled field correspondence for one (source, target)
// record pair. It holds no accessors itself; they are fetched from the
// engine's cache on each call, so a live Mapping never pins cache entries.
type Mapping struct {
	engine *Engine
	src    reflect.Type
	dst    reflect.Type
}

// Source returns the source record type.
func (m *Mapping) Source() reflect.Type { return m.src }

// Target returns the target record type.
func (m *Mapping) Target() reflect.Type { return m.dst }

// Map returns a new *Target populated from src, which may be a Source value
// or pointer. A nil pointer maps to a nil result.
func (m *Mapping) Map(src any, opts ...MapOption) (any, error) {
	sv, err := m.sourceValue(src)
	if err != nil || !sv.IsValid() {
		return nil, err
	}
	out := reflect.New(m.dst)
	if err := m.exec(m.engine.newCall(opts), sv, out.Elem()); err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

// MapTo populates dst, which must be a non-nil *Target.
func (m *Mapping) MapTo(src, dst any, opts ...MapOption) error {
	dv := reflect.ValueOf(dst)
	if !dv.IsValid() || (dv.Kind() == reflect.Pointer && dv.IsNil()) {
		return ErrNilTarget
	}
	if dv.Type() != reflect.PointerTo(m.dst) {
		return newMismatch(dv.Type(), reflect.PointerTo(m.dst), "")
	}
	sv, err := m.sourceValue(src)
	if err != nil || !sv.IsValid() {
		return err
	}
	return m.exec(m.engine.newCall(opts), sv, dv.Elem())
}

func (m *Mapping) sourceValue(src any) (reflect.Value, error) {
	sv := reflect.ValueOf(src)
	if !sv.IsValid() {
		return reflect.Value{}, nil
	}
	switch sv.Type() {
	case reflect.PointerTo(m.src):
		if sv.IsNil() {
			return reflect.Value{}, nil
		}
		return sv, nil
	case m.src:
		return sv, nil
	}
	return reflect.Value{}, newMismatch(sv.Type(), m.src, "")
}

// exec runs one top-level mapping and emits its completion signal.
func (m *Mapping) exec(c *call, sv, tv reflect.Value) error {
	start := time.Now()
	err := m.run(c, sv, tv)
	emitMapComplete(c.ctx, typeName(m.src), typeName(m.dst), time.Since(start), c.written, err)
	return err
}

// run maps source value sv (a struct or pointer to struct) into the
// addressable target struct tv, in the target's declared field order.
func (m *Mapping) run(c *call, sv, tv reflect.Value) error {
	if sv.Kind() == reflect.Pointer {
		key, ok := c.enter(sv)
		if !ok {
			return newFieldError(ErrCycle, "", nil)
		}
		defer c.leave(key)
		sv = sv.Elem()
	}
	if !sv.CanAddr() {
		tmp := reflect.New(sv.Type()).Elem()
		tmp.Set(sv)
		sv = tmp
	}

	srcEntry, err := m.engine.cache.entry(m.src)
	if err != nil {
		return err
	}
	dstEntry, err := m.engine.cache.entry(m.dst)
	if err != nil {
		return err
	}

	if err := before(tv, sv); err != nil {
		return err
	}

	for i := range dstEntry.desc.Fields {
		fd := &dstEntry.desc.Fields[i]

		r := srcEntry.reader(fd.Alias)
		if r == nil {
			continue
		}
		w := dstEntry.writer(fd)

		raw := r.Read(sv)
		skip, err := shouldSkip(fd.Ignore, c.groups, c.policy, raw, tv, sv)
		if err != nil {
			return newConfigError(ErrPredicate, m.dst, fd.Name, "", err)
		}
		if skip {
			continue
		}

		out, err := m.engine.convertField(c, fd, raw, w.Type)
		if err != nil {
			return atPath(err, fd.Name)
		}
		if w.Write(tv, out) {
			c.written++
		}
	}

	return after(tv, sv)
}

// Mapper is the typed form of a Mapping. Mappers are obtained from For or Use
// and are safe for concurrent use.
type Mapper[S, T any] struct {
	mapping *Mapping
}

// Mapping returns the untyped mapping behind m.
func (m *Mapper[S, T]) Mapping() *Mapping { return m.mapping }

// Map returns a new T populated from src. A nil src yields nil.
func (m *Mapper[S, T]) Map(src *S, opts ...MapOption) (*T, error) {
	if src == nil {
		return nil, nil
	}
	dst := new(T)
	if err := m.MapTo(src, dst, opts...); err != nil {
		return nil, err
	}
	return dst, nil
}

// MapTo populates dst from src. Fields without a source correspondent, and
// skipped fields, keep their current value. A nil src leaves dst untouched.
func (m *Mapper[S, T]) MapTo(src *S, dst *T, opts ...MapOption) error {
	if dst == nil {
		return ErrNilTarget
	}
	if src == nil {
		return nil
	}
	return m.mapping.exec(m.mapping.engine.newCall(opts), reflect.ValueOf(src), reflect.ValueOf(dst).Elem())
}

// MapAll maps every element of src into a new slice. A nil src yields nil.
func (m *Mapper[S, T]) MapAll(src []S, opts ...MapOption) ([]T, error) {
	if src == nil {
		return nil, nil
	}
	out := make([]T, len(src))
	for i := range src {
		c := m.mapping.engine.newCall(opts)
		if err := m.mapping.exec(c, reflect.ValueOf(&src[i]), reflect.ValueOf(&out[i]).Elem()); err != nil {
			return nil, atPath(err, "["+strconv.Itoa(i)+"]")
		}
	}
	return out, nil
}
