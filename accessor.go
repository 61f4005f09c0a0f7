package morph

import (
	"context"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of type entries kept strongly reachable.
const DefaultCacheSize = 256

// Reader reads the raw value of one field (or getter) from a record value.
type Reader struct {
	Name string       // Source field or property name
	Type reflect.Type // Declared type of the values read

	read func(rv reflect.Value) reflect.Value
}

// Read returns the raw value. An invalid Value means null.
func (r *Reader) Read(rv reflect.Value) reflect.Value {
	return r.read(rv)
}

// Writer assigns a converted value to one field of a record value.
type Writer struct {
	Field *FieldDescriptor
	Type  reflect.Type // Type accepted by the assignment

	set func(rv, v reflect.Value) bool
}

// Write assigns v. It reports false when the field cannot be assigned.
func (w *Writer) Write(rv, v reflect.Value) bool {
	return w.set(rv, v)
}

// typeEntry holds the descriptor and lazily generated accessors of one type.
// The reader and writer maps are copy-on-write: lookups never lock, and a
// generation step publishes a new map containing every previous entry.
type typeEntry struct {
	desc *TypeDescriptor

	mu      sync.Mutex
	readers atomic.Pointer[map[string]*Reader]
	writers atomic.Pointer[map[string]*Writer]
}

func newTypeEntry(desc *TypeDescriptor) *typeEntry {
	te := &typeEntry{desc: desc}
	readers := make(map[string]*Reader)
	writers := make(map[string]*Writer)
	te.readers.Store(&readers)
	te.writers.Store(&writers)
	return te
}

// reader returns the reader for name, generating it on first use.
// Absent properties are cached as nil so the miss is paid once.
func (te *typeEntry) reader(name string) *Reader {
	if r, ok := (*te.readers.Load())[name]; ok {
		return r
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	current := *te.readers.Load()
	if r, ok := current[name]; ok {
		return r
	}

	r := newReader(te.desc, name)
	next := make(map[string]*Reader, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[name] = r
	te.readers.Store(&next)
	return r
}

// writer returns the writer for fd, generating it on first use.
func (te *typeEntry) writer(fd *FieldDescriptor) *Writer {
	if w, ok := (*te.writers.Load())[fd.Name]; ok {
		return w
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	current := *te.writers.Load()
	if w, ok := current[fd.Name]; ok {
		return w
	}

	w := newWriter(te.desc, fd)
	next := make(map[string]*Writer, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[fd.Name] = w
	te.writers.Store(&next)
	return w
}

// accessorCache maps types to their entries. The index holds weak pointers
// only; the hot set keeps the most recently built entries alive. Entries
// outside the hot set are reclaimed by the garbage collector once no map
// call holds them and are rebuilt on next use.
type accessorCache struct {
	engine *Engine

	index sync.Map // reflect.Type -> weak.Pointer[typeEntry]
	locks sync.Map // reflect.Type -> *sync.Mutex
	hot   *lru.Cache[reflect.Type, *typeEntry]

	builds atomic.Int64
}

func newAccessorCache(e *Engine, size int) (*accessorCache, error) {
	hot, err := lru.New[reflect.Type, *typeEntry](size)
	if err != nil {
		return nil, err
	}
	return &accessorCache{engine: e, hot: hot}, nil
}

// lookup returns a live entry for t without locking.
func (c *accessorCache) lookup(t reflect.Type) *typeEntry {
	wp, ok := c.index.Load(t)
	if !ok {
		return nil
	}
	return wp.(weak.Pointer[typeEntry]).Value()
}

// entry returns the entry for t, building it under the per-type lock.
func (c *accessorCache) entry(t reflect.Type) (*typeEntry, error) {
	if te := c.lookup(t); te != nil {
		return te, nil
	}

	mu, _ := c.locks.LoadOrStore(t, &sync.Mutex{})
	lock := mu.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	if te := c.lookup(t); te != nil {
		return te, nil
	}

	desc, err := c.engine.describe(t)
	if err != nil {
		return nil, err
	}

	te := newTypeEntry(desc)
	wp := weak.Make(te)
	c.index.Store(t, wp)
	runtime.AddCleanup(te, c.expunge, t)
	c.hot.Add(t, te)
	c.builds.Add(1)

	emitAccessorsBuilt(context.Background(), typeName(t), len(desc.Fields))
	return te, nil
}

// expunge removes the index slot for t once its entry has been collected.
func (c *accessorCache) expunge(t reflect.Type) {
	wp, ok := c.index.Load(t)
	if !ok || wp.(weak.Pointer[typeEntry]).Value() != nil {
		return
	}
	if c.index.CompareAndDelete(t, wp) {
		emitAccessorsEvicted(context.Background(), typeName(t))
	}
}

// invalidate drops t so the next use rebuilds it from current configuration.
// It holds the per-type build lock so a build that read the old
// configuration cannot publish after the drop.
func (c *accessorCache) invalidate(t reflect.Type) {
	mu, _ := c.locks.LoadOrStore(t, &sync.Mutex{})
	lock := mu.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	c.index.Delete(t)
	c.hot.Remove(t)
}

// purge drops every entry.
func (c *accessorCache) purge() {
	c.index.Range(func(k, _ any) bool {
		c.index.Delete(k)
		return true
	})
	c.hot.Purge()
}

// newReader generates the reader for property name of desc.Type. A bound
// getter method wins over direct field access.
func newReader(desc *TypeDescriptor, name string) *Reader {
	if m, ok := findGetter(desc.Type, name); ok {
		index := m.Index
		via := promotedBy(desc.Type, m.Name)
		return &Reader{
			Name: name,
			Type: m.Type.Out(0),
			read: func(rv reflect.Value) reflect.Value {
				if via != nil && !reachable(rv, via) {
					return reflect.Value{}
				}
				return rv.Addr().Method(index).Call(nil)[0]
			},
		}
	}

	fd, ok := desc.Field(name)
	if !ok || !fd.exported {
		return nil
	}
	index := fd.Index
	return &Reader{
		Name: name,
		Type: fd.Type,
		read: func(rv reflect.Value) reflect.Value {
			v, err := rv.FieldByIndexErr(index)
			if err != nil {
				return reflect.Value{}
			}
			return v
		},
	}
}

// newWriter generates the writer for fd. A bound setter wins over direct
// field assignment.
func newWriter(desc *TypeDescriptor, fd *FieldDescriptor) *Writer {
	if m, ok := findSetter(desc.Type, fd.Name, fd.Type); ok {
		index := m.Index
		return &Writer{
			Field: fd,
			Type:  m.Type.In(1),
			set: func(rv, v reflect.Value) bool {
				rv.Addr().Method(index).Call([]reflect.Value{v})
				return true
			},
		}
	}

	index := fd.Index
	return &Writer{
		Field: fd,
		Type:  fd.Type,
		set: func(rv, v reflect.Value) bool {
			f, ok := fieldForWrite(rv, index)
			if !ok {
				return false
			}
			f.Set(v)
			return true
		},
	}
}

// fieldForWrite walks index, allocating nil embedded pointers on the way.
func fieldForWrite(rv reflect.Value, index []int) (reflect.Value, bool) {
	v := rv
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, false
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, v.CanSet()
}

// findGetter looks for GetX, IsX (bool), or X on *t, where X is the
// exported form of name. Getters take no arguments and return one value.
func findGetter(t reflect.Type, name string) (reflect.Method, bool) {
	upper := exportName(name)
	pt := reflect.PointerTo(t)
	for _, candidate := range []string{"Get" + upper, "Is" + upper, upper} {
		m, ok := pt.MethodByName(candidate)
		if !ok || m.Type.NumIn() != 1 || m.Type.NumOut() != 1 {
			continue
		}
		if candidate == "Is"+upper && m.Type.Out(0).Kind() != reflect.Bool {
			continue
		}
		return m, true
	}
	return reflect.Method{}, false
}

// promotedBy returns the index of the shallowest embedded field that
// promotes method name to *t, or nil when no embedded field carries it.
func promotedBy(t reflect.Type, name string) []int {
	var best []int
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.Anonymous {
			continue
		}
		mt := sf.Type
		if mt.Kind() != reflect.Pointer && mt.Kind() != reflect.Interface {
			mt = reflect.PointerTo(mt)
		}
		if _, ok := mt.MethodByName(name); !ok {
			continue
		}
		if best == nil || len(sf.Index) < len(best) {
			best = sf.Index
		}
	}
	return best
}

// reachable reports whether the embedded field at index is non-nil along
// its whole path.
func reachable(rv reflect.Value, index []int) bool {
	v, err := rv.FieldByIndexErr(index)
	if err != nil {
		return false
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return !v.IsNil()
	}
	return true
}

// findSetter looks for SetX(v) on *t accepting the field's type.
func findSetter(t reflect.Type, name string, ft reflect.Type) (reflect.Method, bool) {
	m, ok := reflect.PointerTo(t).MethodByName("Set" + exportName(name))
	if !ok || m.Type.NumIn() != 2 || m.Type.NumOut() != 0 || m.Type.In(1) != ft {
		return reflect.Method{}, false
	}
	return m, true
}
