package morph

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/zoobzio/sentinel"
)

// Struct tags understood by the default descriptor provider.
const (
	TagAlias      = "morph.alias"
	TagIgnore     = "morph.ignore"
	TagConvert    = "morph.convert"
	TagCollection = "morph.collection"
)

var morphTags = []string{TagAlias, TagIgnore, TagConvert, TagCollection}

func init() {
	for _, tag := range morphTags {
		sentinel.Tag(tag)
	}
}

// FieldDescriptor describes how one field of a record takes part in mapping.
// Descriptors are immutable once their TypeDescriptor is built.
type FieldDescriptor struct {
	Name  string       // Field name as declared
	Type  reflect.Type // Declared field type
	Index []int        // reflect.Value.FieldByIndex access path

	// Alias is the source-side field name this field reads from.
	Alias string

	// Ignore is the skip policy, nil when the field is always copied.
	Ignore *IgnoreRule

	// Converter, if set, replaces type dispatch for this field.
	Converter Converter

	// ConverterName is the registered name Converter was resolved from.
	ConverterName string

	// Collection names a registered factory used for collection targets.
	Collection string

	exported bool
}

// TypeDescriptor is the ordered field list of one record type.
type TypeDescriptor struct {
	Type   reflect.Type
	Name   string
	Class  Class
	Fields []FieldDescriptor

	byName map[string]int
}

// Field returns the descriptor named name.
func (d *TypeDescriptor) Field(name string) (*FieldDescriptor, bool) {
	i, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	return &d.Fields[i], true
}

// metadataSource supplies sentinel metadata for a struct type.
type metadataSource func(reflect.Type) sentinel.Metadata

// describe builds the descriptor for struct type t.
func (e *Engine) describe(t reflect.Type) (*TypeDescriptor, error) {
	return e.describeFrom(t, typeMetadata)
}

// describeFrom builds the descriptor for struct type t. Field tags come from
// the metadata of the struct that declares each field, and any explicit spec
// registered on the engine wins over tags.
func (e *Engine) describeFrom(t reflect.Type, source metadataSource) (*TypeDescriptor, error) {
	if t.Kind() != reflect.Struct {
		return nil, newConfigError(ErrNotRecord, t, "", "", nil)
	}

	metas := make(map[reflect.Type]sentinel.Metadata)
	metadata := func(owner reflect.Type) sentinel.Metadata {
		meta, ok := metas[owner]
		if !ok {
			meta = source(owner)
			metas[owner] = meta
		}
		return meta
	}

	spec := e.spec(t)
	desc := &TypeDescriptor{
		Type:   t,
		Name:   metadata(t).TypeName,
		Class:  Classify(t),
		byName: make(map[string]int),
	}
	if desc.Name == "" {
		desc.Name = t.Name()
	}

	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous && Classify(sf.Type) == ClassRecord {
			continue
		}
		if !sf.IsExported() && !hasAccessor(t, sf) {
			continue
		}

		tags := fieldTags(metadata(declaringType(t, sf.Index)), sf)
		fd, err := e.fieldFromTags(t, sf, tags)
		if err != nil {
			return nil, err
		}
		if spec != nil {
			if err := spec.apply(e, t, &fd); err != nil {
				return nil, err
			}
		}

		desc.byName[fd.Name] = len(desc.Fields)
		desc.Fields = append(desc.Fields, fd)
	}

	return desc, nil
}

// typeMetadata returns the sentinel metadata for t. Sentinel caches by bare
// type name, so a cached entry is used only when it was extracted from t.
func typeMetadata(t reflect.Type) sentinel.Metadata {
	if t.Name() != "" {
		if meta, ok := sentinel.Lookup(t.Name()); ok && extractedFrom(meta, t) {
			return meta
		}
	}
	return scanMetadata(t)
}

// extractedFrom reports whether meta lists exactly the exported fields of t
// with the same types and morph tags.
func extractedFrom(meta sentinel.Metadata, t reflect.Type) bool {
	if meta.TypeName != t.Name() || meta.PackageName != t.PkgPath() {
		return false
	}

	exported := 0
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			exported++
		}
	}
	if len(meta.Fields) != exported {
		return false
	}

	for _, fm := range meta.Fields {
		if len(fm.Index) != 1 || fm.Index[0] >= t.NumField() {
			return false
		}
		sf := t.Field(fm.Index[0])
		if sf.Name != fm.Name || sf.Type != fm.ReflectType {
			return false
		}
		for _, key := range morphTags {
			if fm.Tags[key] != sf.Tag.Get(key) {
				return false
			}
		}
	}
	return true
}

// scanMetadata extracts metadata for types sentinel has not scanned, such as
// nested records and types reached only through the untyped API.
func scanMetadata(t reflect.Type) sentinel.Metadata {
	meta := sentinel.Metadata{
		TypeName:    t.Name(),
		PackageName: t.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, t.NumField()),
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		tags := make(map[string]string)
		for _, key := range morphTags {
			if val := sf.Tag.Get(key); val != "" {
				tags[key] = val
			}
		}

		meta.Fields = append(meta.Fields, sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			Kind:        fieldKind(sf.Type),
			ReflectType: sf.Type,
			Index:       sf.Index,
			Tags:        tags,
		})
	}
	return meta
}

func fieldKind(t reflect.Type) sentinel.FieldKind {
	switch t.Kind() {
	case reflect.Pointer:
		return sentinel.KindPointer
	case reflect.Slice, reflect.Array:
		return sentinel.KindSlice
	case reflect.Struct:
		return sentinel.KindStruct
	case reflect.Map:
		return sentinel.KindMap
	case reflect.Interface:
		return sentinel.KindInterface
	default:
		return sentinel.KindScalar
	}
}

// declaringType returns the struct type that declares the field at index.
func declaringType(t reflect.Type, index []int) reflect.Type {
	for _, i := range index[:len(index)-1] {
		t = t.Field(i).Type
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
	}
	return t
}

// fieldTags returns the morph tags of sf recorded in its declaring type's
// metadata. Sentinel skips unexported fields and empty tag values, so those
// are read from the struct tag: an empty morph.ignore means always ignored.
func fieldTags(meta sentinel.Metadata, sf reflect.StructField) map[string]string {
	var fm *sentinel.FieldMetadata
	for i := range meta.Fields {
		if meta.Fields[i].Name == sf.Name {
			fm = &meta.Fields[i]
			break
		}
	}
	if fm == nil {
		return parseTags(sf.Tag)
	}

	tags := make(map[string]string)
	for _, key := range morphTags {
		if val, ok := fm.Tags[key]; ok {
			tags[key] = val
		} else if val, ok := sf.Tag.Lookup(key); ok && val == "" {
			tags[key] = val
		}
	}
	return tags
}

// fieldFromTags builds a field descriptor from parsed struct tags.
func (e *Engine) fieldFromTags(t reflect.Type, sf reflect.StructField, tags map[string]string) (FieldDescriptor, error) {
	fd := FieldDescriptor{
		Name:     sf.Name,
		Type:     sf.Type,
		Index:    sf.Index,
		Alias:    sf.Name,
		exported: sf.IsExported(),
	}
	if !fd.exported {
		// Accessor-backed fields correspond to the exported property name.
		fd.Alias = exportName(sf.Name)
	}

	if alias, ok := tags[TagAlias]; ok {
		if alias = strings.TrimSpace(alias); alias == "" {
			return fd, newConfigError(ErrInvalidTag, t, sf.Name, TagAlias, nil)
		}
		fd.Alias = alias
	}

	if raw, ok := tags[TagIgnore]; ok {
		rule, err := parseIgnore(t, sf.Name, raw)
		if err != nil {
			return fd, err
		}
		fd.Ignore = rule
	}

	if name, ok := tags[TagConvert]; ok {
		c, err := e.converter(name)
		if err != nil {
			return fd, newConfigError(ErrUnknownConverter, t, sf.Name, name, nil)
		}
		fd.Converter = c
		fd.ConverterName = name
	}

	if name, ok := tags[TagCollection]; ok {
		if _, err := e.collection(name); err != nil {
			return fd, newConfigError(ErrUnknownCollection, t, sf.Name, name, nil)
		}
		fd.Collection = name
	}

	return fd, nil
}

// parseTags extracts morph tags from a struct tag.
func parseTags(tag reflect.StructTag) map[string]string {
	tags := make(map[string]string)
	for _, key := range morphTags {
		if val, ok := tag.Lookup(key); ok {
			tags[key] = val
		}
	}
	return tags
}

// parseIgnore parses the morph.ignore tag grammar:
//
//	""                      always ignored
//	"except=a,b"            ignored unless group a or b is active
//	"when=a,b"              ignored only when group a or b is active
//	"default=false"         explicit default decision
//	"policy=null|empty"     skip null or empty source values
//	"check=Method"          custom predicate method on *Target
//
// Clauses are separated by semicolons.
func parseIgnore(t reflect.Type, field, raw string) (*IgnoreRule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return &IgnoreRule{Ignored: true}, nil
	}

	rule := &IgnoreRule{}
	decided := false
	for _, clause := range strings.Split(raw, ";") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		key, val, _ := strings.Cut(clause, "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)

		switch key {
		case "default":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return nil, newConfigError(ErrInvalidTag, t, field, clause, err)
			}
			rule.Ignored, decided = b, true
		case "except":
			rule.Except = append(rule.Except, splitGroups(val)...)
			if !decided {
				rule.Ignored, decided = true, true
			}
		case "when":
			rule.Except = append(rule.Except, splitGroups(val)...)
			if !decided {
				rule.Ignored, decided = false, true
			}
		case "policy":
			p, err := ParsePolicy(val)
			if err != nil {
				return nil, newConfigError(ErrInvalidTag, t, field, clause, err)
			}
			rule.Policy = p
		case "check":
			fn, err := bindPredicate(t, field, val)
			if err != nil {
				return nil, err
			}
			rule.Skip = fn
		default:
			return nil, newConfigError(ErrInvalidTag, t, field, clause, nil)
		}
	}
	return rule, nil
}

func splitGroups(s string) []Group {
	var groups []Group
	for _, g := range strings.Split(s, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, Group(g))
		}
	}
	return groups
}

var (
	anyType  = reflect.TypeFor[any]()
	boolType = reflect.TypeFor[bool]()
)

// bindPredicate resolves a predicate method on *t. Accepted shapes are
// func(source any) bool and func(source any, skip bool) bool.
func bindPredicate(t reflect.Type, field, name string) (SkipFunc, error) {
	m, ok := reflect.PointerTo(t).MethodByName(name)
	if !ok {
		return nil, newConfigError(ErrPredicate, t, field, name, nil)
	}

	ft := m.Type
	withSkip := ft.NumIn() == 3
	if (ft.NumIn() != 2 && !withSkip) || ft.In(1) != anyType ||
		(withSkip && ft.In(2) != boolType) ||
		ft.NumOut() != 1 || ft.Out(0) != boolType {
		return nil, newConfigError(ErrPredicate, t, field, name, nil)
	}

	index := m.Index
	return func(target, source any, skip bool) bool {
		src := reflect.ValueOf(&source).Elem()
		args := []reflect.Value{src}
		if withSkip {
			args = append(args, reflect.ValueOf(skip))
		}
		return reflect.ValueOf(target).Method(index).Call(args)[0].Bool()
	}, nil
}

// hasAccessor reports whether an unexported field exposes a getter or setter.
func hasAccessor(t reflect.Type, sf reflect.StructField) bool {
	_, get := findGetter(t, sf.Name)
	_, set := findSetter(t, sf.Name, sf.Type)
	return get || set
}

func exportName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// TypeSpec is an explicit mapping specification for one record type.
// Settings made through a TypeSpec take precedence over struct tags.
type TypeSpec struct {
	engine *Engine
	typ    reflect.Type

	mu     sync.Mutex
	fields map[string]*FieldSpec
}

// FieldSpec configures a single field of a TypeSpec.
type FieldSpec struct {
	parent *TypeSpec
	name   string

	alias         string
	ignore        *IgnoreRule
	ignoreSet     bool
	converter     Converter
	converterName string
	collection    string
}

// Describe returns the explicit spec for t, creating it on first use. A
// pointer to a struct type describes the struct.
func (e *Engine) Describe(t reflect.Type) *TypeSpec {
	if rt, err := recordType(t); err == nil {
		t = rt
	}

	e.specMu.Lock()
	defer e.specMu.Unlock()
	if s, ok := e.specs[t]; ok {
		return s
	}
	s := &TypeSpec{engine: e, typ: t, fields: make(map[string]*FieldSpec)}
	e.specs[t] = s
	return s
}

// Describe returns the explicit spec for T on engine e.
func Describe[T any](e *Engine) *TypeSpec {
	return e.Describe(reflect.TypeFor[T]())
}

func (e *Engine) spec(t reflect.Type) *TypeSpec {
	e.specMu.Lock()
	defer e.specMu.Unlock()
	return e.specs[t]
}

// Type returns the type this spec describes.
func (s *TypeSpec) Type() reflect.Type { return s.typ }

// Field returns the spec for the named field.
func (s *TypeSpec) Field(name string) *FieldSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.fields[name]; ok {
		return f
	}
	f := &FieldSpec{parent: s, name: name}
	s.fields[name] = f
	return f
}

// Alias makes the field read from the named source field.
func (f *FieldSpec) Alias(source string) *FieldSpec {
	return f.update(func() { f.alias = source })
}

// Ignore sets the field's ignore rule. A nil rule clears any tag rule.
func (f *FieldSpec) Ignore(rule *IgnoreRule) *FieldSpec {
	return f.update(func() { f.ignore, f.ignoreSet = rule, true })
}

// Convert binds a converter to the field.
func (f *FieldSpec) Convert(c Converter) *FieldSpec {
	return f.update(func() { f.converter, f.converterName = c, "" })
}

// ConvertNamed binds a converter registered on the engine under name.
func (f *FieldSpec) ConvertNamed(name string) *FieldSpec {
	return f.update(func() { f.converter, f.converterName = nil, name })
}

// Collection binds a registered collection factory to the field.
func (f *FieldSpec) Collection(name string) *FieldSpec {
	return f.update(func() { f.collection = name })
}

// Field continues with another field of the same type.
func (f *FieldSpec) Field(name string) *FieldSpec {
	return f.parent.Field(name)
}

func (f *FieldSpec) update(fn func()) *FieldSpec {
	f.parent.mu.Lock()
	fn()
	f.parent.mu.Unlock()
	f.parent.engine.invalidate(f.parent.typ)
	return f
}

// apply overlays the spec on a tag-derived field descriptor.
func (s *TypeSpec) apply(e *Engine, t reflect.Type, fd *FieldDescriptor) error {
	s.mu.Lock()
	f, ok := s.fields[fd.Name]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	fs := *f
	s.mu.Unlock()

	if fs.alias != "" {
		fd.Alias = fs.alias
	}
	if fs.ignoreSet {
		fd.Ignore = fs.ignore
	}
	switch {
	case fs.converter != nil:
		fd.Converter, fd.ConverterName = fs.converter, ""
	case fs.converterName != "":
		c, err := e.converter(fs.converterName)
		if err != nil {
			return newConfigError(ErrUnknownConverter, t, fd.Name, fs.converterName, nil)
		}
		fd.Converter, fd.ConverterName = c, fs.converterName
	}
	if fs.collection != "" {
		if _, err := e.collection(fs.collection); err != nil {
			return newConfigError(ErrUnknownCollection, t, fd.Name, fs.collection, nil)
		}
		fd.Collection = fs.collection
	}
	return nil
}

// Fields lists the names of fields that have explicit settings.
func (s *TypeSpec) Fields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	return names
}
