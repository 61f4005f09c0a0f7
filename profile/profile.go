// Package profile loads mapping specs for morph from YAML documents.
//
// A profile configures record types that cannot carry struct tags:
//
//	version: "1"
//	types:
//	  - name: UserView
//	    fields:
//	      - name: DisplayName
//	        alias: Name
//	        convert: mask.name
//	      - name: Salary
//	        ignore: {except: [hr]}
//
// Apply validates the whole document before it touches the engine, so a
// profile is applied completely or not at all.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/agnivade/levenshtein"
	"github.com/hashicorp/go-multierror"
	"github.com/zoobzio/morph"
	"gopkg.in/yaml.v3"
)

// Version is the profile format this package reads.
const Version = "1"

// Validation errors.
var (
	ErrVersion      = errors.New("unsupported profile version")
	ErrUnknownType  = errors.New("unknown type")
	ErrUnknownField = errors.New("unknown field")
)

// File is a parsed profile document.
type File struct {
	Version string `yaml:"version"`
	Types   []Type `yaml:"types"`
}

// Type configures the fields of one record type.
type Type struct {
	Name   string  `yaml:"name"`
	Fields []Field `yaml:"fields"`
}

// Field mirrors the morph struct tags for one field.
type Field struct {
	Name       string  `yaml:"name"`
	Alias      string  `yaml:"alias,omitempty"`
	Convert    string  `yaml:"convert,omitempty"`
	Collection string  `yaml:"collection,omitempty"`
	Ignore     *Ignore `yaml:"ignore,omitempty"`
}

// Ignore mirrors the morph.ignore tag clauses.
type Ignore struct {
	Default *bool    `yaml:"default,omitempty"`
	Except  []string `yaml:"except,omitempty"`
	When    []string `yaml:"when,omitempty"`
	Policy  string   `yaml:"policy,omitempty"`
}

// LoadFile reads and parses the profile at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a YAML profile. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse profile YAML: %w", err)
	}

	if f.Version == "" {
		f.Version = Version
	}
	if f.Version != Version {
		return nil, fmt.Errorf("%w: %q", ErrVersion, f.Version)
	}
	return &f, nil
}

// Marshal serializes f to YAML.
func Marshal(f *File) ([]byte, error) {
	return yaml.Marshal(f)
}

// Rule converts the clauses to an IgnoreRule following the tag grammar:
// except implies ignored by default, when implies copied by default, and
// an explicit default wins over both.
func (ig *Ignore) Rule() (*morph.IgnoreRule, error) {
	policy, err := morph.ParsePolicy(ig.Policy)
	if err != nil {
		return nil, err
	}

	rule := &morph.IgnoreRule{Policy: policy}
	for _, g := range ig.Except {
		rule.Except = append(rule.Except, morph.Group(g))
	}
	for _, g := range ig.When {
		rule.Except = append(rule.Except, morph.Group(g))
	}

	switch {
	case ig.Default != nil:
		rule.Ignored = *ig.Default
	case len(ig.Except) > 0:
		rule.Ignored = true
	case len(ig.When) > 0:
		rule.Ignored = false
	case policy == morph.PolicyDefault:
		// A bare ignore block ignores unconditionally, like an empty tag.
		rule.Ignored = true
	}
	return rule, nil
}

// Validate reports every problem with f against the engine and the named
// types. The returned error is a *multierror.Error.
func (f *File) Validate(e *morph.Engine, types map[string]reflect.Type) error {
	var result *multierror.Error

	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}

	for _, t := range f.Types {
		rt, ok := types[t.Name]
		if !ok {
			result = multierror.Append(result, suggest(ErrUnknownType, t.Name, names))
			continue
		}
		rt, err := record(rt)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("type %s: %w", t.Name, err))
			continue
		}

		fields := fieldNames(rt)
		for _, fld := range t.Fields {
			if !contains(fields, fld.Name) {
				result = multierror.Append(result, fmt.Errorf("type %s: %w", t.Name, suggest(ErrUnknownField, fld.Name, fields)))
				continue
			}
			if fld.Convert != "" && !e.HasConverter(fld.Convert) {
				result = multierror.Append(result, fmt.Errorf("type %s field %s: %w %q", t.Name, fld.Name, morph.ErrUnknownConverter, fld.Convert))
			}
			if fld.Collection != "" && !e.HasCollection(fld.Collection) {
				result = multierror.Append(result, fmt.Errorf("type %s field %s: %w %q", t.Name, fld.Name, morph.ErrUnknownCollection, fld.Collection))
			}
			if fld.Ignore != nil {
				if _, err := fld.Ignore.Rule(); err != nil {
					result = multierror.Append(result, fmt.Errorf("type %s field %s: %w", t.Name, fld.Name, err))
				}
			}
		}
	}

	return result.ErrorOrNil()
}

// Apply validates f, then registers its settings as explicit specs on e.
// types maps the names used in the profile to record types.
func (f *File) Apply(e *morph.Engine, types map[string]reflect.Type) error {
	if err := f.Validate(e, types); err != nil {
		return err
	}

	for _, t := range f.Types {
		rt, _ := record(types[t.Name])
		spec := e.Describe(rt)
		for _, fld := range t.Fields {
			fs := spec.Field(fld.Name)
			if fld.Alias != "" {
				fs.Alias(fld.Alias)
			}
			if fld.Convert != "" {
				fs.ConvertNamed(fld.Convert)
			}
			if fld.Collection != "" {
				fs.Collection(fld.Collection)
			}
			if fld.Ignore != nil {
				rule, _ := fld.Ignore.Rule()
				fs.Ignore(rule)
			}
		}
	}
	return nil
}

// TypeNames builds a type lookup from example values, keyed by type name.
//
//	profile.TypeNames(UserView{}, OrderView{})
func TypeNames(values ...any) map[string]reflect.Type {
	types := make(map[string]reflect.Type, len(values))
	for _, v := range values {
		t := reflect.TypeOf(v)
		if t == nil {
			continue
		}
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		types[t.Name()] = t
	}
	return types
}

func record(t reflect.Type) (reflect.Type, error) {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, morph.ErrNotRecord
	}
	return t, nil
}

// fieldNames lists the mappable field names of t, promoted fields included.
func fieldNames(t reflect.Type) []string {
	var names []string
	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous && morph.Classify(sf.Type) == morph.ClassRecord {
			continue
		}
		names = append(names, sf.Name)
	}
	return names
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// maxSuggestDistance bounds the edit distance of a "did you mean" hint.
const maxSuggestDistance = 3

// suggest wraps err for name, naming the closest candidate when one is near.
func suggest(err error, name string, candidates []string) error {
	best, bestDist := "", maxSuggestDistance+1
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == "" {
		return fmt.Errorf("%w %q", err, name)
	}
	return fmt.Errorf("%w %q (did you mean %q?)", err, name, best)
}
