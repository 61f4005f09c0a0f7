package morph

import (
	"container/list"
	"fmt"
	"reflect"
)

// Collection is implemented by container types that the mapper copies
// element by element. Fields declared with an interface type whose method set
// includes Collection are "abstract": the mapper mirrors the concrete type of
// the source collection unless a factory says otherwise.
//
// The zero value of an implementation must be ready to use, since the mapper
// constructs targets with reflect.New.
type Collection interface {
	// Len returns the number of elements.
	Len() int

	// Range calls fn for each element in order until fn returns false.
	Range(fn func(v any) bool)

	// Append adds v to the end of the collection.
	Append(v any) error
}

// ElemTyper is implemented by collections that know their element type.
// Elements copied into such a collection are converted to ElemType first.
type ElemTyper interface {
	ElemType() reflect.Type
}

// CollectionFunc constructs an empty target collection.
type CollectionFunc func() Collection

// List is a slice-backed Collection.
type List[E any] struct {
	items []E
}

// NewList returns a List holding items.
func NewList[E any](items ...E) *List[E] {
	return &List[E]{items: items}
}

// Len returns the number of elements.
func (l *List[E]) Len() int { return len(l.items) }

// Range calls fn for each element in order until fn returns false.
func (l *List[E]) Range(fn func(v any) bool) {
	for _, item := range l.items {
		if !fn(item) {
			return
		}
	}
}

// Append adds v to the end of the list. v must be an E.
func (l *List[E]) Append(v any) error {
	item, ok := v.(E)
	if !ok && v != nil {
		return fmt.Errorf("list of %s cannot hold %T", reflect.TypeFor[E](), v)
	}
	l.items = append(l.items, item)
	return nil
}

// ElemType returns E.
func (l *List[E]) ElemType() reflect.Type { return reflect.TypeFor[E]() }

// Items returns the underlying elements.
func (l *List[E]) Items() []E { return l.items }

// LinkedList is a Collection backed by container/list.
type LinkedList[E any] struct {
	l list.List
}

// NewLinkedList returns a LinkedList holding items.
func NewLinkedList[E any](items ...E) *LinkedList[E] {
	ll := &LinkedList[E]{}
	for _, item := range items {
		ll.l.PushBack(item)
	}
	return ll
}

// Len returns the number of elements.
func (ll *LinkedList[E]) Len() int { return ll.l.Len() }

// Range calls fn for each element in order until fn returns false.
func (ll *LinkedList[E]) Range(fn func(v any) bool) {
	for e := ll.l.Front(); e != nil; e = e.Next() {
		if !fn(e.Value) {
			return
		}
	}
}

// Append adds v to the back of the list. v must be an E.
func (ll *LinkedList[E]) Append(v any) error {
	item, ok := v.(E)
	if !ok && v != nil {
		return fmt.Errorf("linked list of %s cannot hold %T", reflect.TypeFor[E](), v)
	}
	ll.l.PushBack(item)
	return nil
}

// ElemType returns E.
func (ll *LinkedList[E]) ElemType() reflect.Type { return reflect.TypeFor[E]() }

// Items returns the elements as a slice.
func (ll *LinkedList[E]) Items() []E {
	out := make([]E, 0, ll.l.Len())
	for e := ll.l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(E))
	}
	return out
}

// asCollection returns v as a Collection when its value or address implements it.
func asCollection(v reflect.Value) (Collection, bool) {
	if !v.IsValid() {
		return nil, false
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, false
	}
	if v.CanInterface() {
		if c, ok := v.Interface().(Collection); ok {
			return c, true
		}
	}
	if v.CanAddr() && v.Addr().CanInterface() {
		if c, ok := v.Addr().Interface().(Collection); ok {
			return c, true
		}
	}
	return nil, false
}
