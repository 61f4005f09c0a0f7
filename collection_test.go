package morph

import (
	"reflect"
	"testing"
)

func TestList(t *testing.T) {
	l := NewList(1, 2)
	if err := l.Append(3); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := l.Append("four"); err == nil {
		t.Error("Append() should reject a value of another type")
	}
	if l.Len() != 3 {
		t.Errorf("Len() = %d, want 3", l.Len())
	}
	if got := l.Items(); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("Items() = %v, want [1 2 3]", got)
	}
	if l.ElemType() != reflect.TypeFor[int]() {
		t.Errorf("ElemType() = %v, want int", l.ElemType())
	}
}

func TestList_AppendNil(t *testing.T) {
	l := NewList[*int]()
	if err := l.Append(nil); err != nil {
		t.Fatalf("Append(nil) error: %v", err)
	}
	if l.Len() != 1 || l.Items()[0] != nil {
		t.Errorf("Items() = %v, want [nil]", l.Items())
	}
}

func TestLinkedList(t *testing.T) {
	ll := NewLinkedList("a")
	if err := ll.Append("b"); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := ll.Append(1); err == nil {
		t.Error("Append() should reject a value of another type")
	}
	if got := ll.Items(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Items() = %v, want [a b]", got)
	}
}

func TestRange_StopsEarly(t *testing.T) {
	for name, c := range map[string]Collection{
		"list":   NewList(1, 2, 3),
		"linked": NewLinkedList(1, 2, 3),
	} {
		var seen []any
		c.Range(func(v any) bool {
			seen = append(seen, v)
			return len(seen) < 2
		})
		if len(seen) != 2 {
			t.Errorf("%s: Range visited %d elements, want 2", name, len(seen))
		}
	}
}

func TestAsCollection(t *testing.T) {
	var nilList *List[int]
	var iface Collection = NewLinkedList(1)
	holder := struct{ L List[int] }{L: *NewList(1, 2)}

	if _, ok := asCollection(reflect.ValueOf(nilList)); ok {
		t.Error("nil pointer should not be a collection")
	}
	if c, ok := asCollection(reflect.ValueOf(&iface).Elem()); !ok || c.Len() != 1 {
		t.Error("interface holding a collection should unwrap")
	}
	if c, ok := asCollection(reflect.ValueOf(&holder).Elem().Field(0)); !ok || c.Len() != 2 {
		t.Error("addressable value collection should be found through its address")
	}
	if _, ok := asCollection(reflect.ValueOf([]int{1})); ok {
		t.Error("slice should not be a collection")
	}
}
