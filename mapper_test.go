package morph_test

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/morph"
)

var aesKey = []byte("0123456789abcdef0123456789abcdef")

type Foo struct {
	ID   int
	Name string
}

type Bar struct {
	ID   int
	Name string
}

type Person struct {
	ID       int
	Name     string
	Email    string
	Password string
	Salary   int
	Tags     []string
	Manager  *Person
}

type PersonView struct {
	ID          int
	DisplayName string `morph.alias:"Name"`
	Email       string `morph.convert:"mask.email"`
	Password    string `morph.ignore:""`
	Salary      int    `morph.ignore:"except=hr"`
	Tags        []string
	Manager     *PersonView
}

func newEngine(t *testing.T, opts ...morph.Option) *morph.Engine {
	t.Helper()
	e, err := morph.New(opts...)
	require.NoError(t, err)
	return e
}

func mapperFor[S, T any](t *testing.T, e *morph.Engine) *morph.Mapper[S, T] {
	t.Helper()
	m, err := morph.For[S, T](e)
	require.NoError(t, err)
	return m
}

func TestMapper_Basic(t *testing.T) {
	e := newEngine(t)
	m := mapperFor[Person, PersonView](t, e)

	src := &Person{
		ID:       1,
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "hunter2",
		Salary:   100,
		Tags:     []string{"a", "b"},
		Manager:  &Person{ID: 2, Name: "Bob"},
	}
	view, err := m.Map(src)
	require.NoError(t, err)

	assert.Equal(t, 1, view.ID)
	assert.Equal(t, "Alice", view.DisplayName)
	assert.Equal(t, "a***@example.com", view.Email)
	assert.Empty(t, view.Password)
	assert.Zero(t, view.Salary)
	assert.Equal(t, []string{"a", "b"}, view.Tags)
	require.NotNil(t, view.Manager)
	assert.Equal(t, "Bob", view.Manager.DisplayName)
	assert.Nil(t, view.Manager.Manager)
}

func TestMapper_Idempotent(t *testing.T) {
	e := newEngine(t)
	m := mapperFor[Person, PersonView](t, e)

	src := &Person{ID: 1, Name: "Alice", Tags: []string{"x"}, Manager: &Person{ID: 2}}
	first, err := m.Map(src)
	require.NoError(t, err)
	second, err := m.Map(src)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotSame(t, first.Manager, second.Manager)
}

func TestMapper_Groups(t *testing.T) {
	e := newEngine(t)
	m := mapperFor[Person, PersonView](t, e)
	src := &Person{Salary: 100, Password: "x"}

	view, err := m.Map(src)
	require.NoError(t, err)
	assert.Zero(t, view.Salary)

	view, err = m.Map(src, morph.Groups("hr"))
	require.NoError(t, err)
	assert.Equal(t, 100, view.Salary)
	assert.Empty(t, view.Password, "unconditional ignore has no exception")

	hr := newEngine(t, morph.WithGroups("hr"))
	view, err = mapperFor[Person, PersonView](t, hr).Map(src)
	require.NoError(t, err)
	assert.Equal(t, 100, view.Salary)
}

type shownWhen struct {
	Name  string
	Notes string `morph.ignore:"when=public"`
}

func TestMapper_WhenGroup(t *testing.T) {
	e := newEngine(t)
	m := mapperFor[shownWhen, shownWhen](t, e)
	src := &shownWhen{Name: "n", Notes: "internal"}

	out, err := m.Map(src)
	require.NoError(t, err)
	assert.Equal(t, "internal", out.Notes)

	out, err = m.Map(src, morph.Groups("public"))
	require.NoError(t, err)
	assert.Empty(t, out.Notes)
}

type nickSource struct {
	Nick *string
}

type nickKeep struct {
	Nick *string `morph.ignore:"policy=null"`
}

type nickPlain struct {
	Nick *string
}

func TestMapper_NullPolicy(t *testing.T) {
	e := newEngine(t)
	prior := "keep"

	keep := &nickKeep{Nick: &prior}
	require.NoError(t, mapperFor[nickSource, nickKeep](t, e).MapTo(&nickSource{}, keep))
	assert.Same(t, &prior, keep.Nick)

	plain := &nickPlain{Nick: &prior}
	require.NoError(t, mapperFor[nickSource, nickPlain](t, e).MapTo(&nickSource{}, plain))
	assert.Nil(t, plain.Nick)

	plain = &nickPlain{Nick: &prior}
	err := mapperFor[nickSource, nickPlain](t, e).MapTo(&nickSource{}, plain, morph.Policy(morph.PolicyNull))
	require.NoError(t, err)
	assert.Same(t, &prior, plain.Nick)

	defaults := newEngine(t, morph.WithDefaultPolicy(morph.PolicyNull))
	plain = &nickPlain{Nick: &prior}
	require.NoError(t, mapperFor[nickSource, nickPlain](t, defaults).MapTo(&nickSource{}, plain))
	assert.Same(t, &prior, plain.Nick)
}

type emptySource struct {
	S string
	L []int
	N int
}

type emptyTarget struct {
	S string `morph.ignore:"policy=empty"`
	L []int  `morph.ignore:"policy=empty"`
	N int    `morph.ignore:"policy=empty"`
}

func TestMapper_EmptyPolicy(t *testing.T) {
	e := newEngine(t)
	m := mapperFor[emptySource, emptyTarget](t, e)

	dst := &emptyTarget{S: "keep", L: []int{9}, N: 7}
	require.NoError(t, m.MapTo(&emptySource{S: "", L: []int{}, N: 0}, dst))
	assert.Equal(t, &emptyTarget{S: "keep", L: []int{9}, N: 7}, dst)

	require.NoError(t, m.MapTo(&emptySource{S: "s", L: []int{1}, N: 1}, dst))
	assert.Equal(t, &emptyTarget{S: "s", L: []int{1}, N: 1}, dst)
}

type checked struct {
	Name string `morph.ignore:"check=LongNamesOnly"`
}

func (c *checked) LongNamesOnly(source any, skip bool) bool {
	return skip || len(source.(*checked).Name) < 4
}

type exploding struct {
	Name string `morph.ignore:"check=Explode"`
}

func (e *exploding) Explode(any) bool { panic("boom") }

func TestMapper_Predicate(t *testing.T) {
	e := newEngine(t)
	m := mapperFor[checked, checked](t, e)

	out, err := m.Map(&checked{Name: "abc"})
	require.NoError(t, err)
	assert.Empty(t, out.Name)

	out, err = m.Map(&checked{Name: "abcdef"})
	require.NoError(t, err)
	assert.Equal(t, "abcdef", out.Name)

	_, err = mapperFor[Foo, exploding](t, e).Map(&Foo{Name: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, morph.ErrPredicate)
	assert.ErrorIs(t, err, morph.ErrConfiguration)
	assert.Contains(t, err.Error(), "boom")
}

type ints struct {
	Values []int
}

type strs struct {
	Values []string
}

type fixed struct {
	Values [4]int
}

func TestMapper_Arrays(t *testing.T) {
	e := newEngine(t)

	src := &ints{Values: []int{1, 2, 3}}
	out, err := mapperFor[ints, ints](t, e).Map(src)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, out.Values)

	fx, err := mapperFor[ints, fixed](t, e).Map(src)
	require.NoError(t, err)
	assert.Equal(t, [4]int{1, 2, 3, 0}, fx.Values)

	_, err = mapperFor[strs, ints](t, e).Map(&strs{Values: []string{"a"}})
	var tm *morph.TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, reflect.TypeFor[[]string](), tm.Source)
	assert.Equal(t, reflect.TypeFor[[]int](), tm.Target)
	assert.Equal(t, "Values", tm.Field)
	assert.Contains(t, err.Error(), "[]int")
	assert.Contains(t, err.Error(), "[]string")
}

type linkedHolder struct {
	Items *morph.LinkedList[int]
}

type abstractHolder struct {
	Items morph.Collection
}

type listHolder struct {
	Items *morph.List[int]
}

type factoryHolder struct {
	Items morph.Collection `morph.collection:"list"`
}

func TestMapper_Collections(t *testing.T) {
	e := newEngine(t)
	src := &linkedHolder{Items: morph.NewLinkedList(1, 2, 3)}

	t.Run("mirrors source implementation", func(t *testing.T) {
		out, err := mapperFor[linkedHolder, abstractHolder](t, e).Map(src)
		require.NoError(t, err)
		got, ok := out.Items.(*morph.LinkedList[int])
		require.True(t, ok, "Items is %T", out.Items)
		assert.NotSame(t, src.Items, got)
		assert.Equal(t, []int{1, 2, 3}, got.Items())
	})

	t.Run("declared implementation", func(t *testing.T) {
		out, err := mapperFor[linkedHolder, listHolder](t, e).Map(src)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, out.Items.Items())
	})

	t.Run("tag factory", func(t *testing.T) {
		out, err := mapperFor[linkedHolder, factoryHolder](t, e).Map(src)
		require.NoError(t, err)
		got, ok := out.Items.(*morph.List[any])
		require.True(t, ok, "Items is %T", out.Items)
		assert.Equal(t, []any{1, 2, 3}, got.Items())
	})

	t.Run("call factory", func(t *testing.T) {
		factory := morph.CollectionFactory("Items", func() morph.Collection { return morph.NewList[int]() })
		out, err := mapperFor[linkedHolder, abstractHolder](t, e).Map(src, factory)
		require.NoError(t, err)
		got, ok := out.Items.(*morph.List[int])
		require.True(t, ok, "Items is %T", out.Items)
		assert.Equal(t, []int{1, 2, 3}, got.Items())
	})

	t.Run("null collection", func(t *testing.T) {
		out, err := mapperFor[linkedHolder, abstractHolder](t, e).Map(&linkedHolder{})
		require.NoError(t, err)
		assert.Nil(t, out.Items)
	})
}

type catalog struct {
	Entries map[string]*Foo
}

type catalogView struct {
	Entries map[string]Bar
}

func TestMapper_Maps(t *testing.T) {
	e := newEngine(t)
	out, err := mapperFor[catalog, catalogView](t, e).Map(&catalog{
		Entries: map[string]*Foo{"a": {ID: 1, Name: "A"}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]Bar{"a": {ID: 1, Name: "A"}}, out.Entries)
}

type fooRef struct {
	Obj *Foo
}

type barRef struct {
	Obj *Bar
}

type barValue struct {
	Obj Bar
}

func TestMapper_NestedRecords(t *testing.T) {
	e := newEngine(t)
	src := &fooRef{Obj: &Foo{ID: 5, Name: "five"}}

	same, err := mapperFor[fooRef, fooRef](t, e).Map(src)
	require.NoError(t, err)
	assert.NotSame(t, src.Obj, same.Obj)
	assert.Equal(t, src.Obj, same.Obj)

	ref, err := mapperFor[fooRef, barRef](t, e).Map(src)
	require.NoError(t, err)
	assert.Equal(t, &Bar{ID: 5, Name: "five"}, ref.Obj)

	val, err := mapperFor[fooRef, barValue](t, e).Map(src)
	require.NoError(t, err)
	assert.Equal(t, Bar{ID: 5, Name: "five"}, val.Obj)

	empty, err := mapperFor[fooRef, barRef](t, e).Map(&fooRef{})
	require.NoError(t, err)
	assert.Nil(t, empty.Obj)
}

type node struct {
	Name string
	Next *node
}

type nodeView struct {
	Name string
	Next *nodeView
}

func TestMapper_Cycle(t *testing.T) {
	e := newEngine(t)
	m := mapperFor[node, nodeView](t, e)

	chain := &node{Name: "a", Next: &node{Name: "b"}}
	out, err := m.Map(chain)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Next.Name)

	loop := &node{Name: "a"}
	loop.Next = &node{Name: "b", Next: loop}
	_, err = m.Map(loop)
	assert.ErrorIs(t, err, morph.ErrCycle)

	var fe *morph.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Next.Next", fe.Field)
}

type boxed struct {
	A *int
	B int
	C int
}

type unboxed struct {
	A int
	B *int
	C *int
}

func TestMapper_Boxing(t *testing.T) {
	e := newEngine(t)
	n := 3

	out, err := mapperFor[unboxed, boxed](t, e).Map(&unboxed{A: 1, B: &n})
	require.NoError(t, err)
	require.NotNil(t, out.A)
	assert.Equal(t, 1, *out.A)
	assert.Equal(t, 3, out.B)
	assert.Zero(t, out.C)

	back, err := mapperFor[boxed, unboxed](t, e).Map(out)
	require.NoError(t, err)
	assert.Equal(t, 1, back.A)
	require.NotNil(t, back.B)
	assert.Equal(t, 3, *back.B)
}

type ageString struct {
	Age string
}

type ageInt struct {
	Age int
}

type held struct {
	Age any
}

func TestMapper_ScalarMismatch(t *testing.T) {
	e := newEngine(t)

	_, err := mapperFor[ageString, ageInt](t, e).Map(&ageString{Age: "ten"})
	var tm *morph.TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, "Age", tm.Field)
	assert.ErrorIs(t, err, morph.ErrTypeMismatch)

	out, err := mapperFor[held, ageInt](t, e).Map(&held{Age: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, out.Age)

	_, err = mapperFor[held, ageInt](t, e).Map(&held{Age: "ten"})
	assert.ErrorIs(t, err, morph.ErrTypeMismatch)
}

type Base struct {
	ID int
}

type derived struct {
	Base
	Name string
}

type flat struct {
	ID   int
	Name string
}

func TestMapper_Embedded(t *testing.T) {
	e := newEngine(t)

	out, err := mapperFor[derived, flat](t, e).Map(&derived{Base: Base{ID: 4}, Name: "d"})
	require.NoError(t, err)
	assert.Equal(t, &flat{ID: 4, Name: "d"}, out)

	back, err := mapperFor[flat, derived](t, e).Map(out)
	require.NoError(t, err)
	assert.Equal(t, 4, back.ID)
	assert.Equal(t, "d", back.Name)
}

type ownerBase struct {
	Owner string
}

func (b *ownerBase) GetOwner() string { return b.Owner }

type owned struct {
	*ownerBase
	ID int
}

type ownedView struct {
	ID    int
	Owner string
}

func TestMapper_NilEmbeddedGetter(t *testing.T) {
	e := newEngine(t)
	m := mapperFor[owned, ownedView](t, e)

	out, err := m.Map(&owned{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, &ownedView{ID: 7}, out)

	out, err = m.Map(&owned{ownerBase: &ownerBase{Owner: "ops"}, ID: 8})
	require.NoError(t, err)
	assert.Equal(t, &ownedView{ID: 8, Owner: "ops"}, out)
}

type account struct {
	Owner   string
	balance int
}

func (a *account) Balance() int { return a.balance }
func (a *account) SetBalance(v int) { a.balance = v }

type accountView struct {
	Owner   string
	Balance int
}

func TestMapper_Accessors(t *testing.T) {
	e := newEngine(t)

	view, err := mapperFor[account, accountView](t, e).Map(&account{Owner: "o", balance: 50})
	require.NoError(t, err)
	assert.Equal(t, &accountView{Owner: "o", Balance: 50}, view)

	acct, err := mapperFor[accountView, account](t, e).Map(&accountView{Owner: "p", Balance: 70})
	require.NoError(t, err)
	assert.Equal(t, 70, acct.Balance())
}

type priced struct {
	Price float64
}

type pricedCents struct {
	Price int64 `morph.convert:"cents"`
}

type failing struct {
	Price int64 `morph.convert:"fail"`
}

func TestMapper_Converters(t *testing.T) {
	cause := errors.New("refused")
	e := newEngine(t,
		morph.WithConverter("cents", morph.Convert(func(f float64) (int64, error) {
			return int64(math.Round(f * 100)), nil
		})),
		morph.WithConverter("fail", morph.ConverterFunc(func(any) (any, error) {
			return nil, cause
		})),
	)

	out, err := mapperFor[priced, pricedCents](t, e).Map(&priced{Price: 12.34})
	require.NoError(t, err)
	assert.Equal(t, int64(1234), out.Price)

	_, err = mapperFor[priced, failing](t, e).Map(&priced{Price: 1})
	assert.ErrorIs(t, err, morph.ErrConvert)
	assert.ErrorIs(t, err, cause)
	var fe *morph.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Price", fe.Field)

	_, err = morph.For[priced, pricedCents](newEngine(t))
	assert.ErrorIs(t, err, morph.ErrUnknownConverter)
}

type stamped struct {
	At int64
}

type stampedTime struct {
	At time.Time `morph.convert:"time.unixmilli"`
}

type stampedMillis struct {
	At int64 `morph.convert:"time.unixmilli"`
}

func TestMapper_TimeConverters(t *testing.T) {
	e := newEngine(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	out, err := mapperFor[stamped, stampedTime](t, e).Map(&stamped{At: at.UnixMilli()})
	require.NoError(t, err)
	assert.True(t, at.Equal(out.At))

	back, err := mapperFor[stampedTime, stampedMillis](t, e).Map(out)
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), back.At)
}

type Secret struct {
	SSN string
}

type SecretStored struct {
	SSN string `morph.convert:"encrypt.aes"`
}

type SecretRead struct {
	SSN string `morph.convert:"decrypt.aes"`
}

func TestMapper_Encryption(t *testing.T) {
	e := newEngine(t, morph.WithKey(aesKey))

	stored, err := mapperFor[Secret, SecretStored](t, e).Map(&Secret{SSN: "123-45-6789"})
	require.NoError(t, err)
	assert.NotEqual(t, "123-45-6789", stored.SSN)

	read, err := mapperFor[SecretStored, SecretRead](t, e).Map(stored)
	require.NoError(t, err)
	assert.Equal(t, "123-45-6789", read.SSN)

	_, err = morph.For[Secret, SecretStored](newEngine(t))
	assert.ErrorIs(t, err, morph.ErrUnknownConverter)
}

type intToString struct{}

func (intToString) Supports(src, dst reflect.Type) bool {
	return src.Kind() == reflect.Int && dst.Kind() == reflect.String
}

func (intToString) Convert(v any, _ reflect.Type) (any, error) {
	return strings.Repeat("*", v.(int)), nil
}

func TestMapper_TypeConverter(t *testing.T) {
	e := newEngine(t, morph.WithTypeConverter(intToString{}))
	out, err := mapperFor[ageInt, ageString](t, e).Map(&ageInt{Age: 3})
	require.NoError(t, err)
	assert.Equal(t, "***", out.Age)
}

type hooked struct {
	Name    string
	Display string
	before  bool
}

func (h *hooked) BeforeMap(source any) error {
	if source.(*Foo).Name == "reject" {
		return errors.New("rejected")
	}
	h.before = true
	return nil
}

func (h *hooked) AfterMap(source any) error {
	h.Display = strings.ToUpper(source.(*Foo).Name)
	return nil
}

func TestMapper_Hooks(t *testing.T) {
	e := newEngine(t)
	m := mapperFor[Foo, hooked](t, e)

	out, err := m.Map(&Foo{Name: "ann"})
	require.NoError(t, err)
	assert.True(t, out.before)
	assert.Equal(t, "ann", out.Name)
	assert.Equal(t, "ANN", out.Display)

	_, err = m.Map(&Foo{Name: "reject"})
	assert.ErrorContains(t, err, "rejected")
}

func TestMapper_NilHandling(t *testing.T) {
	e := newEngine(t)
	m := mapperFor[Foo, Bar](t, e)

	out, err := m.Map(nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	assert.ErrorIs(t, m.MapTo(&Foo{}, nil), morph.ErrNilTarget)

	dst := &Bar{ID: 1}
	require.NoError(t, m.MapTo(nil, dst))
	assert.Equal(t, &Bar{ID: 1}, dst)
}

func TestMapper_MapAll(t *testing.T) {
	e := newEngine(t)

	out, err := mapperFor[Foo, Bar](t, e).MapAll([]Foo{{ID: 1}, {ID: 2}})
	require.NoError(t, err)
	assert.Equal(t, []Bar{{ID: 1}, {ID: 2}}, out)

	_, err = mapperFor[ageString, ageInt](t, e).MapAll([]ageString{{Age: "1"}, {Age: "2"}})
	var tm *morph.TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, "[0].Age", tm.Field)

	none, err := mapperFor[Foo, Bar](t, e).MapAll(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMapping_Untyped(t *testing.T) {
	e := newEngine(t)

	m, err := e.Mapping(reflect.TypeFor[*Foo](), reflect.TypeFor[Bar]())
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[Foo](), m.Source())
	assert.Equal(t, reflect.TypeFor[Bar](), m.Target())

	out, err := m.Map(Foo{ID: 1, Name: "v"})
	require.NoError(t, err)
	assert.Equal(t, &Bar{ID: 1, Name: "v"}, out)

	_, err = m.Map(&Bar{})
	assert.ErrorIs(t, err, morph.ErrTypeMismatch)

	err = m.MapTo(&Foo{}, &Foo{})
	assert.ErrorIs(t, err, morph.ErrTypeMismatch)
}

func TestEngine_Map(t *testing.T) {
	e := newEngine(t)

	var dst Bar
	require.NoError(t, e.Map(&Foo{ID: 9, Name: "n"}, &dst))
	assert.Equal(t, Bar{ID: 9, Name: "n"}, dst)

	assert.ErrorIs(t, e.Map(&Foo{}, nil), morph.ErrNilTarget)
	assert.ErrorIs(t, e.Map(&Foo{}, dst), morph.ErrNilTarget)
	assert.ErrorIs(t, e.Map(42, &dst), morph.ErrNotRecord)
}

func TestDescribe_OverridesTags(t *testing.T) {
	e := newEngine(t)
	morph.Describe[PersonView](e).
		Field("DisplayName").Alias("Email").
		Field("Email").ConvertNamed(morph.MaskName)

	view, err := mapperFor[Person, PersonView](t, e).Map(&Person{Name: "Al", Email: "al@x.io"})
	require.NoError(t, err)
	assert.Equal(t, "al@x.io", view.DisplayName)
	assert.NotEqual(t, "al@x.io", view.Email)
}
