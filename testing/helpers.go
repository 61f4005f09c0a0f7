// Package testing provides fixtures and helpers for morph tests.
package testing

import (
	"testing"
	"time"

	"github.com/zoobzio/morph"
)

// TestKey returns a valid 32-byte AES key for testing.
func TestKey() []byte {
	return []byte("32-byte-key-for-aes-256-encrypt!")
}

// TestEngine returns an engine with the test key and opts applied.
func TestEngine(tb testing.TB, opts ...morph.Option) *morph.Engine {
	tb.Helper()
	e, err := morph.New(append([]morph.Option{morph.WithKey(TestKey())}, opts...)...)
	if err != nil {
		tb.Fatalf("morph.New() error: %v", err)
	}
	return e
}

// TestMapper returns the mapper for S to T on e.
func TestMapper[S, T any](tb testing.TB, e *morph.Engine) *morph.Mapper[S, T] {
	tb.Helper()
	m, err := morph.For[S, T](e)
	if err != nil {
		tb.Fatalf("morph.For() error: %v", err)
	}
	return m
}

// Address is a nested record shared by the customer fixtures.
type Address struct {
	Street string
	City   string
}

// Customer is a domain record with sensitive fields.
type Customer struct {
	ID      int
	Name    string
	Email   string
	SSN     string
	Address *Address
}

// LineItem is an order line.
type LineItem struct {
	SKU      string
	Quantity int
	Price    float64
}

// Order is the source side of the fixture graph.
type Order struct {
	ID       int
	Customer *Customer
	Items    []LineItem
	Labels   *morph.LinkedList[string]
	Notes    map[string]string
	Placed   time.Time
	Internal string
}

// CustomerRecord is the storage form of Customer: contact data encrypted,
// the SSN reduced to a digest.
type CustomerRecord struct {
	ID      int
	Name    string
	Email   string `morph.convert:"encrypt.aes"`
	SSN     string `morph.convert:"hash.sha256"`
	Address *Address
}

// OrderRecord is the storage form of Order.
type OrderRecord struct {
	ID       int
	Customer *CustomerRecord
	Items    []LineItem
	Labels   morph.Collection
	Notes    map[string]string
	PlacedAt int64  `morph.alias:"Placed" morph.convert:"time.unixmilli"`
	Internal string `morph.ignore:"except=audit"`
}

// CustomerView is the public form of Customer.
type CustomerView struct {
	ID      int
	Name    string `morph.convert:"mask.name"`
	Email   string `morph.convert:"mask.email"`
	Address *AddressView
}

// AddressView is the public form of Address.
type AddressView struct {
	City string
}

// LineItemView is the public form of LineItem.
type LineItemView struct {
	SKU      string
	Quantity *int
}

// OrderView is the public form of Order.
type OrderView struct {
	ID       int
	Customer *CustomerView
	Items    []LineItemView
	Labels   morph.Collection `morph.collection:"list"`
	Placed   time.Time
	Internal string `morph.ignore:""`
}

// SampleOrder returns a fully populated Order.
func SampleOrder() *Order {
	return &Order{
		ID: 100,
		Customer: &Customer{
			ID:      7,
			Name:    "Alice Smith",
			Email:   "alice@example.com",
			SSN:     "123-45-6789",
			Address: &Address{Street: "1 Main St", City: "Springfield"},
		},
		Items: []LineItem{
			{SKU: "A-1", Quantity: 2, Price: 9.5},
			{SKU: "B-2", Quantity: 1, Price: 20},
		},
		Labels:   morph.NewLinkedList("gift", "rush"),
		Notes:    map[string]string{"door": "back"},
		Placed:   time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Internal: "fraud-check",
	}
}
