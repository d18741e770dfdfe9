package manifest

import (
	"fmt"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Value is a single typed argument of a manifest instruction.
type Value interface {
	Kind() string
	Render() string
}

type AddressValue string

func Address(addr string) AddressValue { return AddressValue(addr) }

func (a AddressValue) Kind() string { return "Address" }
func (a AddressValue) Render() string { return fmt.Sprintf("Address(%s)", quote(string(a))) }

type DecimalValue string

func Decimal(amount string) DecimalValue { return DecimalValue(amount) }

func (d DecimalValue) Kind() string { return "Decimal" }
func (d DecimalValue) Render() string { return fmt.Sprintf("Decimal(%s)", quote(string(d))) }

type StringValue string

func String(s string) StringValue { return StringValue(s) }

func (s StringValue) Kind() string { return "String" }
func (s StringValue) Render() string { return quote(string(s)) }

type BoolValue bool

func Bool(b bool) BoolValue { return BoolValue(b) }

func (b BoolValue) Kind() string { return "Bool" }
func (b BoolValue) Render() string { return strconv.FormatBool(bool(b)) }

type NonFungibleLocalIdValue string

func NonFungibleLocalId(id string) NonFungibleLocalIdValue { return NonFungibleLocalIdValue(id) }

func (n NonFungibleLocalIdValue) Kind() string { return "NonFungibleLocalId" }
func (n NonFungibleLocalIdValue) Render() string {
	return fmt.Sprintf("NonFungibleLocalId(%s)", quote(string(n)))
}

type TupleValue []Value

func Tuple(fields ...Value) TupleValue { return TupleValue(fields) }

func (t TupleValue) Kind() string { return "Tuple" }
func (t TupleValue) Render() string {
	rendered := make([]string, 0, len(t))
	for _, f := range t {
		rendered = append(rendered, f.Render())
	}
	return fmt.Sprintf("Tuple(%s)", strings.Join(rendered, ", "))
}

type mapEntry struct {
	key   Value
	value Value
}

// MapValue is a Map<K, V> argument. Entries render in insertion order; setting an existing key
// replaces its value in place.
type MapValue struct {
	KeyKind   string
	ValueKind string
	entries   *orderedmap.OrderedMap[string, mapEntry]
}

func NewMap(keyKind string, valueKind string) *MapValue {
	return &MapValue{
		KeyKind:   keyKind,
		ValueKind: valueKind,
		entries:   orderedmap.New[string, mapEntry](),
	}
}

func (m *MapValue) Set(key Value, value Value) error {
	if key.Kind() != m.KeyKind {
		return fmt.Errorf("map key kind %s does not match %s", key.Kind(), m.KeyKind)
	}
	if value.Kind() != m.ValueKind {
		return fmt.Errorf("map value kind %s does not match %s", value.Kind(), m.ValueKind)
	}
	m.entries.Set(key.Render(), mapEntry{key: key, value: value})
	return nil
}

func (m *MapValue) Len() int {
	return m.entries.Len()
}

func (m *MapValue) Kind() string { return "Map" }

func (m *MapValue) Render() string {
	rendered := make([]string, 0, m.entries.Len())
	for pair := m.entries.Oldest(); pair != nil; pair = pair.Next() {
		rendered = append(rendered, fmt.Sprintf("%s => %s", pair.Value.key.Render(), pair.Value.value.Render()))
	}
	return fmt.Sprintf("Map<%s, %s>(%s)", m.KeyKind, m.ValueKind, strings.Join(rendered, ", "))
}

func quote(s string) string {
	return strconv.Quote(s)
}
