package frame

import (
	"math"
	"strconv"
	"time"
)

// Kind identifies the storage type of a column
type Kind uint8

const (
	KindString Kind = iota
	KindNumber
	KindDate
)

// DateLayout is the canonical textual form for date cells
const DateLayout = "2006-01-02"

// String returns the lowercase kind name
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Column is an immutable, typed vector of cells. Exactly one of the backing
// slices is populated, according to Kind. Callers must treat slices returned
// by the accessors as read-only.
type Column struct {
	name    string
	kind    Kind
	strings []string
	numbers []float64
	dates   []time.Time
}

// NewStringColumn creates a string column that owns values
func NewStringColumn(name string, values []string) *Column {
	return &Column{name: name, kind: KindString, strings: values}
}

// NewNumberColumn creates a number column that owns values. NaN marks a null cell.
func NewNumberColumn(name string, values []float64) *Column {
	return &Column{name: name, kind: KindNumber, numbers: values}
}

// NewDateColumn creates a date column that owns values
func NewDateColumn(name string, values []time.Time) *Column {
	return &Column{name: name, kind: KindDate, dates: values}
}

// Name returns the column header
func (c *Column) Name() string { return c.name }

// Kind returns the storage kind
func (c *Column) Kind() Kind { return c.kind }

// Len returns the number of cells
func (c *Column) Len() int {
	switch c.kind {
	case KindNumber:
		return len(c.numbers)
	case KindDate:
		return len(c.dates)
	default:
		return len(c.strings)
	}
}

// Strings returns the backing slice of a string column, nil otherwise
func (c *Column) Strings() []string { return c.strings }

// Numbers returns the backing slice of a number column, nil otherwise
func (c *Column) Numbers() []float64 { return c.numbers }

// Dates returns the backing slice of a date column, nil otherwise
func (c *Column) Dates() []time.Time { return c.dates }

// Renamed returns a column sharing storage under a different name
func (c *Column) Renamed(name string) *Column {
	cp := *c
	cp.name = name
	return &cp
}

// Value returns the cell at row i
func (c *Column) Value(i int) Value {
	switch c.kind {
	case KindNumber:
		return NumberValue(c.numbers[i])
	case KindDate:
		return DateValue(c.dates[i])
	default:
		return StringValue(c.strings[i])
	}
}

// Format renders the cell at row i for textual output
func (c *Column) Format(i int) string {
	return c.Value(i).String()
}

// Take gathers the cells at the given row indexes into a new column
func (c *Column) Take(idx []int) *Column {
	out := &Column{name: c.name, kind: c.kind}
	switch c.kind {
	case KindNumber:
		out.numbers = make([]float64, len(idx))
		for i, j := range idx {
			out.numbers[i] = c.numbers[j]
		}
	case KindDate:
		out.dates = make([]time.Time, len(idx))
		for i, j := range idx {
			out.dates[i] = c.dates[j]
		}
	default:
		out.strings = make([]string, len(idx))
		for i, j := range idx {
			out.strings[i] = c.strings[j]
		}
	}
	return out
}

// Value is a single typed cell
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Date time.Time
}

// StringValue wraps s as a string cell
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// NumberValue wraps f as a number cell
func NumberValue(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// DateValue wraps t as a date cell
func DateValue(t time.Time) Value { return Value{Kind: KindDate, Date: t} }

// NullValue returns the null cell of the given kind
func NullValue(k Kind) Value {
	if k == KindNumber {
		return NumberValue(math.NaN())
	}
	return Value{Kind: k}
}

// IsNull reports whether the cell holds no data
func (v Value) IsNull() bool {
	switch v.Kind {
	case KindNumber:
		return math.IsNaN(v.Num)
	case KindDate:
		return v.Date.IsZero()
	default:
		return v.Str == ""
	}
}

// Equal compares two cells; nulls of the same kind are equal
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	if v.IsNull() || o.IsNull() {
		return v.IsNull() && o.IsNull()
	}
	switch v.Kind {
	case KindNumber:
		return v.Num == o.Num
	case KindDate:
		return v.Date.Equal(o.Date)
	default:
		return v.Str == o.Str
	}
}

// String renders the cell; nulls render as the empty string
func (v Value) String() string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindDate:
		return v.Date.Format(DateLayout)
	default:
		return v.Str
	}
}
