// Package frame provides the columnar, typed table shared by the loading,
// frame-building and prediction stages.
//
// A Frame is never modified after construction. Operations such as With,
// Without and Select return a new Frame that reuses the unchanged columns.
package frame

import (
	"fmt"
	"strings"
)

// MissingColumnsError is returned by Select when requested columns are absent
type MissingColumnsError struct {
	Names []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing columns: %s", strings.Join(e.Names, ", "))
}

// Frame is an ordered set of equal-length columns
type Frame struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New builds a frame from columns. Every column must have the same length and
// a unique name.
func New(cols ...*Column) (*Frame, error) {
	f := &Frame{
		columns: make([]*Column, 0, len(cols)),
		index:   make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, dup := f.index[c.Name()]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name())
		}
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name(), c.Len(), f.rows)
		}
		f.index[c.Name()] = len(f.columns)
		f.columns = append(f.columns, c)
	}
	return f, nil
}

// MustNew is like New but panics on error. Intended for tests and literals.
func MustNew(cols ...*Column) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// Len returns the row count
func (f *Frame) Len() int { return f.rows }

// Width returns the column count
func (f *Frame) Width() int { return len(f.columns) }

// Columns returns the column names in order
func (f *Frame) Columns() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name()
	}
	return names
}

// Has reports whether the named column exists
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

// At returns the column at position i
func (f *Frame) At(i int) *Column { return f.columns[i] }

// With returns a frame where col replaces the column of the same name, or is
// appended when no such column exists.
func (f *Frame) With(col *Column) (*Frame, error) {
	cols := make([]*Column, len(f.columns), len(f.columns)+1)
	copy(cols, f.columns)
	if i, ok := f.index[col.Name()]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return New(cols...)
}

// Without returns a frame with the named columns dropped
func (f *Frame) Without(names ...string) *Frame {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	cols := make([]*Column, 0, len(f.columns))
	for _, c := range f.columns {
		if _, ok := drop[c.Name()]; !ok {
			cols = append(cols, c)
		}
	}
	out := &Frame{columns: cols, index: make(map[string]int, len(cols)), rows: f.rows}
	for i, c := range cols {
		out.index[c.Name()] = i
	}
	return out
}

// Select returns a frame holding exactly the named columns in the given order
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	var missing []string
	for _, n := range names {
		c, ok := f.Column(n)
		if !ok {
			missing = append(missing, n)
			continue
		}
		cols = append(cols, c)
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Names: missing}
	}
	out := &Frame{columns: cols, index: make(map[string]int, len(cols)), rows: f.rows}
	for i, c := range cols {
		if _, dup := out.index[c.Name()]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name())
		}
		out.index[c.Name()] = i
	}
	return out, nil
}

// Take gathers the given rows into a new frame
func (f *Frame) Take(idx []int) *Frame {
	cols := make([]*Column, len(f.columns))
	for i, c := range f.columns {
		cols[i] = c.Take(idx)
	}
	out := &Frame{columns: cols, index: make(map[string]int, len(cols)), rows: len(idx)}
	for i, c := range cols {
		out.index[c.Name()] = i
	}
	return out
}

// Row returns the cells of row i in column order
func (f *Frame) Row(i int) []Value {
	row := make([]Value, len(f.columns))
	for j, c := range f.columns {
		row[j] = c.Value(i)
	}
	return row
}
