package dataset

import (
	"fmt"
	"time"

	"salesforecast/internal/frame"
	"salesforecast/pkg/contracts/domain"
)

// Schema declares which attribute columns describe a product and which
// describe a store. Declared columns that are absent from an upload are
// skipped; the feature check reports them if the model needs them.
type Schema struct {
	ProductAttributes []string `yaml:"product_attributes"`
	StoreAttributes   []string `yaml:"store_attributes"`
}

// DefaultSchema returns the BigMart attribute split
func DefaultSchema() Schema {
	return Schema{
		ProductAttributes: []string{"Product_Type", "Promotion", "Item_MRP"},
		StoreAttributes:   []string{"Store_Type", "Region", "Season", "Holiday"},
	}
}

var reservedColumns = map[string]struct{}{
	ColDate: {}, ColSKU: {}, ColStore: {}, ColSales: {},
	ColMonth: {}, ColDayOfWeek: {}, ColWeekday: {},
}

// Validate rejects reserved names and columns claimed by both sides
func (s Schema) Validate() error {
	owner := make(map[string]string)
	check := func(side string, cols []string) error {
		for _, c := range cols {
			if _, ok := reservedColumns[c]; ok {
				return fmt.Errorf("%s attribute %q is a reserved column", side, c)
			}
			if prev, ok := owner[c]; ok {
				return fmt.Errorf("attribute %q is declared as both %s and %s attribute", c, prev, side)
			}
			owner[c] = side
		}
		return nil
	}
	if err := check("product", s.ProductAttributes); err != nil {
		return err
	}
	return check("store", s.StoreAttributes)
}

// AttributeTable holds one row of static attributes per key, taken from the
// first occurrence of that key in the history
type AttributeTable struct {
	key   string
	attrs *frame.Frame
	keys  []string
	index map[string]int
}

// Key returns the key column name
func (t *AttributeTable) Key() string { return t.key }

// Keys returns the keys in first-seen order
func (t *AttributeTable) Keys() []string { return t.keys }

// Columns returns the attribute column names
func (t *AttributeTable) Columns() []string { return t.attrs.Columns() }

// Attributes returns the attribute frame, one row per key in Keys order
func (t *AttributeTable) Attributes() *frame.Frame { return t.attrs }

// Lookup returns the attribute row position of key
func (t *AttributeTable) Lookup(key string) (int, bool) {
	i, ok := t.index[key]
	return i, ok
}

// Row returns the attribute cells of key in column order
func (t *AttributeTable) Row(key string) ([]frame.Value, bool) {
	i, ok := t.index[key]
	if !ok {
		return nil, false
	}
	return t.attrs.Row(i), true
}

// Dimensions is everything the future-frame builder needs from the history
type Dimensions struct {
	SKUs      []string
	Stores    []string
	Products  *AttributeTable
	StoreInfo *AttributeTable
	FirstDate time.Time
	LastDate  time.Time
	Rows      int
}

// ExtractDimensions collects the distinct SKUs and stores in first-seen order
// together with their first-occurrence attribute rows
func ExtractDimensions(history *frame.Frame, schema Schema) (*Dimensions, error) {
	if history.Len() == 0 {
		return nil, &domain.EmptyDatasetError{}
	}

	dateCol, err := requireColumn(history, ColDate, frame.KindDate)
	if err != nil {
		return nil, err
	}
	skuCol, err := requireColumn(history, ColSKU, frame.KindString)
	if err != nil {
		return nil, err
	}
	storeCol, err := requireColumn(history, ColStore, frame.KindString)
	if err != nil {
		return nil, err
	}

	products, err := firstOccurrence(history, skuCol, present(history, schema.ProductAttributes))
	if err != nil {
		return nil, err
	}
	stores, err := firstOccurrence(history, storeCol, present(history, schema.StoreAttributes))
	if err != nil {
		return nil, err
	}

	dates := dateCol.Dates()
	first, last := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}

	return &Dimensions{
		SKUs:      products.keys,
		Stores:    stores.keys,
		Products:  products,
		StoreInfo: stores,
		FirstDate: first,
		LastDate:  last,
		Rows:      history.Len(),
	}, nil
}

func requireColumn(f *frame.Frame, name string, kind frame.Kind) (*frame.Column, error) {
	col, ok := f.Column(name)
	if !ok {
		return nil, &domain.SchemaError{Missing: []string{name}}
	}
	if col.Kind() != kind {
		return nil, &domain.SchemaError{Reason: fmt.Sprintf("column %s must be of type %s, found %s", name, kind, col.Kind())}
	}
	return col, nil
}

func present(f *frame.Frame, cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if f.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func firstOccurrence(history *frame.Frame, keyCol *frame.Column, attrCols []string) (*AttributeTable, error) {
	keys := keyCol.Strings()
	index := make(map[string]int)
	firstRows := make([]int, 0)
	order := make([]string, 0)
	for row, k := range keys {
		if _, seen := index[k]; seen {
			continue
		}
		index[k] = len(order)
		order = append(order, k)
		firstRows = append(firstRows, row)
	}

	selected, err := history.Select(attrCols...)
	if err != nil {
		return nil, err
	}

	return &AttributeTable{
		key:   keyCol.Name(),
		attrs: selected.Take(firstRows),
		keys:  order,
		index: index,
	}, nil
}
