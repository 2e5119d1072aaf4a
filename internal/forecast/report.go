package forecast

import (
	"fmt"
	"sort"
	"time"

	"salesforecast/internal/dataset"
	"salesforecast/internal/frame"
	"salesforecast/pkg/contracts/domain"
)

// DatePoint is one day of a sales series
type DatePoint struct {
	Date  time.Time `json:"date"`
	Sales int64     `json:"predicted_sales"`
}

// Filter narrows a series to one SKU, one store, or both. Empty fields match
// everything.
type Filter struct {
	SKU   string
	Store string
}

// Options lists the selectable SKUs and stores of a result, sorted
type Options struct {
	SKUs   []string `json:"skus"`
	Stores []string `json:"stores"`
}

// StockCheck compares current stock with the forecast demand of one SKU
// across all stores and dates
type StockCheck struct {
	SKU          string `json:"sku"`
	CurrentStock int64  `json:"current_stock"`
	Forecast     int64  `json:"forecast"`
	Sufficient   bool   `json:"sufficient"`
	Shortfall    int64  `json:"shortfall"`
}

// Row is one line of the forecast table
type Row struct {
	Date           time.Time `json:"date"`
	SKU            string    `json:"sku"`
	Store          string    `json:"store_id"`
	PredictedSales int64     `json:"predicted_sales"`
}

// resultColumns are the columns every report reads
type resultColumns struct {
	dates  []time.Time
	skus   []string
	stores []string
	preds  []float64
}

func columnsOf(result *frame.Frame) (*resultColumns, error) {
	get := func(name string, kind frame.Kind) (*frame.Column, error) {
		c, ok := result.Column(name)
		if !ok || c.Kind() != kind {
			return nil, &domain.InvariantViolationError{Invariant: "result-columns", Detail: fmt.Sprintf("forecast result lacks %s column %s", kind, name)}
		}
		return c, nil
	}
	d, err := get(dataset.ColDate, frame.KindDate)
	if err != nil {
		return nil, err
	}
	s, err := get(dataset.ColSKU, frame.KindString)
	if err != nil {
		return nil, err
	}
	st, err := get(dataset.ColStore, frame.KindString)
	if err != nil {
		return nil, err
	}
	p, err := get(ColPredicted, frame.KindNumber)
	if err != nil {
		return nil, err
	}
	return &resultColumns{dates: d.Dates(), skus: s.Strings(), stores: st.Strings(), preds: p.Numbers()}, nil
}

// TotalsByDate sums predicted sales per date, ascending by date
func TotalsByDate(result *frame.Frame) ([]DatePoint, error) {
	return Series(result, Filter{})
}

// Series sums predicted sales per date over the rows matching f. A filter
// that matches nothing yields ErrNoSeriesData.
func Series(result *frame.Frame, f Filter) ([]DatePoint, error) {
	rc, err := columnsOf(result)
	if err != nil {
		return nil, err
	}

	sums := make(map[time.Time]int64)
	matched := false
	for i := range rc.preds {
		if f.SKU != "" && rc.skus[i] != f.SKU {
			continue
		}
		if f.Store != "" && rc.stores[i] != f.Store {
			continue
		}
		matched = true
		sums[rc.dates[i]] += int64(rc.preds[i])
	}
	if !matched && (f.SKU != "" || f.Store != "") {
		return nil, domain.ErrNoSeriesData
	}

	points := make([]DatePoint, 0, len(sums))
	for d, v := range sums {
		points = append(points, DatePoint{Date: d, Sales: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

// SelectorOptions returns the distinct SKUs and stores of a result
func SelectorOptions(result *frame.Frame) (Options, error) {
	rc, err := columnsOf(result)
	if err != nil {
		return Options{}, err
	}
	return Options{SKUs: sortedDistinct(rc.skus), Stores: sortedDistinct(rc.stores)}, nil
}

func sortedDistinct(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// CheckStock reports whether currentStock covers the forecast demand of sku
func CheckStock(result *frame.Frame, sku string, currentStock int64) (*StockCheck, error) {
	if currentStock < 0 {
		return nil, fmt.Errorf("current stock must not be negative, got %d", currentStock)
	}
	rc, err := columnsOf(result)
	if err != nil {
		return nil, err
	}

	var sum int64
	found := false
	for i, s := range rc.skus {
		if s != sku {
			continue
		}
		found = true
		sum += int64(rc.preds[i])
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSKU, sku)
	}

	check := &StockCheck{
		SKU:          sku,
		CurrentStock: currentStock,
		Forecast:     sum,
		Sufficient:   currentStock >= sum,
	}
	if !check.Sufficient {
		check.Shortfall = sum - currentStock
	}
	return check, nil
}

// Rows returns up to limit table rows starting at offset, plus the total row
// count. A non-positive limit returns every remaining row.
func Rows(result *frame.Frame, offset, limit int) ([]Row, int, error) {
	rc, err := columnsOf(result)
	if err != nil {
		return nil, 0, err
	}
	total := len(rc.preds)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	rows := make([]Row, 0, end-offset)
	for i := offset; i < end; i++ {
		rows = append(rows, Row{
			Date:           rc.dates[i],
			SKU:            rc.skus[i],
			Store:          rc.stores[i],
			PredictedSales: int64(rc.preds[i]),
		})
	}
	return rows, total, nil
}
