package forecast

import (
	"fmt"
	"math"
	"time"

	"salesforecast/internal/calendar"
	"salesforecast/internal/dataset"
	"salesforecast/internal/frame"
	"salesforecast/pkg/contracts/domain"
)

// BaseColumns lead every future frame, followed by the product attribute
// columns and then the store attribute columns
var BaseColumns = []string{
	dataset.ColSKU,
	dataset.ColStore,
	dataset.ColDate,
	dataset.ColMonth,
	dataset.ColDayOfWeek,
	dataset.ColWeekday,
}

// FutureRows is the row count of the future frame for the dimensions and
// horizon. ok is false when the product does not fit in an int.
func FutureRows(nSKU, nStore, horizon int) (n int, ok bool) {
	n = 1
	for _, f := range []int{nSKU, nStore, horizon} {
		if f < 0 {
			return 0, false
		}
		if f != 0 && n > math.MaxInt/f {
			return 0, false
		}
		n *= f
	}
	return n, true
}

// CheckFutureSize rejects a forecast whose future frame would exceed maxRows
// before any of it is allocated. A maxRows of zero disables the check.
func CheckFutureSize(dims *dataset.Dimensions, horizon, maxRows int) error {
	if maxRows <= 0 {
		return nil
	}
	n, ok := FutureRows(len(dims.SKUs), len(dims.Stores), horizon)
	if ok && n <= maxRows {
		return nil
	}
	return &domain.SchemaError{Reason: fmt.Sprintf(
		"forecast of %d SKUs x %d stores x %d days exceeds the limit of %d rows",
		len(dims.SKUs), len(dims.Stores), horizon, maxRows)}
}

// BuildFutureFrame enumerates every (SKU, store, date) triple over the horizon
// days following the last history date. Rows are SKU-major, then store, then
// date. Static attributes are joined from the first occurrence of each key.
func BuildFutureFrame(dims *dataset.Dimensions, horizon int) (*frame.Frame, error) {
	if horizon < 0 {
		return nil, fmt.Errorf("%w: horizon %d is negative", domain.ErrInvalidHorizon, horizon)
	}
	if err := distinct(dataset.ColSKU, dims.SKUs); err != nil {
		return nil, err
	}
	if err := distinct(dataset.ColStore, dims.Stores); err != nil {
		return nil, err
	}

	dates := calendar.Range(dims.LastDate, horizon)
	nSKU, nStore, nDate := len(dims.SKUs), len(dims.Stores), len(dates)
	n := nSKU * nStore * nDate
	perSKU := nStore * nDate

	skus := make([]string, n)
	stores := make([]string, n)
	days := make([]time.Time, n)
	months := make([]float64, n)
	weekdays := make([]float64, n)
	names := make([]string, n)
	skuRow := make([]int, n)
	storeRow := make([]int, n)

	// per-date features are computed once per horizon day
	dayMonth := make([]float64, nDate)
	dayOfWeek := make([]float64, nDate)
	dayName := make([]string, nDate)
	for d, day := range dates {
		dayMonth[d] = float64(calendar.Month(day))
		dayOfWeek[d] = float64(calendar.DayOfWeek(day))
		dayName[d] = calendar.WeekdayName(day)
	}

	prodIdx, err := keyIndexes(dims.Products, dims.SKUs)
	if err != nil {
		return nil, err
	}
	storeIdx, err := keyIndexes(dims.StoreInfo, dims.Stores)
	if err != nil {
		return nil, err
	}

	for r := 0; r < n; r++ {
		s := r / perSKU
		t := (r / nDate) % nStore
		d := r % nDate

		skus[r] = dims.SKUs[s]
		stores[r] = dims.Stores[t]
		days[r] = dates[d]
		months[r] = dayMonth[d]
		weekdays[r] = dayOfWeek[d]
		names[r] = dayName[d]
		skuRow[r] = prodIdx[s]
		storeRow[r] = storeIdx[t]
	}

	cols := []*frame.Column{
		frame.NewStringColumn(dataset.ColSKU, skus),
		frame.NewStringColumn(dataset.ColStore, stores),
		frame.NewDateColumn(dataset.ColDate, days),
		frame.NewNumberColumn(dataset.ColMonth, months),
		frame.NewNumberColumn(dataset.ColDayOfWeek, weekdays),
		frame.NewStringColumn(dataset.ColWeekday, names),
	}
	cols = append(cols, joined(dims.Products, skuRow)...)
	cols = append(cols, joined(dims.StoreInfo, storeRow)...)

	future, err := frame.New(cols...)
	if err != nil {
		return nil, &domain.InvariantViolationError{Invariant: "future-frame-columns", Detail: err.Error()}
	}
	if future.Len() != n {
		return nil, &domain.InvariantViolationError{
			Invariant: "future-frame-rows",
			Detail:    fmt.Sprintf("built %d rows, expected %d SKUs x %d stores x %d days", future.Len(), nSKU, nStore, nDate),
		}
	}
	return future, nil
}

func distinct(name string, keys []string) error {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			return &domain.InvariantViolationError{Invariant: "unique-keys", Detail: fmt.Sprintf("%s %q occurs twice", name, k)}
		}
		seen[k] = struct{}{}
	}
	return nil
}

// keyIndexes resolves each key to its attribute row
func keyIndexes(table *dataset.AttributeTable, keys []string) ([]int, error) {
	idx := make([]int, len(keys))
	for i, k := range keys {
		row, ok := table.Lookup(k)
		if !ok {
			return nil, &domain.InvariantViolationError{
				Invariant: "attribute-join",
				Detail:    fmt.Sprintf("%s %q has no attribute row", table.Key(), k),
			}
		}
		idx[i] = row
	}
	return idx, nil
}

func joined(table *dataset.AttributeTable, rows []int) []*frame.Column {
	attrs := table.Attributes()
	out := make([]*frame.Column, attrs.Width())
	for i := range out {
		out[i] = attrs.At(i).Take(rows)
	}
	return out
}
