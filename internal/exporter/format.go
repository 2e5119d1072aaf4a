package exporter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"salesforecast/internal/dataset"
	"salesforecast/internal/forecast"
	"salesforecast/internal/frame"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx" in any case
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns the default download name
func (f Format) Filename() string {
	return "forecast." + string(f)
}

// Headers is the export column layout
var Headers = []string{dataset.ColDate, dataset.ColSKU, dataset.ColStore, forecast.ColPredicted}

// table holds the exported columns of a result
type table struct {
	dates  []time.Time
	skus   []string
	stores []string
	preds  []float64
	rows   int
}

func tableOf(result *frame.Frame) (*table, error) {
	sel, err := result.Select(Headers...)
	if err != nil {
		return nil, fmt.Errorf("result cannot be exported: %w", err)
	}
	kinds := []frame.Kind{frame.KindDate, frame.KindString, frame.KindString, frame.KindNumber}
	for i, k := range kinds {
		if c := sel.At(i); c.Kind() != k {
			return nil, fmt.Errorf("result cannot be exported: column %s is %s, expected %s", c.Name(), c.Kind(), k)
		}
	}
	return &table{
		dates:  sel.At(0).Dates(),
		skus:   sel.At(1).Strings(),
		stores: sel.At(2).Strings(),
		preds:  sel.At(3).Numbers(),
		rows:   sel.Len(),
	}, nil
}

func (t *table) len() int { return t.rows }

// formatDate formats a date for CSV output
func formatDate(d time.Time) string {
	return d.Format(frame.DateLayout)
}

// formatInt formats an integral prediction for CSV output
func formatInt(f float64) string {
	return strconv.FormatInt(int64(f), 10)
}
