package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"salesforecast/internal/calendar"
	"salesforecast/internal/frame"
	"salesforecast/pkg/contracts/domain"
)

// Column names of the BigMart upload format and of the derived features
const (
	ColDate      = "Date"
	ColSKU       = "SKU"
	ColStore     = "Store_ID"
	ColSales     = "Sales_Quantity"
	ColMonth     = "Month"
	ColDayOfWeek = "DayOfWeek"
	ColWeekday   = "Weekday"
)

// RequiredColumns must be present in every upload
var RequiredColumns = []string{ColDate, ColSKU, ColStore, ColSales}

// Format is the container format of an upload
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks the upload format from the file name, falling back to the
// content type
func DetectFormat(filename, contentType string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	switch {
	case strings.Contains(contentType, "csv"), strings.HasPrefix(contentType, "text/plain"):
		return FormatCSV, nil
	case strings.Contains(contentType, "spreadsheetml"):
		return FormatXLSX, nil
	}
	return "", &domain.SchemaError{Reason: fmt.Sprintf("unsupported file type %q, expected .csv or .xlsx", filename)}
}

// LoadOptions controls LoadHistory
type LoadOptions struct {
	Format  Format
	Sheet   string // xlsx only; empty selects the first sheet
	MaxRows int    // 0 means unlimited
}

// dayFirstLayouts are tried in order. Single-digit layout elements also accept
// zero-padded input.
var dayFirstLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// LoadHistory parses an uploaded sales table, normalises the Date column to
// calendar dates and derives the Month and DayOfWeek features.
func LoadHistory(r io.Reader, opts LoadOptions) (*frame.Frame, error) {
	var (
		records [][]string
		err     error
	)
	switch opts.Format {
	case FormatXLSX:
		records, err = readXLSX(r, opts.Sheet)
	case FormatCSV, "":
		records, err = readCSV(r)
	default:
		return nil, &domain.SchemaError{Reason: fmt.Sprintf("unsupported format %q", opts.Format)}
	}
	if err != nil {
		return nil, err
	}

	history, err := buildHistory(records, opts.MaxRows, opts.Format == FormatXLSX)
	if err != nil {
		return nil, err
	}

	slog.Debug("history loaded",
		slog.String("format", string(opts.Format)),
		slog.Int("rows", history.Len()),
		slog.Int("columns", history.Width()))

	return history, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, &domain.SchemaError{Reason: fmt.Sprintf("malformed CSV at line %d: %v", parseErr.Line, parseErr.Err)}
		}
		return nil, &domain.SchemaError{Reason: fmt.Sprintf("failed to read CSV: %v", err)}
	}
	return records, nil
}

// readXLSX returns raw cell values so that date cells arrive as Excel serial
// numbers rather than in the workbook's display format
func readXLSX(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &domain.SchemaError{Reason: fmt.Sprintf("failed to open workbook: %v", err)}
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, &domain.SchemaError{Reason: "workbook has no sheets"}
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &domain.SchemaError{Reason: fmt.Sprintf("failed to read sheet %q: %v", sheet, err)}
	}
	return rows, nil
}

func buildHistory(records [][]string, maxRows int, serialDates bool) (*frame.Frame, error) {
	if len(records) == 0 {
		return nil, &domain.SchemaError{Missing: append([]string(nil), RequiredColumns...)}
	}

	header, err := parseHeader(records[0])
	if err != nil {
		return nil, err
	}

	body := make([][]string, 0, len(records)-1)
	for i, rec := range records[1:] {
		if blankRecord(rec) {
			continue
		}
		if len(rec) > len(header) {
			return nil, &domain.SchemaError{
				Row:    i + 1,
				Column: fmt.Sprintf("#%d", len(header)+1),
				Value:  rec[len(header)],
				Reason: fmt.Sprintf("row has %d cells but the header has %d columns", len(rec), len(header)),
			}
		}
		body = append(body, rec)
	}
	if maxRows > 0 && len(body) > maxRows {
		return nil, &domain.SchemaError{Reason: fmt.Sprintf("upload has %d rows, the limit is %d", len(body), maxRows)}
	}

	cols := make([]*frame.Column, 0, len(header)+2)
	var dates []time.Time
	for j, name := range header {
		cells := make([]string, len(body))
		for i, rec := range body {
			if j < len(rec) {
				cells[i] = strings.TrimSpace(rec[j])
			}
		}

		var col *frame.Column
		switch name {
		case ColDate:
			dates, err = parseDates(cells, serialDates)
			if err != nil {
				return nil, err
			}
			col = frame.NewDateColumn(name, dates)
		case ColSKU, ColStore:
			col, err = identifierColumn(name, cells)
		case ColSales:
			col, err = quantityColumn(name, cells)
		default:
			col = inferColumn(name, cells)
		}
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	history, err := frame.New(cols...)
	if err != nil {
		return nil, &domain.SchemaError{Reason: err.Error()}
	}
	return withCalendarFeatures(history, dates)
}

func parseHeader(raw []string) ([]string, error) {
	header := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			return nil, &domain.SchemaError{Reason: fmt.Sprintf("column %d has an empty header", i+1)}
		}
		if prev, dup := seen[name]; dup {
			return nil, &domain.SchemaError{Reason: fmt.Sprintf("column %q appears twice (positions %d and %d)", name, prev+1, i+1)}
		}
		seen[name] = i
		header[i] = name
	}

	var missing []string
	for _, req := range RequiredColumns {
		if _, ok := seen[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.SchemaError{Missing: missing}
	}
	return header, nil
}

func blankRecord(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseDates(cells []string, serialDates bool) ([]time.Time, error) {
	parse := ParseDayFirst
	if serialDates {
		parse = ParseWorkbookDate
	}
	dates := make([]time.Time, len(cells))
	for i, cell := range cells {
		d, err := parse(cell)
		if err != nil {
			return nil, &domain.SchemaError{Row: i + 1, Column: ColDate, Value: cell, Reason: "not a day-first date"}
		}
		dates[i] = d
	}
	return dates, nil
}

// ParseDayFirst parses a date written day-first (15/01/2024) or an ISO date.
// Bare numbers are rejected.
func ParseDayFirst(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return calendar.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// ParseWorkbookDate parses a raw XLSX cell: a text date as ParseDayFirst does,
// or the Excel serial day number of a date-formatted cell
func ParseWorkbookDate(s string) (time.Time, error) {
	t, err := ParseDayFirst(s)
	if err == nil {
		return t, nil
	}
	if serial, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil && serial > 0 {
		if t, xerr := excelize.ExcelDateToTime(serial, false); xerr == nil {
			return calendar.Day(t), nil
		}
	}
	return time.Time{}, err
}

func identifierColumn(name string, cells []string) (*frame.Column, error) {
	for i, cell := range cells {
		if cell == "" {
			return nil, &domain.SchemaError{Row: i + 1, Column: name, Value: cell, Reason: "identifier is empty"}
		}
	}
	return frame.NewStringColumn(name, cells), nil
}

func quantityColumn(name string, cells []string) (*frame.Column, error) {
	values := make([]float64, len(cells))
	for i, cell := range cells {
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil || v < 0 {
			return nil, &domain.SchemaError{Row: i + 1, Column: name, Value: cell, Reason: "must be a non-negative number"}
		}
		values[i] = v
	}
	return frame.NewNumberColumn(name, values), nil
}

// inferColumn types an attribute column as numeric when every non-empty cell
// parses as a float, and as string otherwise
func inferColumn(name string, cells []string) *frame.Column {
	values := make([]float64, len(cells))
	nonEmpty := 0
	for i, cell := range cells {
		if cell == "" {
			values[i] = frame.NullValue(frame.KindNumber).Num
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return frame.NewStringColumn(name, cells)
		}
		values[i] = v
		nonEmpty++
	}
	if nonEmpty == 0 {
		return frame.NewStringColumn(name, cells)
	}
	return frame.NewNumberColumn(name, values)
}

// withCalendarFeatures replaces or appends the Month and DayOfWeek columns
func withCalendarFeatures(history *frame.Frame, dates []time.Time) (*frame.Frame, error) {
	months := make([]float64, len(dates))
	weekdays := make([]float64, len(dates))
	for i, d := range dates {
		months[i] = float64(calendar.Month(d))
		weekdays[i] = float64(calendar.DayOfWeek(d))
	}

	out, err := history.With(frame.NewNumberColumn(ColMonth, months))
	if err != nil {
		return nil, err
	}
	return out.With(frame.NewNumberColumn(ColDayOfWeek, weekdays))
}
