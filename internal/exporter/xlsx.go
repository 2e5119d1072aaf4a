package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"salesforecast/internal/frame"
)

// SheetName is the worksheet holding the exported forecast
const SheetName = "Forecast"

var dateNumFmt = "yyyy-mm-dd"

// XLSXWriter provides XLSX export functionality
type XLSXWriter struct{}

// NewXLSXWriter creates a new XLSX writer instance
func NewXLSXWriter() *XLSXWriter {
	return &XLSXWriter{}
}

// Write streams result into a single-sheet workbook written to out
func (w *XLSXWriter) Write(out io.Writer, result *frame.Frame) error {
	t, err := tableOf(result)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateNumFmt})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	row := make([]interface{}, len(Headers))
	for i := 0; i < t.len(); i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row[0] = excelize.Cell{StyleID: dateStyle, Value: t.dates[i]}
		row[1] = t.skus[i]
		row[2] = t.stores[i]
		row[3] = int64(t.preds[i])
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
