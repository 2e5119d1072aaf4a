// Package exporter writes forecast results as downloadable tables.
//
// Two writers share one column layout, Date, SKU, Store_ID, Predicted_Sales:
//
// CSVWriter: streams CSV through encoding/csv, optionally prefixed with a
// UTF-8 BOM so that Excel detects the encoding.
//
// XLSXWriter: streams a single "Forecast" sheet through the excelize stream
// writer.
//
// Example usage:
//
//	// Export to an HTTP response
//	w.Header().Set("Content-Type", exporter.FormatCSV.ContentType())
//	err := exporter.Export(w, exporter.FormatCSV, result)
//
//	// Export to a file
//	err = exporter.WriteFile("out/forecast.xlsx", exporter.FormatXLSX, result)
package exporter
