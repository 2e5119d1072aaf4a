// Package forecast turns loaded sales history into a demand forecast.
//
// The pipeline runs synchronously inside one request:
//
//	history  --ExtractDimensions-->  dimensions
//	dimensions + horizon  --BuildFutureFrame-->  future frame
//	future frame + model  --Engine.Predict-->  result (Predicted_Sales)
//
// The future frame holds one row per (SKU, store, date) over the horizon
// days after the last history date. Attribute columns come from the first
// occurrence of each SKU and store, so attributes that vary over time in the
// history collapse to their first observed value.
//
// Report functions (TotalsByDate, Series, SelectorOptions, CheckStock, Rows)
// read a result frame and never modify it.
package forecast
