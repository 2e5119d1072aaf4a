package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"salesforecast/internal/model"
)

// SampleHistoryCSV is a two-SKU, two-store sales history whose last date is
// 2024-01-31
const SampleHistoryCSV = `Date,SKU,Store_ID,Sales_Quantity,Product_Type,Promotion,Item_MRP,Store_Type,Region,Season,Holiday
01/01/2024,A,S1,10,Dairy,0,49.5,Supermarket,North,Winter,1
01/01/2024,B,S1,4,Snacks,1,20,Supermarket,North,Winter,1
02/01/2024,A,S2,7,Dairy,0,49.5,Grocery,South,Winter,0
31/01/2024,B,S2,3,Snacks,1,20,Grocery,South,Winter,0
`

// SampleFeatures are the model features of SampleHistoryCSV. Weekday is a
// future-frame column and is not among them.
var SampleFeatures = []string{
	"SKU", "Store_ID", "Product_Type", "Promotion", "Item_MRP",
	"Store_Type", "Region", "Season", "Holiday", "Month", "DayOfWeek",
}

// SampleLinearArtifact predicts 12 for SKU A and 9 for SKU B
func SampleLinearArtifact() *model.Artifact {
	return &model.Artifact{
		Kind:         model.KindLinear,
		Version:      "test",
		FeatureNames: append([]string(nil), SampleFeatures...),
		Intercept:    10,
		CategoryOffsets: map[string]map[string]float64{
			"SKU": {"A": 2, "B": -1},
		},
	}
}

// WriteArtifact stores art as JSON in a temp directory and returns its path
func WriteArtifact(t *testing.T, art *model.Artifact) string {
	t.Helper()
	data, err := json.Marshal(art)
	if err != nil {
		t.Fatalf("marshal artifact: %v", err)
	}
	path := filepath.Join(t.TempDir(), "forecast_model.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

// StubModel returns Value for every row, or Err
type StubModel struct {
	Features []string
	Value    float64
	Err      error

	calls atomic.Int64
}

// FeatureNames implements model.Model
func (m *StubModel) FeatureNames() []string { return m.Features }

// Predict implements model.Model
func (m *StubModel) Predict(_ context.Context, x *model.FeatureMatrix) ([]float64, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]float64, x.Rows())
	for i := range out {
		out[i] = m.Value
	}
	return out, nil
}

// Calls reports how many times Predict ran
func (m *StubModel) Calls() int { return int(m.calls.Load()) }
