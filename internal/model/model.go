package model

import (
	"context"
	"fmt"

	"salesforecast/internal/frame"
)

// Model scores rows of a feature matrix. Implementations are read-only after
// construction and safe for concurrent use.
type Model interface {
	// FeatureNames lists the features the model was trained on
	FeatureNames() []string
	// Predict returns one raw output per matrix row
	Predict(ctx context.Context, x *FeatureMatrix) ([]float64, error)
}

// Info summarises a loaded model
type Info struct {
	Kind     string   `json:"kind"`
	Version  string   `json:"version,omitempty"`
	Features []string `json:"features"`
	Trees    int      `json:"trees,omitempty"`
}

// Describe returns the Info of m when it carries one, or a minimal summary
func Describe(m Model) Info {
	if d, ok := m.(interface{ Info() Info }); ok {
		return d.Info()
	}
	return Info{Kind: "custom", Features: m.FeatureNames()}
}

// FeatureMatrix is a named, column-oriented view of the rows to score
type FeatureMatrix struct {
	names   []string
	columns map[string]*frame.Column
	rows    int
}

// NewFeatureMatrix selects the named columns of f
func NewFeatureMatrix(f *frame.Frame, names []string) (*FeatureMatrix, error) {
	sel, err := f.Select(names...)
	if err != nil {
		return nil, err
	}
	m := &FeatureMatrix{
		names:   append([]string(nil), names...),
		columns: make(map[string]*frame.Column, len(names)),
		rows:    f.Len(),
	}
	for i := 0; i < sel.Width(); i++ {
		c := sel.At(i)
		m.columns[c.Name()] = c
	}
	return m, nil
}

// Rows returns the number of rows
func (m *FeatureMatrix) Rows() int { return m.rows }

// Names returns the feature names in matrix order
func (m *FeatureMatrix) Names() []string { return m.names }

// Column returns the named feature column
func (m *FeatureMatrix) Column(name string) (*frame.Column, bool) {
	c, ok := m.columns[name]
	return c, ok
}

// bind resolves the model's features against the matrix
func bind(x *FeatureMatrix, features []string) ([]*frame.Column, error) {
	cols := make([]*frame.Column, len(features))
	var missing []string
	for i, name := range features {
		c, ok := x.Column(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[i] = c
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("feature matrix lacks %v", missing)
	}
	return cols, nil
}
