package model

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/internal/frame"
	"salesforecast/pkg/contracts/domain"
)

const treeJSON = `{
  "kind": "gbtree",
  "version": "test-1",
  "feature_names": ["Item_MRP", "Region"],
  "base_score": 0.5,
  "categories": {"Region": ["North", "South"]},
  "trees": [
    {"nodes": [
      {"feature": 0, "threshold": 30, "yes": 1, "no": 2},
      {"leaf": true, "value": 5},
      {"leaf": true, "value": 10}
    ]},
    {"nodes": [
      {"feature": 1, "threshold": 0.5, "yes": 1, "no": 2, "missing": 3},
      {"leaf": true, "value": 1},
      {"leaf": true, "value": 2},
      {"leaf": true, "value": 0}
    ]}
  ]
}`

const linearYAML = `kind: linear
feature_names: [Item_MRP, Region]
intercept: 2
coefficients:
  Item_MRP: 0.1
category_offsets:
  Region:
    North: 3
    South: -1
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testMatrix(t *testing.T) *FeatureMatrix {
	t.Helper()
	f := frame.MustNew(
		frame.NewStringColumn("Region", []string{"North", "South", "East"}),
		frame.NewNumberColumn("Item_MRP", []float64{20, 49.5, math.NaN()}),
		frame.NewStringColumn("Unused", []string{"x", "y", "z"}),
	)
	x, err := NewFeatureMatrix(f, []string{"Region", "Item_MRP"})
	require.NoError(t, err)
	return x
}

func TestLoadArtifactGBTree(t *testing.T) {
	m, err := LoadArtifact(writeFile(t, "model.json", treeJSON))
	require.NoError(t, err)

	assert.Equal(t, []string{"Item_MRP", "Region"}, m.FeatureNames())
	info := Describe(m)
	assert.Equal(t, KindGBTree, info.Kind)
	assert.Equal(t, 2, info.Trees)
	assert.Equal(t, "test-1", info.Version)

	preds, err := m.Predict(context.Background(), testMatrix(t))
	require.NoError(t, err)
	assert.Equal(t, []float64{6.5, 12.5, 5.5}, preds)
}

func TestShippedSampleModel(t *testing.T) {
	m, err := LoadArtifact(filepath.Join("..", "..", "models", "forecast_model.json"))
	require.NoError(t, err)

	info := Describe(m)
	assert.Equal(t, KindGBTree, info.Kind)
	assert.Equal(t, 4, info.Trees)
	assert.Len(t, info.Features, 11)
	assert.Contains(t, info.Features, "DayOfWeek")
}

func TestLoadArtifactLinearYAML(t *testing.T) {
	m, err := LoadArtifact(writeFile(t, "model.yaml", linearYAML))
	require.NoError(t, err)
	assert.Equal(t, KindLinear, Describe(m).Kind)

	preds, err := m.Predict(context.Background(), testMatrix(t))
	require.NoError(t, err)
	require.Len(t, preds, 3)
	assert.InDelta(t, 7.0, preds[0], 1e-9)
	assert.InDelta(t, 5.95, preds[1], 1e-9)
	assert.True(t, math.IsNaN(preds[2]), "missing numeric input propagates")
}

func TestLoadArtifactFailures(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"invalid json", "m.json", `{"kind": `},
		{"unknown field", "m.json", `{"kind":"linear","feature_names":["a"],"weights":{}}`},
		{"unknown kind", "m.json", `{"kind":"forest","feature_names":["a"]}`},
		{"no features", "m.json", `{"kind":"linear"}`},
		{"duplicate feature", "m.json", `{"kind":"linear","feature_names":["a","a"]}`},
		{"no trees", "m.json", `{"kind":"gbtree","feature_names":["a"]}`},
		{"cyclic tree", "m.json", `{"kind":"gbtree","feature_names":["a"],"trees":[{"nodes":[{"feature":0,"yes":0,"no":1},{"leaf":true}]}]}`},
		{"feature out of range", "m.json", `{"kind":"gbtree","feature_names":["a"],"trees":[{"nodes":[{"feature":3,"yes":1,"no":2},{"leaf":true},{"leaf":true}]}]}`},
		{"coefficient for unknown feature", "m.yml", "kind: linear\nfeature_names: [a]\ncoefficients:\n  b: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.body)
			_, err := LoadArtifact(path)
			var notFound *domain.ModelNotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, path, notFound.Path)
			assert.Error(t, notFound.Cause)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadArtifact(filepath.Join(t.TempDir(), "absent.json"))
		var notFound *domain.ModelNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.True(t, errors.Is(err, os.ErrNotExist))
		assert.Contains(t, err.Error(), "not found or unreadable")
	})
}

func TestPredictBindingErrors(t *testing.T) {
	m, err := LoadArtifact(writeFile(t, "model.json", treeJSON))
	require.NoError(t, err)

	f := frame.MustNew(frame.NewNumberColumn("Item_MRP", []float64{1}))
	x, err := NewFeatureMatrix(f, []string{"Item_MRP"})
	require.NoError(t, err)
	_, err = m.Predict(context.Background(), x)
	assert.ErrorContains(t, err, "Region")

	_, err = NewFeatureMatrix(f, []string{"Nope"})
	var missing *frame.MissingColumnsError
	assert.ErrorAs(t, err, &missing)
}

func TestPredictCancelled(t *testing.T) {
	m, err := LoadArtifact(writeFile(t, "model.json", treeJSON))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Predict(ctx, testMatrix(t))
	assert.ErrorIs(t, err, context.Canceled)
}

type constModel struct{ features []string }

func (c constModel) FeatureNames() []string { return c.features }

func (c constModel) Predict(_ context.Context, x *FeatureMatrix) ([]float64, error) {
	return make([]float64, x.Rows()), nil
}

func TestRegistryLoadsOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	reg := NewRegistryWithLoader("model.json", func(string) (Model, error) {
		calls.Add(1)
		<-release
		return constModel{features: []string{"a"}}, nil
	}, nil)

	var wg sync.WaitGroup
	results := make([]Model, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := reg.Get(context.Background())
			assert.NoError(t, err)
			results[i] = m
		}(i)
	}
	close(release)
	wg.Wait()

	m, err := reg.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, reg.Loaded())
	for _, r := range results {
		assert.Equal(t, m, r)
	}
	assert.LessOrEqual(t, calls.Load(), int32(len(results)))
	before := calls.Load()
	_, _ = reg.Get(context.Background())
	assert.Equal(t, before, calls.Load(), "loaded model is reused")
	assert.Equal(t, "custom", Describe(m).Kind)
}

func TestRegistryDoesNotCacheFailures(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	reg := NewRegistryWithLoader("model.json", func(path string) (Model, error) {
		if fail.Load() {
			return nil, &domain.ModelNotFoundError{Path: path}
		}
		return constModel{features: []string{"a"}}, nil
	}, nil)

	_, err := reg.Get(context.Background())
	var notFound *domain.ModelNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.False(t, reg.Loaded())

	fail.Store(false)
	m, err := reg.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, m.FeatureNames())

	reg.Reset()
	assert.False(t, reg.Loaded())
}

func TestRegistryContextCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	reg := NewRegistryWithLoader("model.json", func(string) (Model, error) {
		<-release
		return constModel{}, nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := reg.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
