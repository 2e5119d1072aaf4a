package model

import (
	"context"
	"fmt"

	"salesforecast/internal/frame"
)

type linear struct {
	version   string
	features  []string
	intercept float64
	coef      []float64
	offsets   []map[string]float64
}

func newLinear(a *Artifact) (*linear, error) {
	for name := range a.Coefficients {
		if !a.hasFeature(name) {
			return nil, fmt.Errorf("coefficient given for unknown feature %q", name)
		}
	}
	for name := range a.CategoryOffsets {
		if !a.hasFeature(name) {
			return nil, fmt.Errorf("category offsets given for unknown feature %q", name)
		}
		if _, both := a.Coefficients[name]; both {
			return nil, fmt.Errorf("feature %q has both a coefficient and category offsets", name)
		}
	}

	m := &linear{
		version:   a.Version,
		features:  append([]string(nil), a.FeatureNames...),
		intercept: a.Intercept,
		coef:      make([]float64, len(a.FeatureNames)),
		offsets:   make([]map[string]float64, len(a.FeatureNames)),
	}
	for i, name := range m.features {
		m.coef[i] = a.Coefficients[name]
		m.offsets[i] = a.CategoryOffsets[name]
	}
	return m, nil
}

func (m *linear) FeatureNames() []string { return m.features }

func (m *linear) Info() Info {
	return Info{Kind: KindLinear, Version: m.version, Features: m.features}
}

func (m *linear) Predict(ctx context.Context, x *FeatureMatrix) ([]float64, error) {
	cols, err := bind(x, m.features)
	if err != nil {
		return nil, err
	}
	out := make([]float64, x.Rows())
	for r := range out {
		out[r] = m.intercept
	}

	for i, c := range cols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch {
		case m.offsets[i] != nil:
			offsets := m.offsets[i]
			for r := range out {
				out[r] += offsets[c.Format(r)]
			}
		case m.coef[i] == 0:
		case c.Kind() == frame.KindNumber:
			nums := c.Numbers()
			for r := range out {
				out[r] += m.coef[i] * nums[r]
			}
		default:
			return nil, fmt.Errorf("feature %q is %s but has a numeric coefficient", c.Name(), c.Kind())
		}
	}
	return out, nil
}
