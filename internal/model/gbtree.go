package model

import (
	"context"
	"errors"
	"fmt"
	"math"

	"salesforecast/internal/frame"
)

// ctxCheckEvery is how many rows are scored between cancellation checks
const ctxCheckEvery = 4096

type gbtree struct {
	version  string
	features []string
	base     float64
	trees    []Tree
	// encoders[i] maps category values of feature i to their code, nil for
	// numeric features
	encoders []map[string]float64
}

func newGBTree(a *Artifact) (*gbtree, error) {
	if len(a.Trees) == 0 {
		return nil, errors.New("gbtree artifact has no trees")
	}
	m := &gbtree{
		version:  a.Version,
		features: append([]string(nil), a.FeatureNames...),
		base:     a.BaseScore,
		trees:    make([]Tree, len(a.Trees)),
		encoders: make([]map[string]float64, len(a.FeatureNames)),
	}

	for name := range a.Categories {
		if !a.hasFeature(name) {
			return nil, fmt.Errorf("categories given for unknown feature %q", name)
		}
	}
	for i, name := range m.features {
		cats, ok := a.Categories[name]
		if !ok {
			continue
		}
		enc := make(map[string]float64, len(cats))
		for code, v := range cats {
			enc[v] = float64(code)
		}
		m.encoders[i] = enc
	}

	for t, tree := range a.Trees {
		nodes, err := checkTree(tree.Nodes, len(m.features))
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", t, err)
		}
		m.trees[t] = Tree{Nodes: nodes}
	}
	return m, nil
}

// checkTree requires every child index to point past its parent, which rules
// out cycles. An omitted missing branch follows yes.
func checkTree(nodes []Node, nfeatures int) ([]Node, error) {
	if len(nodes) == 0 {
		return nil, errors.New("tree has no nodes")
	}
	out := make([]Node, len(nodes))
	copy(out, nodes)
	for i := range out {
		n := &out[i]
		if n.Leaf {
			if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
				return nil, fmt.Errorf("node %d has a non-finite leaf value", i)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= nfeatures {
			return nil, fmt.Errorf("node %d splits on feature index %d, model has %d features", i, n.Feature, nfeatures)
		}
		if n.Missing == 0 {
			n.Missing = n.Yes
		}
		for _, child := range []int{n.Yes, n.No, n.Missing} {
			if child <= i || child >= len(out) {
				return nil, fmt.Errorf("node %d has invalid child %d", i, child)
			}
		}
	}
	return out, nil
}

func (m *gbtree) FeatureNames() []string { return m.features }

func (m *gbtree) Info() Info {
	return Info{Kind: KindGBTree, Version: m.version, Features: m.features, Trees: len(m.trees)}
}

func (m *gbtree) Predict(ctx context.Context, x *FeatureMatrix) ([]float64, error) {
	cols, err := bind(x, m.features)
	if err != nil {
		return nil, err
	}
	encoded := make([][]float64, len(cols))
	for i, c := range cols {
		if encoded[i], err = encode(c, m.encoders[i]); err != nil {
			return nil, err
		}
	}

	out := make([]float64, x.Rows())
	row := make([]float64, len(cols))
	for r := range out {
		if r%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for i := range encoded {
			row[i] = encoded[i][r]
		}
		sum := m.base
		for t := range m.trees {
			sum += walk(m.trees[t].Nodes, row)
		}
		out[r] = sum
	}
	return out, nil
}

func walk(nodes []Node, row []float64) float64 {
	i := 0
	for {
		n := &nodes[i]
		if n.Leaf {
			return n.Value
		}
		v := row[n.Feature]
		switch {
		case math.IsNaN(v):
			i = n.Missing
		case v < n.Threshold:
			i = n.Yes
		default:
			i = n.No
		}
	}
}

// encode turns a feature column into model input. Category-encoded features
// look up each cell's text so that numeric-looking codes such as Promotion 0/1
// work either way; unknown categories become missing values.
func encode(c *frame.Column, enc map[string]float64) ([]float64, error) {
	out := make([]float64, c.Len())
	if enc != nil {
		for i := range out {
			code, ok := enc[c.Format(i)]
			if !ok {
				code = math.NaN()
			}
			out[i] = code
		}
		return out, nil
	}
	if c.Kind() != frame.KindNumber {
		return nil, fmt.Errorf("feature %q is %s but the model has no category list for it", c.Name(), c.Kind())
	}
	copy(out, c.Numbers())
	return out, nil
}
