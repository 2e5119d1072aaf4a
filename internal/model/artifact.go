package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"salesforecast/pkg/contracts/domain"
)

// Artifact kinds
const (
	KindGBTree = "gbtree"
	KindLinear = "linear"
)

// Artifact is the serialised form of a trained model
type Artifact struct {
	Kind         string   `json:"kind" yaml:"kind"`
	Version      string   `json:"version,omitempty" yaml:"version,omitempty"`
	FeatureNames []string `json:"feature_names" yaml:"feature_names"`

	// gbtree
	BaseScore  float64             `json:"base_score,omitempty" yaml:"base_score,omitempty"`
	Categories map[string][]string `json:"categories,omitempty" yaml:"categories,omitempty"`
	Trees      []Tree              `json:"trees,omitempty" yaml:"trees,omitempty"`

	// linear
	Intercept       float64                       `json:"intercept,omitempty" yaml:"intercept,omitempty"`
	Coefficients    map[string]float64            `json:"coefficients,omitempty" yaml:"coefficients,omitempty"`
	CategoryOffsets map[string]map[string]float64 `json:"category_offsets,omitempty" yaml:"category_offsets,omitempty"`
}

// Tree is one regression tree. Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// Node is a split or a leaf. A split sends x < Threshold to Yes, anything else
// to No, and a missing value to Missing.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty" yaml:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Feature   int     `json:"feature,omitempty" yaml:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Yes       int     `json:"yes,omitempty" yaml:"yes,omitempty"`
	No        int     `json:"no,omitempty" yaml:"no,omitempty"`
	Missing   int     `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// LoadArtifact reads and decodes the artifact at path. Every failure,
// including a structurally invalid document, is a ModelNotFoundError.
func LoadArtifact(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ModelNotFoundError{Path: path, Cause: err}
	}
	art, err := DecodeArtifact(data, filepath.Ext(path))
	if err != nil {
		return nil, &domain.ModelNotFoundError{Path: path, Cause: err}
	}
	m, err := art.Build()
	if err != nil {
		return nil, &domain.ModelNotFoundError{Path: path, Cause: err}
	}
	return m, nil
}

// DecodeArtifact parses data as YAML for .yaml/.yml and as JSON otherwise
func DecodeArtifact(data []byte, ext string) (*Artifact, error) {
	var art Artifact
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(data, &art); err != nil {
			return nil, fmt.Errorf("decode yaml artifact: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&art); err != nil {
			return nil, fmt.Errorf("decode json artifact: %w", err)
		}
	}
	return &art, nil
}

// Build validates the artifact and returns the model it describes
func (a *Artifact) Build() (Model, error) {
	if err := a.validateFeatures(); err != nil {
		return nil, err
	}
	switch a.Kind {
	case KindGBTree:
		return newGBTree(a)
	case KindLinear:
		return newLinear(a)
	case "":
		return nil, errors.New("artifact has no kind")
	default:
		return nil, fmt.Errorf("unsupported artifact kind %q", a.Kind)
	}
}

func (a *Artifact) validateFeatures() error {
	if len(a.FeatureNames) == 0 {
		return errors.New("artifact declares no feature_names")
	}
	seen := make(map[string]struct{}, len(a.FeatureNames))
	for _, f := range a.FeatureNames {
		if f == "" {
			return errors.New("artifact has an empty feature name")
		}
		if _, dup := seen[f]; dup {
			return fmt.Errorf("feature %q is declared twice", f)
		}
		seen[f] = struct{}{}
	}
	return nil
}

func (a *Artifact) hasFeature(name string) bool {
	for _, f := range a.FeatureNames {
		if f == name {
			return true
		}
	}
	return false
}
