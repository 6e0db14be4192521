// Package model evaluates the pre-trained PET regression model.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/couchcryptid/pet-microclimate/internal/domain"
)

const leaf = -1

// Tree is one regression tree in flattened array form: node i splits on
// Feature[i] at Threshold[i], or is a leaf with output Value[i] when
// ChildrenLeft[i] is -1.
type Tree struct {
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	Value         []float64 `json:"value"`
}

// Forest is a tree-ensemble regressor whose prediction is the mean of its trees.
type Forest struct {
	FeatureNames []string `json:"feature_names"`
	Trees        []Tree   `json:"trees"`

	// columns maps a model feature position to its position in domain.FeatureNames.
	columns []int
}

// LoadForest reads and validates a JSON forest artifact.
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return ParseForest(data)
}

// ParseForest decodes and validates a JSON forest artifact.
func ParseForest(data []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := f.init(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Forest) init() error {
	if len(f.FeatureNames) != len(domain.FeatureNames) {
		return fmt.Errorf("model expects %d features, want %v", len(f.FeatureNames), domain.FeatureNames)
	}
	pos := make(map[string]int, len(domain.FeatureNames))
	for i, name := range domain.FeatureNames {
		pos[name] = i
	}
	f.columns = make([]int, len(f.FeatureNames))
	seen := make(map[string]bool, len(f.FeatureNames))
	for i, name := range f.FeatureNames {
		p, ok := pos[name]
		if !ok || seen[name] {
			return fmt.Errorf("model feature %q is unknown or repeated", name)
		}
		seen[name] = true
		f.columns[i] = p
	}

	if len(f.Trees) == 0 {
		return errors.New("model has no trees")
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(len(f.FeatureNames)); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (t *Tree) validate(nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("node arrays differ in length")
	}
	for i := range n {
		if t.ChildrenLeft[i] == leaf {
			continue
		}
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		// Children follow their parent in depth-first export order, so
		// traversal always terminates.
		if l <= i || l >= n || r <= i || r >= n {
			return fmt.Errorf("node %d: child index out of range", i)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= nFeatures {
			return fmt.Errorf("node %d: feature %d out of range", i, t.Feature[i])
		}
	}
	return nil
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for t.ChildrenLeft[i] != leaf {
		if x[t.Feature[i]] <= t.Threshold[i] {
			i = t.ChildrenLeft[i]
		} else {
			i = t.ChildrenRight[i]
		}
	}
	return t.Value[i]
}

// Predict returns one PET value per feature row.
func (f *Forest) Predict(_ context.Context, rows []domain.Features) ([]float64, error) {
	out := make([]float64, len(rows))
	x := make([]float64, len(f.columns))
	for r, row := range rows {
		v := row.Vector()
		for i, p := range f.columns {
			x[i] = v[p]
		}
		var sum float64
		for i := range f.Trees {
			sum += f.Trees[i].predict(x)
		}
		out[r] = sum / float64(len(f.Trees))
	}
	return out, nil
}
