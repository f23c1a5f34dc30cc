package ml

import (
	"fmt"

	"churn-predictor/internal/features"
)

// Ensemble is a validated random forest. It is immutable after decoding and
// safe for concurrent use.
type Ensemble struct {
	trees        []Tree
	classes      []int
	featureNames []string
}

// Prediction is the outcome of evaluating every tree on one vector.
type Prediction struct {
	Class int       `json:"prediction"`
	Votes []float64 `json:"votes"` // summed leaf weights, ordered like Classes
}

func (e *Ensemble) NumTrees() int { return len(e.trees) }

// Classes returns a copy of the class labels in vote order.
func (e *Ensemble) Classes() []int { return append([]int(nil), e.classes...) }

// FeatureNames returns a copy of the artifact's feature names.
func (e *Ensemble) FeatureNames() []string { return append([]string(nil), e.featureNames...) }

// Predict returns the class with the largest summed vote weight for an
// already scaled vector.
func (e *Ensemble) Predict(v features.Vector) (int, error) {
	p, err := e.Evaluate(v)
	if err != nil {
		return 0, err
	}
	return p.Class, nil
}

// Evaluate sums the leaf vote vectors of all trees and picks the winning
// class. On a tie the class with the lowest index wins.
func (e *Ensemble) Evaluate(v features.Vector) (Prediction, error) {
	votes, err := e.Votes(v)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{Class: e.classes[argmax(votes)], Votes: votes}, nil
}

// Votes returns the per-class totals across all trees.
func (e *Ensemble) Votes(v features.Vector) ([]float64, error) {
	totals := make([]float64, len(e.classes))
	for i := range e.trees {
		leaf, err := e.trees[i].leaf(&v)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		if len(leaf) != len(totals) {
			return nil, fmt.Errorf("%w: tree %d leaf has %d vote weights, expected %d", ErrCorruptArtifact, i, len(leaf), len(totals))
		}
		for c, w := range leaf {
			totals[c] += w
		}
	}
	return totals, nil
}

// leaf walks from the root to a leaf. Values equal to a threshold go left.
// The walk is capped at one visit per node so a malformed tree fails instead
// of looping.
func (t *Tree) leaf(v *features.Vector) ([]float64, error) {
	id := NodeID(0)
	for steps := 0; steps <= len(t.Nodes); steps++ {
		if id < 0 || int(id) >= len(t.Nodes) {
			return nil, fmt.Errorf("%w: node id %d out of range", ErrCorruptArtifact, id)
		}
		node := &t.Nodes[id]
		if node.IsLeaf() {
			return node.Value, nil
		}
		if node.Feature < 0 || node.Feature >= features.Size {
			return nil, fmt.Errorf("%w: node %d splits on feature %d", ErrCorruptArtifact, id, node.Feature)
		}
		if v[node.Feature] <= node.Threshold {
			id = node.Left
		} else {
			id = node.Right
		}
	}
	return nil, fmt.Errorf("%w: traversal exceeded %d nodes", ErrCorruptArtifact, len(t.Nodes))
}

// argmax returns the index of the first maximum.
func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
