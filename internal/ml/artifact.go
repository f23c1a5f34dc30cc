package ml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"churn-predictor/internal/features"
)

var (
	// ErrSchemaMismatch means an artifact was exported for a different
	// feature layout. The service must not start with such an artifact.
	ErrSchemaMismatch = errors.New("artifact schema mismatch")
	// ErrCorruptArtifact means an artifact is structurally unusable.
	ErrCorruptArtifact = errors.New("corrupt artifact")
)

// NodeID addresses a node inside its Tree's arena.
type NodeID int32

// NoChild marks the absent child of a leaf.
const NoChild NodeID = -1

// Node is a single split or leaf. Leaves have Left == NoChild and carry the
// per-class vote weights in Value.
type Node struct {
	Left      NodeID
	Right     NodeID
	Feature   int
	Threshold float64
	Value     []float64
}

// IsLeaf reports whether n terminates traversal.
func (n *Node) IsLeaf() bool { return n.Left == NoChild }

// Tree is an arena of nodes rooted at node 0.
type Tree struct {
	Nodes []Node
}

type treeDocument struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

type ensembleDocument struct {
	Trees        []treeDocument `json:"trees"`
	Classes      []classLabel   `json:"classes"`
	NFeatures    *int           `json:"n_features"`
	FeatureNames []string       `json:"feature_names"`
}

type scalerDocument struct {
	Mean      []float64 `json:"mean"`
	Scale     []float64 `json:"scale"`
	NFeatures *int      `json:"n_features"`
}

// classLabel accepts integral JSON numbers, and booleans from models trained
// on a boolean target (false=0, true=1).
type classLabel int

func (c *classLabel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true":
		*c = 1
		return nil
	case "false":
		*c = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return fmt.Errorf("class label %s is not an integer", data)
	}
	*c = classLabel(int(f))
	return nil
}

// LoadArtifacts reads and validates the ensemble and scaler documents.
func LoadArtifacts(ensemblePath, scalerPath string) (*Ensemble, *Scaler, error) {
	ensemble, err := LoadEnsemble(ensemblePath)
	if err != nil {
		return nil, nil, err
	}
	scaler, err := LoadScaler(scalerPath)
	if err != nil {
		return nil, nil, err
	}
	return ensemble, scaler, nil
}

// DecodeArtifacts is LoadArtifacts for documents already in memory.
func DecodeArtifacts(ensembleData, scalerData []byte) (*Ensemble, *Scaler, error) {
	ensemble, err := DecodeEnsemble(ensembleData)
	if err != nil {
		return nil, nil, err
	}
	scaler, err := DecodeScaler(scalerData)
	if err != nil {
		return nil, nil, err
	}
	return ensemble, scaler, nil
}

// LoadEnsemble reads an ensemble document from disk.
func LoadEnsemble(path string) (*Ensemble, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ensemble %s: %w", path, err)
	}
	e, err := DecodeEnsemble(data)
	if err != nil {
		return nil, fmt.Errorf("ensemble %s: %w", path, err)
	}
	return e, nil
}

// LoadScaler reads a scaler document from disk.
func LoadScaler(path string) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler %s: %w", path, err)
	}
	s, err := DecodeScaler(data)
	if err != nil {
		return nil, fmt.Errorf("scaler %s: %w", path, err)
	}
	return s, nil
}

// DecodeEnsemble parses and validates an ensemble document. The feature names
// must match the canonical schema exactly and every tree must be a proper
// tree over in-bounds node ids.
func DecodeEnsemble(data []byte) (*Ensemble, error) {
	var doc ensembleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrCorruptArtifact, err)
	}

	if err := checkFeatureNames(doc.FeatureNames); err != nil {
		return nil, err
	}
	if doc.NFeatures != nil && *doc.NFeatures != features.Size {
		return nil, fmt.Errorf("%w: n_features is %d, expected %d", ErrSchemaMismatch, *doc.NFeatures, features.Size)
	}

	if len(doc.Classes) == 0 {
		return nil, fmt.Errorf("%w: no classes", ErrCorruptArtifact)
	}
	if len(doc.Trees) == 0 {
		return nil, fmt.Errorf("%w: no trees", ErrCorruptArtifact)
	}

	classes := make([]int, len(doc.Classes))
	for i, c := range doc.Classes {
		classes[i] = int(c)
	}

	trees := make([]Tree, len(doc.Trees))
	for i, td := range doc.Trees {
		t, err := buildTree(td, len(classes))
		if err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", ErrCorruptArtifact, i, err)
		}
		trees[i] = t
	}

	return &Ensemble{
		trees:        trees,
		classes:      classes,
		featureNames: append([]string(nil), doc.FeatureNames...),
	}, nil
}

// DecodeScaler parses and validates a scaler document.
func DecodeScaler(data []byte) (*Scaler, error) {
	var doc scalerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrCorruptArtifact, err)
	}
	if doc.NFeatures != nil && *doc.NFeatures != features.NumNumeric {
		return nil, fmt.Errorf("%w: scaler n_features is %d, expected %d", ErrSchemaMismatch, *doc.NFeatures, features.NumNumeric)
	}
	return NewScaler(doc.Mean, doc.Scale)
}

func checkFeatureNames(got []string) error {
	want := features.FeatureNames()
	if len(got) != len(want) {
		return fmt.Errorf("%w: %d feature names, expected %d", ErrSchemaMismatch, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%w: feature %d is %q, expected %q", ErrSchemaMismatch, i, got[i], want[i])
		}
	}
	return nil
}

// buildTree converts the parallel-array encoding into a node arena and
// rejects anything that is not a finite binary tree rooted at node 0.
func buildTree(td treeDocument, nClasses int) (Tree, error) {
	n := len(td.ChildrenLeft)
	if n == 0 {
		return Tree{}, errors.New("no nodes")
	}
	if len(td.ChildrenRight) != n || len(td.Feature) != n || len(td.Threshold) != n || len(td.Value) != n {
		return Tree{}, fmt.Errorf("array lengths differ: children_left=%d children_right=%d feature=%d threshold=%d value=%d",
			n, len(td.ChildrenRight), len(td.Feature), len(td.Threshold), len(td.Value))
	}

	nodes := make([]Node, n)
	for i := 0; i < n; i++ {
		left, right := td.ChildrenLeft[i], td.ChildrenRight[i]
		if len(td.Value[i]) != nClasses {
			return Tree{}, fmt.Errorf("node %d has %d vote weights, expected %d", i, len(td.Value[i]), nClasses)
		}

		node := Node{
			Left:      NoChild,
			Right:     NoChild,
			Feature:   td.Feature[i],
			Threshold: td.Threshold[i],
			Value:     append([]float64(nil), td.Value[i]...),
		}

		if left == int(NoChild) {
			if right != int(NoChild) {
				return Tree{}, fmt.Errorf("node %d has a right child but no left child", i)
			}
			nodes[i] = node
			continue
		}

		if left < 0 || left >= n || right < 0 || right >= n {
			return Tree{}, fmt.Errorf("node %d children (%d, %d) out of range [0, %d)", i, left, right, n)
		}
		if node.Feature < 0 || node.Feature >= features.Size {
			return Tree{}, fmt.Errorf("node %d splits on feature %d, expected [0, %d)", i, node.Feature, features.Size)
		}
		if math.IsNaN(node.Threshold) {
			return Tree{}, fmt.Errorf("node %d has NaN threshold", i)
		}
		node.Left = NodeID(left)
		node.Right = NodeID(right)
		nodes[i] = node
	}

	if err := checkAcyclic(nodes); err != nil {
		return Tree{}, err
	}
	return Tree{Nodes: nodes}, nil
}

// checkAcyclic walks the tree from the root and fails if any node is reached
// twice, which covers self-loops, cycles and shared subtrees.
func checkAcyclic(nodes []Node) error {
	seen := make([]bool, len(nodes))
	stack := []NodeID{0}
	seen[0] = true
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := &nodes[id]
		if node.IsLeaf() {
			continue
		}
		for _, child := range [2]NodeID{node.Left, node.Right} {
			if seen[child] {
				return fmt.Errorf("node %d reached more than once", child)
			}
			seen[child] = true
			stack = append(stack, child)
		}
	}
	return nil
}
