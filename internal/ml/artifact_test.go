package ml

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"churn-predictor/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	goldenEnsemble = "testdata/ensemble_golden.json"
	goldenScaler   = "testdata/scaler_golden.json"
)

// stump is a root split with two leaves.
func stump(feature int, threshold float64, left, right []float64) treeDocument {
	root := make([]float64, len(left))
	for i := range left {
		root[i] = left[i] + right[i]
	}
	return treeDocument{
		ChildrenLeft:  []int{1, -1, -1},
		ChildrenRight: []int{2, -1, -1},
		Feature:       []int{feature, -2, -2},
		Threshold:     []float64{threshold, -2, -2},
		Value:         [][]float64{root, left, right},
	}
}

func ensembleJSON(t *testing.T, trees []treeDocument, classes []int) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"trees":         trees,
		"classes":       classes,
		"n_features":    features.Size,
		"feature_names": features.FeatureNames(),
	})
	require.NoError(t, err)
	return data
}

func mustEnsemble(t *testing.T, trees []treeDocument, classes []int) *Ensemble {
	t.Helper()
	e, err := DecodeEnsemble(ensembleJSON(t, trees, classes))
	require.NoError(t, err)
	return e
}

func identityScaler(t *testing.T) *Scaler {
	t.Helper()
	mean := make([]float64, features.NumNumeric)
	scale := make([]float64, features.NumNumeric)
	for i := range scale {
		scale[i] = 1
	}
	s, err := NewScaler(mean, scale)
	require.NoError(t, err)
	return s
}

func TestLoadArtifacts_Golden(t *testing.T) {
	ensemble, scaler, err := LoadArtifacts(goldenEnsemble, goldenScaler)
	require.NoError(t, err)

	assert.Equal(t, 2, ensemble.NumTrees())
	assert.Equal(t, []int{0, 1}, ensemble.Classes())
	assert.Equal(t, features.FeatureNames(), ensemble.FeatureNames())
	require.NotNil(t, scaler)
	assert.Equal(t, NoChild, ensemble.trees[0].Nodes[1].Left)
	assert.True(t, ensemble.trees[0].Nodes[2].IsLeaf())
	assert.False(t, ensemble.trees[0].Nodes[0].IsLeaf())
}

func TestLoadArtifacts_MissingFiles(t *testing.T) {
	dir := t.TempDir()

	_, _, err := LoadArtifacts(filepath.Join(dir, "nope.json"), goldenScaler)
	assert.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = LoadArtifacts(goldenEnsemble, filepath.Join(dir, "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecodeEnsemble_SchemaMismatch(t *testing.T) {
	tree := stump(0, 0.5, []float64{1, 0}, []float64{0, 1})

	reordered := features.FeatureNames()
	reordered[0], reordered[1] = reordered[1], reordered[0]

	renamed := features.FeatureNames()
	renamed[4] = "Total day charge"

	testCases := []struct {
		name string
		doc  map[string]interface{}
	}{
		{"swapped order", map[string]interface{}{
			"trees": []treeDocument{tree}, "classes": []int{0, 1}, "feature_names": reordered,
		}},
		{"renamed feature", map[string]interface{}{
			"trees": []treeDocument{tree}, "classes": []int{0, 1}, "feature_names": renamed,
		}},
		{"too few names", map[string]interface{}{
			"trees": []treeDocument{tree}, "classes": []int{0, 1}, "feature_names": features.FeatureNames()[:12],
		}},
		{"missing names", map[string]interface{}{
			"trees": []treeDocument{tree}, "classes": []int{0, 1},
		}},
		{"wrong n_features", map[string]interface{}{
			"trees": []treeDocument{tree}, "classes": []int{0, 1}, "feature_names": features.FeatureNames(), "n_features": 12,
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.doc)
			require.NoError(t, err)

			_, err = DecodeEnsemble(data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchemaMismatch)
		})
	}
}

func TestLoadEnsemble_SchemaMismatchFromFile(t *testing.T) {
	data, err := os.ReadFile(goldenEnsemble)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	names := doc["feature_names"].([]interface{})
	names[2], names[3] = names[3], names[2]

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "ensemble.json")
	require.NoError(t, os.WriteFile(path, out, 0o600))

	_, _, err = LoadArtifacts(path, goldenScaler)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestDecodeEnsemble_Corrupt(t *testing.T) {
	good := func() treeDocument { return stump(0, 0.5, []float64{1, 0}, []float64{0, 1}) }

	testCases := []struct {
		name   string
		mutate func(td *treeDocument)
	}{
		{"empty tree", func(td *treeDocument) { *td = treeDocument{} }},
		{"short right array", func(td *treeDocument) { td.ChildrenRight = td.ChildrenRight[:2] }},
		{"short threshold array", func(td *treeDocument) { td.Threshold = td.Threshold[:1] }},
		{"short value array", func(td *treeDocument) { td.Value = td.Value[:2] }},
		{"child out of range", func(td *treeDocument) { td.ChildrenRight[0] = 3 }},
		{"negative child", func(td *treeDocument) { td.ChildrenLeft[0] = -5 }},
		{"self loop", func(td *treeDocument) { td.ChildrenLeft[0] = 0 }},
		{"shared child", func(td *treeDocument) { td.ChildrenRight[0] = 1 }},
		{"right child without left", func(td *treeDocument) { td.ChildrenRight[1] = 2 }},
		{"feature out of range", func(td *treeDocument) { td.Feature[0] = features.Size }},
		{"negative feature on split", func(td *treeDocument) { td.Feature[0] = -2 }},
		{"wrong vote width", func(td *treeDocument) { td.Value[2] = []float64{1} }},
		{"cycle", func(td *treeDocument) {
			// 0 -> (1, 2), 1 -> (2, 0): node 2 and the root are both revisited.
			td.ChildrenLeft[1], td.ChildrenRight[1] = 2, 0
			td.Feature[1] = 1
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			td := good()
			tc.mutate(&td)

			_, err := DecodeEnsemble(ensembleJSON(t, []treeDocument{good(), td}, []int{0, 1}))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorruptArtifact)
			assert.Contains(t, err.Error(), "tree 1")
		})
	}
}

func TestDecodeEnsemble_CycleBetweenInternalNodes(t *testing.T) {
	// 0 -> (1, 2), 1 -> (3, 0) closes a loop back to the root.
	td := treeDocument{
		ChildrenLeft:  []int{1, 3, -1, -1},
		ChildrenRight: []int{2, 0, -1, -1},
		Feature:       []int{0, 1, -2, -2},
		Threshold:     []float64{0.5, 0.5, -2, -2},
		Value:         [][]float64{{1, 1}, {1, 1}, {1, 0}, {0, 1}},
	}
	_, err := DecodeEnsemble(ensembleJSON(t, []treeDocument{td}, []int{0, 1}))
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestDecodeEnsemble_EmptyCollections(t *testing.T) {
	_, err := DecodeEnsemble(ensembleJSON(t, []treeDocument{}, []int{0, 1}))
	assert.ErrorIs(t, err, ErrCorruptArtifact)

	_, err = DecodeEnsemble(ensembleJSON(t, []treeDocument{stump(0, 0.5, []float64{}, []float64{})}, []int{}))
	assert.ErrorIs(t, err, ErrCorruptArtifact)

	_, err = DecodeEnsemble([]byte(`{"trees": [`))
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestDecodeEnsemble_ClassLabels(t *testing.T) {
	tree := stump(0, 0.5, []float64{1, 0}, []float64{0, 1})
	data, err := json.Marshal(map[string]interface{}{
		"trees":         []treeDocument{tree},
		"classes":       []bool{false, true},
		"feature_names": features.FeatureNames(),
	})
	require.NoError(t, err)

	e, err := DecodeEnsemble(data)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, e.Classes())

	data, err = json.Marshal(map[string]interface{}{
		"trees":         []treeDocument{tree},
		"classes":       []float64{0, 1.5},
		"feature_names": features.FeatureNames(),
	})
	require.NoError(t, err)
	_, err = DecodeEnsemble(data)
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestDecodeEnsemble_AccessorsReturnCopies(t *testing.T) {
	e := mustEnsemble(t, []treeDocument{stump(0, 0.5, []float64{1, 0}, []float64{0, 1})}, []int{0, 1})

	classes := e.Classes()
	classes[0] = 42
	names := e.FeatureNames()
	names[0] = "changed"

	assert.Equal(t, []int{0, 1}, e.Classes())
	assert.Equal(t, "International plan", e.FeatureNames()[0])
}

func TestDecodeScaler(t *testing.T) {
	mean := make([]float64, features.NumNumeric)
	scale := make([]float64, features.NumNumeric)
	for i := range scale {
		scale[i] = 2
	}

	encode := func(doc map[string]interface{}) []byte {
		data, err := json.Marshal(doc)
		require.NoError(t, err)
		return data
	}

	_, err := DecodeScaler(encode(map[string]interface{}{"mean": mean, "scale": scale, "n_features": 11}))
	assert.NoError(t, err)

	_, err = DecodeScaler(encode(map[string]interface{}{"mean": mean[:10], "scale": scale}))
	assert.ErrorIs(t, err, ErrCorruptArtifact)

	_, err = DecodeScaler(encode(map[string]interface{}{"mean": mean, "scale": scale, "n_features": 13}))
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	zero := append([]float64(nil), scale...)
	zero[3] = 0
	_, err = DecodeScaler(encode(map[string]interface{}{"mean": mean, "scale": zero}))
	assert.ErrorIs(t, err, ErrCorruptArtifact)

	_, err = DecodeScaler([]byte(`not json`))
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}
