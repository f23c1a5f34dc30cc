// Command generate_sample_artifacts writes a synthetic ensemble and scaler
// pair in the exported artifact format, for local runs and smoke tests.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"churn-predictor/internal/features"
	"churn-predictor/internal/ml"
	"churn-predictor/internal/storage"
)

// Column statistics of the telecom churn training set, in numeric schema order.
var (
	sampleMean  = []float64{101.1, 8.1, 179.8, 100.4, 201.0, 100.1, 200.9, 100.1, 10.2, 4.5, 1.6}
	sampleScale = []float64{39.8, 13.7, 54.5, 20.1, 50.7, 19.9, 50.6, 19.6, 2.8, 2.5, 1.3}
)

type treeDoc struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

type ensembleDoc struct {
	Trees        []treeDoc `json:"trees"`
	Classes      []int     `json:"classes"`
	NFeatures    int       `json:"n_features"`
	FeatureNames []string  `json:"feature_names"`
}

type scalerDoc struct {
	Mean      []float64 `json:"mean"`
	Scale     []float64 `json:"scale"`
	NFeatures int       `json:"n_features"`
}

func main() {
	var (
		outDir  = flag.String("out", "models", "Output directory for the JSON artifacts")
		trees   = flag.Int("trees", 100, "Number of trees")
		depth   = flag.Int("depth", 6, "Maximum tree depth")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		dbPath  = flag.String("db", "", "Also import into the bundle database in this directory")
		version = flag.String("version", "", "Bundle version when -db is set (default sample-<seed>)")
	)
	flag.Parse()

	fmt.Printf("Generating sample artifacts...\n")
	fmt.Printf("  Trees: %d\n", *trees)
	fmt.Printf("  Depth: %d\n", *depth)
	fmt.Printf("  Seed: %d\n", *seed)

	ensembleData, scalerData, err := generate(rand.New(rand.NewSource(*seed)), *trees, *depth)
	if err != nil {
		log.Fatalf("Failed to generate artifacts: %v", err)
	}

	// Round-trip through the real loader before writing anything.
	if _, _, err := ml.DecodeArtifacts(ensembleData, scalerData); err != nil {
		log.Fatalf("Generated artifacts do not load: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create %s: %v", *outDir, err)
	}
	ensemblePath := filepath.Join(*outDir, "random_forest_compact.json")
	scalerPath := filepath.Join(*outDir, "scaler_params.json")
	if err := os.WriteFile(ensemblePath, ensembleData, 0o644); err != nil {
		log.Fatalf("Failed to write ensemble: %v", err)
	}
	if err := os.WriteFile(scalerPath, scalerData, 0o644); err != nil {
		log.Fatalf("Failed to write scaler: %v", err)
	}
	fmt.Printf("✓ Wrote %s and %s\n", ensemblePath, scalerPath)

	if *dbPath != "" {
		if *version == "" {
			*version = fmt.Sprintf("sample-%d", *seed)
		}
		if err := importBundle(*dbPath, *version, ensembleData, scalerData); err != nil {
			log.Fatalf("Failed to import bundle: %v", err)
		}
		fmt.Printf("✓ Imported bundle %s into %s\n", *version, *dbPath)
	}
}

func importBundle(dbPath, version string, ensembleData, scalerData []byte) error {
	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return err
	}
	store, err := storage.New(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.Put(version, ensembleData, scalerData, time.Now())
	return err
}

// generate returns encoded ensemble and scaler documents.
func generate(rng *rand.Rand, nTrees, maxDepth int) ([]byte, []byte, error) {
	if nTrees < 1 || maxDepth < 0 {
		return nil, nil, fmt.Errorf("need at least one tree and a non-negative depth")
	}

	doc := ensembleDoc{
		Classes:      []int{0, 1},
		NFeatures:    features.Size,
		FeatureNames: features.FeatureNames(),
	}
	for i := 0; i < nTrees; i++ {
		doc.Trees = append(doc.Trees, randomTree(rng, maxDepth))
	}

	ensembleData, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, err
	}
	scalerData, err := json.Marshal(scalerDoc{Mean: sampleMean, Scale: sampleScale, NFeatures: features.NumNumeric})
	if err != nil {
		return nil, nil, err
	}
	return ensembleData, scalerData, nil
}

// randomTree grows a tree depth-first in pre-order, the layout the exporter
// produces.
func randomTree(rng *rand.Rand, maxDepth int) treeDoc {
	var t treeDoc
	var grow func(depth int) int
	grow = func(depth int) int {
		id := len(t.Feature)
		t.ChildrenLeft = append(t.ChildrenLeft, -1)
		t.ChildrenRight = append(t.ChildrenRight, -1)
		t.Feature = append(t.Feature, -2)
		t.Threshold = append(t.Threshold, -2)
		t.Value = append(t.Value, leafCounts(rng))

		if depth >= maxDepth || (depth > 1 && rng.Float64() < 0.25) {
			return id
		}

		feature := rng.Intn(features.Size)
		threshold := 0.5
		if feature >= features.NumCategorical {
			threshold = rng.NormFloat64() * 0.8
		}
		t.Feature[id] = feature
		t.Threshold[id] = threshold

		left := grow(depth + 1)
		right := grow(depth + 1)
		t.ChildrenLeft[id] = left
		t.ChildrenRight[id] = right
		return id
	}
	grow(0)
	return t
}

func leafCounts(rng *rand.Rand) []float64 {
	stay := float64(1 + rng.Intn(60))
	churn := float64(rng.Intn(20))
	if rng.Float64() < 0.3 {
		stay, churn = churn, stay
	}
	return []float64{stay, churn}
}
