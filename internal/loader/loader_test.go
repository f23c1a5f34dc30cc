package loader

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churn-predictor/internal/cfg"
	"churn-predictor/internal/ml"
	"churn-predictor/internal/storage"
)

const (
	goldenEnsemble = "../ml/testdata/ensemble_golden.json"
	goldenScaler   = "../ml/testdata/scaler_golden.json"
)

func readGolden(t *testing.T) ([]byte, []byte) {
	t.Helper()
	ensemble, err := os.ReadFile(goldenEnsemble)
	require.NoError(t, err)
	scaler, err := os.ReadFile(goldenScaler)
	require.NoError(t, err)
	return ensemble, scaler
}

func seedStore(t *testing.T, bundles map[string][2][]byte, order []string) string {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.New(dir)
	require.NoError(t, err)
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i, version := range order {
		docs := bundles[version]
		_, err := store.Put(version, docs[0], docs[1], base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}
	require.NoError(t, store.Close())
	return dir
}

func TestFromFiles(t *testing.T) {
	loaded, err := FromFiles(goldenEnsemble, goldenScaler)
	require.NoError(t, err)

	assert.Equal(t, SourceFiles, loaded.Source)
	assert.Empty(t, loaded.Version)
	assert.Equal(t, 2, loaded.Ensemble.NumTrees())
	assert.False(t, loaded.CreatedAt.IsZero())
	assert.NotNil(t, loaded.Scaler)
}

func TestFromFiles_Missing(t *testing.T) {
	_, err := FromFiles("does-not-exist.json", goldenScaler)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFromBundle(t *testing.T) {
	ensemble, scaler := readGolden(t)
	dir := seedStore(t, map[string][2][]byte{
		"v1": {ensemble, scaler},
		"v2": {ensemble, scaler},
	}, []string{"v1", "v2"})

	latest, err := FromBundle(dir, "")
	require.NoError(t, err)
	assert.Equal(t, SourceBundle, latest.Source)
	assert.Equal(t, "v2", latest.Version)
	assert.Equal(t, time.Date(2026, 10, 1, 1, 0, 0, 0, time.UTC), latest.CreatedAt.UTC())

	pinned, err := FromBundle(dir, "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", pinned.Version)

	_, err = FromBundle(dir, "v9")
	assert.ErrorIs(t, err, storage.ErrBundleNotFound)
}

func TestFromBundle_InvalidArtifacts(t *testing.T) {
	_, scaler := readGolden(t)
	dir := seedStore(t, map[string][2][]byte{
		"broken": {[]byte(`{"trees":[],"classes":[0,1]}`), scaler},
	}, []string{"broken"})

	_, err := FromBundle(dir, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ml.ErrCorruptArtifact)
	assert.Contains(t, err.Error(), "bundle broken")
}

func TestFromBundle_NoDatabase(t *testing.T) {
	_, err := FromBundle(t.TempDir(), "")
	assert.Error(t, err)
}

func TestFromSettings(t *testing.T) {
	ensemble, scaler := readGolden(t)
	dir := seedStore(t, map[string][2][]byte{"v1": {ensemble, scaler}}, []string{"v1"})

	loaded, err := FromSettings(cfg.Settings{EnsemblePath: goldenEnsemble, ScalerPath: goldenScaler})
	require.NoError(t, err)
	assert.Equal(t, SourceFiles, loaded.Source)

	loaded, err = FromSettings(cfg.Settings{BundlePath: dir, EnsemblePath: "ignored.json"})
	require.NoError(t, err)
	assert.Equal(t, SourceBundle, loaded.Source)

	p, err := ml.New(loaded.Ensemble, loaded.Scaler, loaded.Options()...)
	require.NoError(t, err)
	assert.Equal(t, "v1", p.Info().Version)
}
