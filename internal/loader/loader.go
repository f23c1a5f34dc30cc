// Package loader resolves where the model artifacts come from (two JSON
// files or a stored bundle) and loads them.
package loader

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"churn-predictor/internal/cfg"
	"churn-predictor/internal/ml"
	"churn-predictor/internal/storage"
)

const (
	SourceFiles  = "files"
	SourceBundle = "bundle"
)

// Loaded is a validated ensemble and scaler plus where they came from.
type Loaded struct {
	Ensemble  *ml.Ensemble
	Scaler    *ml.Scaler
	Source    string
	Version   string
	CreatedAt time.Time
}

// Options returns the predictor options describing the source.
func (l Loaded) Options() []ml.Option {
	return []ml.Option{ml.WithSource(l.Source, l.Version, l.CreatedAt)}
}

// FromSettings loads from the bundle store when one is configured and from
// the loose files otherwise.
func FromSettings(c cfg.Settings) (Loaded, error) {
	if c.UseBundle() {
		return FromBundle(c.BundlePath, c.BundleVersion)
	}
	return FromFiles(c.EnsemblePath, c.ScalerPath)
}

// FromFiles loads both documents from disk. CreatedAt is the newer of the
// two modification times.
func FromFiles(ensemblePath, scalerPath string) (Loaded, error) {
	ensemble, scaler, err := ml.LoadArtifacts(ensemblePath, scalerPath)
	if err != nil {
		return Loaded{}, err
	}

	var created time.Time
	for _, path := range []string{ensemblePath, scalerPath} {
		info, err := os.Stat(path)
		if err != nil {
			return Loaded{}, fmt.Errorf("stat %s: %w", path, err)
		}
		if info.ModTime().After(created) {
			created = info.ModTime()
		}
	}

	log.Info().
		Str("ensemble", ensemblePath).
		Str("scaler", scalerPath).
		Int("trees", ensemble.NumTrees()).
		Msg("Loaded model artifacts from files")

	return Loaded{
		Ensemble:  ensemble,
		Scaler:    scaler,
		Source:    SourceFiles,
		CreatedAt: created,
	}, nil
}

// FromBundle loads version from the bundle store at dataPath, or the most
// recently imported bundle when version is empty.
func FromBundle(dataPath, version string) (Loaded, error) {
	store, err := storage.NewReadOnly(dataPath)
	if err != nil {
		return Loaded{}, err
	}
	defer store.Close()

	var bundle storage.Bundle
	if version == "" {
		bundle, err = store.Latest()
	} else {
		bundle, err = store.Get(version)
	}
	if err != nil {
		return Loaded{}, fmt.Errorf("read bundle: %w", err)
	}

	ensemble, scaler, err := ml.DecodeArtifacts(bundle.Ensemble, bundle.Scaler)
	if err != nil {
		return Loaded{}, fmt.Errorf("bundle %s: %w", bundle.Version, err)
	}

	log.Info().
		Str("bundle", dataPath).
		Str("version", bundle.Version).
		Str("ensemble_sha256", bundle.EnsembleSHA256).
		Int("trees", ensemble.NumTrees()).
		Msg("Loaded model artifacts from bundle")

	return Loaded{
		Ensemble:  ensemble,
		Scaler:    scaler,
		Source:    SourceBundle,
		Version:   bundle.Version,
		CreatedAt: bundle.ImportedAt,
	}, nil
}
