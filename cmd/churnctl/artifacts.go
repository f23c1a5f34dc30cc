package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"churn-predictor/internal/common"
	"churn-predictor/internal/loader"
	"churn-predictor/internal/ml"
	"churn-predictor/internal/storage"
)

func runCheck(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	ensemblePath := fs.String("ensemble", common.DefaultEnsemblePath, "Path to the ensemble JSON")
	scalerPath := fs.String("scaler", common.DefaultScalerPath, "Path to the scaler JSON")
	bundlePath := fs.String("bundle", "", "Check a stored bundle in this directory instead of files")
	version := fs.String("version", "", "Bundle version (default latest)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	var (
		loaded loader.Loaded
		err    error
	)
	if *bundlePath != "" {
		loaded, err = loader.FromBundle(*bundlePath, *version)
	} else {
		loaded, err = loader.FromFiles(*ensemblePath, *scalerPath)
	}
	if err != nil {
		return err
	}

	printSummary(stdout, loaded)
	return nil
}

func printSummary(w io.Writer, l loader.Loaded) {
	fmt.Fprintf(w, "source:   %s\n", l.Source)
	if l.Version != "" {
		fmt.Fprintf(w, "version:  %s\n", l.Version)
	}
	fmt.Fprintf(w, "trees:    %d\n", l.Ensemble.NumTrees())
	fmt.Fprintf(w, "classes:  %v\n", l.Ensemble.Classes())
	fmt.Fprintf(w, "features: %s\n", strings.Join(l.Ensemble.FeatureNames(), ", "))
	fmt.Fprintln(w, "status:   ok")
}

func runImport(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	dbPath := fs.String("db", "", "Bundle database directory (required)")
	version := fs.String("version", "", "Version label for the bundle (required)")
	ensemblePath := fs.String("ensemble", common.DefaultEnsemblePath, "Path to the ensemble JSON")
	scalerPath := fs.String("scaler", common.DefaultScalerPath, "Path to the scaler JSON")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *dbPath == "" || *version == "" {
		fmt.Fprintln(fs.Output(), "-db and -version are required")
		return errUsage
	}

	ensembleData, err := os.ReadFile(*ensemblePath)
	if err != nil {
		return fmt.Errorf("read ensemble: %w", err)
	}
	scalerData, err := os.ReadFile(*scalerPath)
	if err != nil {
		return fmt.Errorf("read scaler: %w", err)
	}

	// Refuse to store anything the server would refuse to load.
	ensemble, _, err := ml.DecodeArtifacts(ensembleData, scalerData)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*dbPath, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", *dbPath, err)
	}
	store, err := storage.New(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	info, err := store.Put(*version, ensembleData, scalerData, time.Now())
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "imported %s (%d trees, ensemble %s, scaler %s)\n",
		info.Version, ensemble.NumTrees(), shortDigest(info.EnsembleSHA256), shortDigest(info.ScalerSHA256))
	return nil
}

func runList(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	dbPath := fs.String("db", "", "Bundle database directory (required)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *dbPath == "" {
		fmt.Fprintln(fs.Output(), "-db is required")
		return errUsage
	}

	store, err := storage.NewReadOnly(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	infos, err := store.List()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tIMPORTED\tENSEMBLE\tSCALER\tBYTES")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			info.Version,
			info.ImportedAt.Format(time.RFC3339),
			shortDigest(info.EnsembleSHA256),
			shortDigest(info.ScalerSHA256),
			info.EnsembleBytes+info.ScalerBytes)
	}
	return tw.Flush()
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
