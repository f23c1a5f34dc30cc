package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"churn-predictor/internal/client"
)

// fieldFlags collects repeated -f key=value flags.
type fieldFlags map[string]string

func (f fieldFlags) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (f fieldFlags) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	f[strings.TrimSpace(key)] = val
	return nil
}

func runPredict(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server base URL")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	asJSON := fs.Bool("json", false, "Print the raw JSON response")
	fields := fieldFlags{}
	fs.Var(fields, "f", "Field as key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := client.New(*addr, *timeout).Predict(ctx, fields)
	if err != nil {
		return err
	}

	if *asJSON {
		return json.NewEncoder(stdout).Encode(resp)
	}
	fmt.Fprintf(stdout, "prediction: %d\n", resp.Prediction)
	for i, class := range resp.Classes {
		if i < len(resp.Votes) {
			fmt.Fprintf(stdout, "votes[%d]:  %g\n", class, resp.Votes[i])
		}
	}
	return nil
}

func runModel(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("model", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server base URL")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	info, err := client.New(*addr, *timeout).ModelInfo(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
