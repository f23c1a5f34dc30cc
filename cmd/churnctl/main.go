// Command churnctl validates, stores and exercises churn model artifacts.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"churn-predictor/internal/common"
)

const usage = `usage: churnctl <command> [flags]

commands:
  check    validate an ensemble and scaler pair
  import   validate and store a pair as a versioned bundle
  list     list stored bundles
  predict  score one customer against a running server
  model    show the model a running server has loaded

run "churnctl <command> -h" for command flags`

var errUsage = errors.New("invalid usage")

func main() {
	common.SetupLogging(os.Getenv(common.EnvLogLevel), common.LogFormatConsole)

	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "check":
		return runCheck(rest, stdout)
	case "import":
		return runImport(rest, stdout)
	case "list":
		return runList(rest, stdout)
	case "predict":
		return runPredict(rest, stdout)
	case "model":
		return runModel(rest, stdout)
	case "-h", "--help", "help":
		fmt.Fprintln(stdout, usage)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		return errUsage
	}
}
