// Package cli defines the cobra command tree for tidyctl.
package cli

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagFormat string
	flagAPI    string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tidyctl",
		Short:         "Operate the tidyhome cleaning scheduler",
		Long:          "Operator tools for the tidyhome cleaning scheduler and its HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagAPI, "api", envOr("TIDY_API_URL", "http://localhost:8080"), "tidyhome API base URL")

	root.AddCommand(
		newQuoteCmd(),
		newJobsCmd(),
		newMigrateCmd(),
		newSweepCmd(),
		newBenchCmd(),
	)

	return root
}

func isJSON() bool {
	return flagFormat == "json"
}

func apiURL() string {
	return strings.TrimRight(flagAPI, "/")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
