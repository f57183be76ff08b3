package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aure/fpdash/internal/api"
)

var queryCmd = &cobra.Command{
	Use:   "query [type]",
	Short: "Query the fingerprint API and print JSON (for agents/scripts)",
	Long: `Fetch one resource from the fingerprint API and print it as JSON.

Types:
  fingerprints  - Most recent fingerprints (first page)
  count         - Submission counts per 30 second interval

Examples:
  fpdash query fingerprints
  fpdash query count --api-url http://localhost:8080/api`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"fingerprints", "count"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig("query")
		if err != nil {
			return err
		}
		client := api.NewClient(cfg.APIBaseURL, cfg.APITimeout)

		var result any
		switch args[0] {
		case "fingerprints":
			result, err = client.FetchFingerprints(cmd.Context())
		case "count":
			result, err = client.FetchFingerprintCount(cmd.Context())
		default:
			return fmt.Errorf("unknown query type: %s (valid: fingerprints, count)", args[0])
		}
		if err != nil {
			return err
		}

		return writeJSON(os.Stdout, result)
	},
}

func writeJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

func init() {
	rootCmd.AddCommand(queryCmd)
}
