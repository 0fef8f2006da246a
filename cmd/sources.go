package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/presentation"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect the data source catalogue",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered data sources in priority order",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		return e.formatter.Sources(presentation.FromDescriptors(e.registry.List()))
	},
}

var sourcesVerifyCmd = &cobra.Command{
	Use:   "verify [source-id...]",
	Short: "Probe sources for connectivity and credentials",
	Long: `Runs each adapter's verification probe: cheap connectivity and
credential checks, never the primary operation. Blocked sources are reported
without being contacted. With no arguments every source is probed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		var results []adapter.VerificationResult
		if len(args) == 0 {
			results = e.services.Verify(cmd.Context())
		} else {
			for _, id := range args {
				r, err := e.services.VerifySource(cmd.Context(), id)
				if err != nil {
					return err
				}
				results = append(results, r)
			}
		}
		if err := e.formatter.Verifications(results); err != nil {
			return err
		}
		for _, r := range results {
			if !r.OK {
				return &ExitError{Code: 2}
			}
		}
		return nil
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesVerifyCmd)
	rootCmd.AddCommand(sourcesCmd)
}
