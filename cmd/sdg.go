package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var sdgLimit int

var sdgCmd = &cobra.Command{
	Use:   "sdg <topic>",
	Short: "Map a research topic onto Sustainable Development Goals",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		out, matches, err := e.services.MapToTaxonomy(cmd.Context(), strings.Join(args, " "), sdgLimit)
		if err != nil {
			return err
		}
		return emit(e, out, matches)
	},
}

func init() {
	sdgCmd.Flags().IntVar(&sdgLimit, "limit", 3, "maximum goals to return")
	rootCmd.AddCommand(sdgCmd)
}
