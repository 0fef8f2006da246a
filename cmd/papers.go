package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var papersLimit int

var papersCmd = &cobra.Command{
	Use:   "papers <query>",
	Short: "Search academic literature",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		out, papers, err := e.services.SearchLiterature(cmd.Context(), strings.Join(args, " "), papersLimit)
		if err != nil {
			return err
		}
		return emit(e, out, papers)
	},
}

func init() {
	papersCmd.Flags().IntVar(&papersLimit, "limit", 10, "maximum papers to return")
	rootCmd.AddCommand(papersCmd)
}
