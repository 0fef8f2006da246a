package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tiangong-ai/greenlit/internal/workflow"
)

var codeLimit int

var codeCmd = &cobra.Command{
	Use:   "code <topic>",
	Short: "Search code repositories for a sustainability topic",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		topic := workflow.Slugify(strings.Join(args, " "))
		out, repos, err := e.services.SearchCode(cmd.Context(), topic, codeLimit)
		if err != nil {
			return err
		}
		return emit(e, out, repos)
	},
}

func init() {
	codeCmd.Flags().IntVar(&codeLimit, "limit", 10, "maximum repositories to return")
	rootCmd.AddCommand(codeCmd)
}
