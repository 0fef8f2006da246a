package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var promptInstructions string

var promptCmd = &cobra.Command{
	Use:   "prompt <text>",
	Short: "Run a prompt through the synthesis collaborator",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		out, syn, err := e.services.RunPrompt(cmd.Context(), strings.Join(args, " "), promptInstructions)
		if err != nil {
			return err
		}
		if out.NoSource || out.Planned || flagJSON {
			return emit(e, out, syn)
		}
		_, err = cmd.OutOrStdout().Write([]byte(syn.Text + "\n"))
		return err
	},
}

func init() {
	promptCmd.Flags().StringVar(&promptInstructions, "instructions", "", "system-level steering for the model")
	rootCmd.AddCommand(promptCmd)
}
