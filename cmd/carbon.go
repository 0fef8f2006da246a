package cmd

import (
	"github.com/spf13/cobra"
)

var carbonCmd = &cobra.Command{
	Use:   "carbon <location>",
	Short: "Read current grid carbon intensity for a location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		out, snap, err := e.services.GetCarbonIntensity(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emit(e, out, snap)
	},
}

func init() {
	rootCmd.AddCommand(carbonCmd)
}
