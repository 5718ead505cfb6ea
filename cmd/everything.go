package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteEverythingCmd = &cobra.Command{
	Use:   "delete-everything",
	Short: "Delete all scenes, devices and assets of the current team (generation 1)",
	Args:  cobra.NoArgs,

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return confirmed(cmd)
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		api, _, err := sessionAPI()
		if err != nil {
			return err
		}

		if err := api.DeleteAll(); err != nil {
			return err
		}

		fmt.Fprintf(_stdout, "Team %s emptied\n", api.CurrentTeam())
		return nil
	},
}

func init() {
	deleteEverythingCmd.Flags().Bool("yes", false, "confirm the deletion")

	rootCmd.AddCommand(deleteEverythingCmd)
}
