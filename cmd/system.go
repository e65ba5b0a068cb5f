package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show version",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		short, _ := cmd.Flags().GetBool("short")
		if short {
			fmt.Println(version)
			return nil
		}
		fmt.Printf("shelf version %s\n", version)
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("short", false, "print only the version string")
	rootCmd.AddCommand(versionCmd)
}
