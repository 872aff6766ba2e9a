package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nzgl-g/votex-bridge/src/utils/build_info"
)

func init() {
	RootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("votex-bridge %s", build_info.Version)
		if build_info.BuildDate != "" {
			fmt.Printf(" (built %s)", build_info.BuildDate)
		}
		fmt.Println()
	},
}
