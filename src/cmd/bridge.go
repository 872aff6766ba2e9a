package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nzgl-g/votex-bridge/src/bridge"
	"github.com/nzgl-g/votex-bridge/src/utils/logger"
)

func init() {
	RootCmd.AddCommand(bridgeCmd)
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the session bridge service, polling deployed contracts and reconciling vote counts",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		controller, err := bridge.NewController(conf)
		if err != nil {
			return
		}

		err = controller.Start()
		if err != nil {
			return
		}

		<-ctx.Done()

		controller.StopWait()
		return
	},
	PostRunE: func(cmd *cobra.Command, args []string) (err error) {
		log := logger.NewSublogger("bridge-cmd")
		log.Debug("Finished bridge command")
		return
	},
}
