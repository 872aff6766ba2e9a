package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nzgl-g/votex-bridge/src/bridge"
)

var (
	deploySessionId    string
	deployParticipants string
	deployEndDate      string
	deployMode         string
	deployMaxChoices   int
)

func init() {
	deployCmd.Flags().StringVar(&deploySessionId, "session", "", "platform session id to deploy")
	deployCmd.Flags().StringVar(&deployParticipants, "participants", "", "JSON array of {id, label} objects, registers the session when it is not stored yet")
	deployCmd.Flags().StringVar(&deployEndDate, "end", "", "voting deadline, RFC3339")
	deployCmd.Flags().StringVar(&deployMode, "mode", "single", "vote mode: single, multiple or ranked")
	deployCmd.Flags().IntVar(&deployMaxChoices, "max-choices", 1, "selection limit for multiple choice sessions")
	_ = deployCmd.MarkFlagRequired("session")
	RootCmd.AddCommand(deployCmd)
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy one session's voting contract and exit",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		controller, err := bridge.NewController(conf)
		if err != nil {
			return
		}

		err = controller.Start()
		if err != nil {
			return
		}
		defer controller.StopWait()

		if deployParticipants != "" {
			err = registerSession(controller)
			if err != nil {
				return
			}
		}

		deployment, err := controller.Orchestrator.DeploySession(ctx, deploySessionId)
		if err != nil {
			return
		}

		fmt.Printf("session %s deployed at %s (tx %s)\n",
			deployment.SessionId, deployment.ContractAddress, deployment.TxHash)

		// Read the contract back to confirm it answers
		details, err := controller.Sessions.GetSessionDetails(ctx, deployment.ContractAddress)
		if err != nil {
			return fmt.Errorf("deployed contract does not respond: %w", err)
		}
		fmt.Printf("contract verified: active=%v, %d participants, voting closes in %ds\n",
			details.Status.IsActive, len(details.Results.ParticipantNames), details.Status.RemainingSeconds)
		return
	},
}

func registerSession(controller *bridge.Controller) (err error) {
	var participants []bridge.Participant
	err = json.Unmarshal([]byte(deployParticipants), &participants)
	if err != nil {
		return fmt.Errorf("failed to parse participants: %w", err)
	}

	var mode bridge.VoteMode
	switch deployMode {
	case "single":
		mode = bridge.VoteModeSingle
	case "multiple":
		mode = bridge.VoteModeMultiple
	case "ranked":
		mode = bridge.VoteModeRanked
	default:
		return errors.New("mode must be single, multiple or ranked")
	}

	var endTimestamp int64
	if deployEndDate != "" {
		endDate, parseErr := time.Parse(time.RFC3339, deployEndDate)
		if parseErr != nil {
			return fmt.Errorf("failed to parse end date: %w", parseErr)
		}
		endTimestamp = endDate.Unix()
	}

	return controller.Store.RegisterSession(ctx, &bridge.Session{
		Id:           deploySessionId,
		Mode:         mode,
		MaxChoices:   deployMaxChoices,
		EndTimestamp: endTimestamp,
		Participants: participants,
	})
}
