package bridge

import (
	"errors"
	"fmt"
)

// Voting precondition failures, expected and user-facing.
var (
	ErrVotingClosed   = errors.New("voting is closed for this session")
	ErrAlreadyVoted   = errors.New("voter has already voted in this session")
	ErrInvalidChoice  = errors.New("selection contains an unknown choice")
	ErrNoParticipants = errors.New("session has no participants to deploy with")
	ErrSessionUnknown = errors.New("session not found")
)

// Session already has a contract, deploying again would orphan votes.
type AlreadyDeployedError struct {
	SessionId       string
	ContractAddress string
}

func (self *AlreadyDeployedError) Error() string {
	return fmt.Sprintf("session %s already deployed at %s", self.SessionId, self.ContractAddress)
}

// Deployment transaction mined but the expected effect did not occur,
// or could not be submitted at all. Never auto-retried.
type DeploymentError struct {
	SessionId string
	TxHash    string
	Reason    string
	Err       error
}

func (self *DeploymentError) Error() string {
	msg := fmt.Sprintf("failed to deploy session %s", self.SessionId)
	if self.TxHash != "" {
		msg += " (tx " + self.TxHash + ")"
	}
	if self.Reason != "" {
		msg += ": " + self.Reason
	} else if self.Err != nil {
		msg += ": " + self.Err.Error()
	}
	return msg
}

func (self *DeploymentError) Unwrap() error {
	return self.Err
}

// On-chain participants could not be mapped to stored choices. The
// whole tick's write is withheld, partial writes would zero out real
// counts.
type ReconciliationMismatchError struct {
	SessionId       string
	ContractAddress string
	Unmatched       []string
}

func (self *ReconciliationMismatchError) Error() string {
	return fmt.Sprintf("session %s at %s: no on-chain participant matched stored choices %v",
		self.SessionId, self.ContractAddress, self.Unmatched)
}
